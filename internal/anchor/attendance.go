package anchor

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"campusLedger/internal/contracts"
	"campusLedger/internal/events"
	"campusLedger/internal/model"
)

// AttendanceMark is one attendance entry to anchor.
type AttendanceMark struct {
	ClassID        *big.Int
	StudentAddress string
	SessionDate    *big.Int
	Status         model.AttendanceStatus
	Notes          string
}

// MarkAttendance anchors an attendance entry and recovers its record id.
func (c *Client) MarkAttendance(ctx context.Context, mark AttendanceMark) (WriteResult, error) {
	student, err := model.ParseAddress(mark.StudentAddress)
	if err != nil {
		return WriteResult{}, err
	}
	if mark.ClassID == nil || mark.SessionDate == nil {
		return WriteResult{}, fmt.Errorf("class id and session date are required")
	}
	if err := checkStatus(mark.Status); err != nil {
		return WriteResult{}, err
	}

	result, receipt, err := c.write(ctx, c.attendance, contracts.MethodMarkAttendance,
		mark.ClassID, student, mark.SessionDate, uint8(mark.Status), mark.Notes)
	if err != nil {
		return result, err
	}

	c.correlate(ctx, &result, receipt, c.attendance, contracts.EventAttendanceMarked, "recordId", contracts.MethodRecordCount, []events.Key{
		{Field: "studentAddress", Value: student},
		{Field: "classId", Value: mark.ClassID},
	})
	c.logger.Info("attendance marked",
		zap.String("tx_hash", result.TxHash.Hex()),
		zap.String("student", model.FormatAddress(student)),
		zap.Stringer("class_id", mark.ClassID),
		zap.Stringer("status", mark.Status),
		zap.Stringer("record_id", result.LedgerID),
		zap.Bool("best_effort", result.BestEffort),
	)
	return result, nil
}

// UpdateAttendance changes the status and notes of an existing record.
func (c *Client) UpdateAttendance(ctx context.Context, recordID *big.Int, status model.AttendanceStatus, notes string) (WriteResult, error) {
	if recordID == nil {
		return WriteResult{}, fmt.Errorf("record id is required")
	}
	if err := checkStatus(status); err != nil {
		return WriteResult{}, err
	}
	result, _, err := c.write(ctx, c.attendance, contracts.MethodUpdateAttendance, recordID, uint8(status), notes)
	if err != nil {
		return result, err
	}
	result.LedgerID = new(big.Int).Set(recordID)
	return result, nil
}

// GetAttendanceRecord reads and decodes an attendance record.
func (c *Client) GetAttendanceRecord(ctx context.Context, recordID *big.Int) (model.AttendanceRecord, error) {
	if recordID == nil {
		return model.AttendanceRecord{}, fmt.Errorf("record id is required")
	}
	out, err := c.call(ctx, c.attendance, contracts.MethodGetAttendanceRecord, recordID)
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	return contracts.DecodeAttendance(out)
}

func checkStatus(status model.AttendanceStatus) error {
	if !status.Writable() {
		return fmt.Errorf("%w: %d", model.ErrInvalidAttendanceStatus, uint8(status))
	}
	return nil
}
