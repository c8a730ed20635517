package main

import (
	"github.com/spf13/cobra"

	"campusLedger/internal/anchor"
	"campusLedger/internal/contracts"
	"campusLedger/internal/model"
)

func attendanceCommands() []*cobra.Command {
	markCmd := &cobra.Command{
		Use:   "mark <class-id> <student-address> <session-date>",
		Short: "Mark attendance for a class session and print its record id",
		Args:  cobra.ExactArgs(3),
		RunE:  runMark,
	}
	addStatusFlags(markCmd)

	updateCmd := &cobra.Command{
		Use:   "update-attendance <record-id>",
		Short: "Change the status and notes of an attendance record",
		Args:  cobra.ExactArgs(1),
		RunE:  runUpdateAttendance,
	}
	addStatusFlags(updateCmd)

	getCmd := &cobra.Command{
		Use:   "attendance <record-id>",
		Short: "Read an attendance record",
		Args:  cobra.ExactArgs(1),
		RunE:  runGetAttendance,
	}

	return []*cobra.Command{markCmd, updateCmd, getCmd}
}

func addStatusFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("present", false, "student attended")
	cmd.Flags().Bool("excused", false, "absence is excused (ignored when present)")
	cmd.Flags().String("notes", "", "free-form notes stored on chain")
}

func statusFromFlags(cmd *cobra.Command) (model.AttendanceStatus, string) {
	present, _ := cmd.Flags().GetBool("present")
	excused, _ := cmd.Flags().GetBool("excused")
	notes, _ := cmd.Flags().GetString("notes")
	return model.AttendanceStatusFor(present, excused), notes
}

func runMark(cmd *cobra.Command, args []string) error {
	classID, err := parseUint256("class-id", args[0])
	if err != nil {
		return err
	}
	sessionDate, err := parseUint256("session-date", args[2])
	if err != nil {
		return err
	}
	status, notes := statusFromFlags(cmd)

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	result, err := s.client.MarkAttendance(s.ctx, anchor.AttendanceMark{
		ClassID:        classID,
		StudentAddress: args[1],
		SessionDate:    sessionDate,
		Status:         status,
		Notes:          notes,
	})
	return s.finishWrite(contracts.MethodMarkAttendance, s.attendanceContract, result, err)
}

func runUpdateAttendance(cmd *cobra.Command, args []string) error {
	recordID, err := parseUint256("record-id", args[0])
	if err != nil {
		return err
	}
	status, notes := statusFromFlags(cmd)

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	result, err := s.client.UpdateAttendance(s.ctx, recordID, status, notes)
	return s.finishWrite(contracts.MethodUpdateAttendance, s.attendanceContract, result, err)
}

func runGetAttendance(cmd *cobra.Command, args []string) error {
	recordID, err := parseUint256("record-id", args[0])
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	record, err := s.client.GetAttendanceRecord(s.ctx, recordID)
	if err != nil {
		return err
	}
	return printJSON(cmd, record)
}
