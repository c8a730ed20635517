package contracts

import (
	"fmt"
	"math/big"

	"campusLedger/internal/abicodec"
	"campusLedger/internal/model"
)

// CredentialSchema mirrors the Credential struct returned by getCredential.
var CredentialSchema = abicodec.Schema{
	abicodec.Uint256("credentialId"),
	abicodec.Address("studentAddress"),
	abicodec.String("credentialType"),
	abicodec.String("credentialData"),
	abicodec.Uint256("status"),
	abicodec.Address("issuedBy"),
	abicodec.Uint256("issuedAt"),
	abicodec.Uint256("expiresAt"),
}

// AttendanceSchema mirrors the AttendanceRecord struct returned by getAttendanceRecord.
var AttendanceSchema = abicodec.Schema{
	abicodec.Uint256("recordId"),
	abicodec.Uint256("classId"),
	abicodec.Address("studentAddress"),
	abicodec.Uint256("sessionDate"),
	abicodec.Uint256("status"),
	abicodec.String("notes"),
	abicodec.Address("markedBy"),
	abicodec.Uint256("markedAt"),
}

// DecodeCredential decodes the raw getCredential response.
func DecodeCredential(data []byte) (model.CredentialRecord, error) {
	tuple, err := abicodec.Decode(data, CredentialSchema)
	if err != nil {
		return model.CredentialRecord{}, err
	}

	var r fieldReader
	rec := model.CredentialRecord{
		CredentialID:   r.readUint(tuple, "credentialId"),
		StudentAddress: r.readAddress(tuple, "studentAddress"),
		CredentialType: r.readString(tuple, "credentialType"),
		CredentialData: r.readString(tuple, "credentialData"),
		Status:         r.readUint8(tuple, "status"),
		IssuedBy:       r.readAddress(tuple, "issuedBy"),
		IssuedAt:       r.readUint(tuple, "issuedAt"),
		ExpiresAt:      r.readUint(tuple, "expiresAt"),
	}
	if r.err != nil {
		return model.CredentialRecord{}, r.err
	}
	return rec, nil
}

// DecodeAttendance decodes the raw getAttendanceRecord response.
func DecodeAttendance(data []byte) (model.AttendanceRecord, error) {
	tuple, err := abicodec.Decode(data, AttendanceSchema)
	if err != nil {
		return model.AttendanceRecord{}, err
	}

	var r fieldReader
	rec := model.AttendanceRecord{
		RecordID:       r.readUint(tuple, "recordId"),
		ClassID:        r.readUint(tuple, "classId"),
		StudentAddress: r.readAddress(tuple, "studentAddress"),
		SessionDate:    r.readUint(tuple, "sessionDate"),
		Status:         model.AttendanceStatus(r.readUint8(tuple, "status")),
		Notes:          r.readString(tuple, "notes"),
		MarkedBy:       r.readAddress(tuple, "markedBy"),
		MarkedAt:       r.readUint(tuple, "markedAt"),
	}
	if r.err != nil {
		return model.AttendanceRecord{}, r.err
	}
	return rec, nil
}

// fieldReader keeps the first lookup error so record construction stays flat.
type fieldReader struct {
	err error
}

func (r *fieldReader) readUint(t abicodec.Tuple, name string) *big.Int {
	if r.err != nil {
		return nil
	}
	v, err := t.Uint(name)
	if err != nil {
		r.err = &model.AbiDecodeError{Field: name, Reason: err.Error()}
	}
	return v
}

func (r *fieldReader) readUint8(t abicodec.Tuple, name string) uint8 {
	v := r.readUint(t, name)
	if r.err != nil {
		return 0
	}
	if !v.IsUint64() || v.Uint64() > 0xff {
		r.err = &model.AbiDecodeError{Field: name, Reason: fmt.Sprintf("value %s exceeds uint8", v)}
		return 0
	}
	return uint8(v.Uint64())
}

func (r *fieldReader) readAddress(t abicodec.Tuple, name string) string {
	if r.err != nil {
		return ""
	}
	v, err := t.Address(name)
	if err != nil {
		r.err = &model.AbiDecodeError{Field: name, Reason: err.Error()}
	}
	return v
}

func (r *fieldReader) readString(t abicodec.Tuple, name string) string {
	if r.err != nil {
		return ""
	}
	v, err := t.String(name)
	if err != nil {
		r.err = &model.AbiDecodeError{Field: name, Reason: err.Error()}
	}
	return v
}
