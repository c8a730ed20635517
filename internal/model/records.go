package model

import "math/big"

// CredentialRecord is the decoded result of getCredential.
type CredentialRecord struct {
	CredentialID   *big.Int `json:"credential_id"`
	StudentAddress string   `json:"student_address"`
	CredentialType string   `json:"credential_type"`
	CredentialData string   `json:"credential_data"`
	Status         uint8    `json:"status"`
	IssuedBy       string   `json:"issued_by"`
	IssuedAt       *big.Int `json:"issued_at"`
	ExpiresAt      *big.Int `json:"expires_at"`
}

// AttendanceRecord is the decoded result of getAttendanceRecord.
type AttendanceRecord struct {
	RecordID       *big.Int         `json:"record_id"`
	ClassID        *big.Int         `json:"class_id"`
	StudentAddress string           `json:"student_address"`
	SessionDate    *big.Int         `json:"session_date"`
	Status         AttendanceStatus `json:"status"`
	Notes          string           `json:"notes"`
	MarkedBy       string           `json:"marked_by"`
	MarkedAt       *big.Int         `json:"marked_at"`
}

// AttendanceStatus is the on-chain attendance byte.
type AttendanceStatus uint8

const (
	AttendancePresent  AttendanceStatus = 0
	AttendanceAbsent   AttendanceStatus = 1
	AttendanceReserved AttendanceStatus = 2
	AttendanceExcused  AttendanceStatus = 3
)

func (s AttendanceStatus) String() string {
	switch s {
	case AttendancePresent:
		return "present"
	case AttendanceAbsent:
		return "absent"
	case AttendanceReserved:
		return "reserved"
	case AttendanceExcused:
		return "excused"
	default:
		return "unknown"
	}
}

// Writable reports whether s may be sent on chain. The reserved byte and
// anything past AttendanceExcused are refused.
func (s AttendanceStatus) Writable() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceExcused:
		return true
	default:
		return false
	}
}

// AttendanceStatusFor maps the caller-facing flags to the on-chain byte.
// Excused only matters for absences; nothing maps to AttendanceReserved.
func AttendanceStatusFor(present, excused bool) AttendanceStatus {
	switch {
	case present:
		return AttendancePresent
	case excused:
		return AttendanceExcused
	default:
		return AttendanceAbsent
	}
}
