package contracts

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const attendanceABIJSON = `[
  {
    "inputs": [
      {"internalType": "uint256", "name": "classId", "type": "uint256"},
      {"internalType": "address", "name": "studentAddress", "type": "address"},
      {"internalType": "uint256", "name": "sessionDate", "type": "uint256"},
      {"internalType": "uint8", "name": "status", "type": "uint8"},
      {"internalType": "string", "name": "notes", "type": "string"}
    ],
    "name": "markAttendance",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "recordId", "type": "uint256"},
      {"internalType": "uint8", "name": "newStatus", "type": "uint8"},
      {"internalType": "string", "name": "notes", "type": "string"}
    ],
    "name": "updateAttendance",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "recordId", "type": "uint256"}],
    "name": "getAttendanceRecord",
    "outputs": [
      {
        "components": [
          {"internalType": "uint256", "name": "recordId", "type": "uint256"},
          {"internalType": "uint256", "name": "classId", "type": "uint256"},
          {"internalType": "address", "name": "studentAddress", "type": "address"},
          {"internalType": "uint256", "name": "sessionDate", "type": "uint256"},
          {"internalType": "uint8", "name": "status", "type": "uint8"},
          {"internalType": "string", "name": "notes", "type": "string"},
          {"internalType": "address", "name": "markedBy", "type": "address"},
          {"internalType": "uint256", "name": "markedAt", "type": "uint256"}
        ],
        "internalType": "struct AttendanceRecord",
        "name": "",
        "type": "tuple"
      }
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "recordCount",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "recordId", "type": "uint256"},
      {"indexed": true, "internalType": "uint256", "name": "classId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "studentAddress", "type": "address"},
      {"indexed": false, "internalType": "uint8", "name": "status", "type": "uint8"},
      {"indexed": false, "internalType": "address", "name": "markedBy", "type": "address"}
    ],
    "name": "AttendanceMarked",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "recordId", "type": "uint256"},
      {"indexed": false, "internalType": "uint8", "name": "newStatus", "type": "uint8"},
      {"indexed": false, "internalType": "address", "name": "updatedBy", "type": "address"}
    ],
    "name": "AttendanceUpdated",
    "type": "event"
  }
]`

// Attendance contract method and event names.
const (
	MethodMarkAttendance      = "markAttendance"
	MethodUpdateAttendance    = "updateAttendance"
	MethodGetAttendanceRecord = "getAttendanceRecord"
	MethodRecordCount         = "recordCount"

	EventAttendanceMarked  = "AttendanceMarked"
	EventAttendanceUpdated = "AttendanceUpdated"
)

var (
	attendanceABI     abi.ABI
	attendanceABIOnce sync.Once
	attendanceABIErr  error
)

// AttendanceABI returns the parsed attendance registry ABI.
func AttendanceABI() (abi.ABI, error) {
	attendanceABIOnce.Do(func() {
		attendanceABI, attendanceABIErr = abi.JSON(strings.NewReader(attendanceABIJSON))
	})
	return attendanceABI, attendanceABIErr
}
