package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAddressFormat = errors.New("invalid address format")
	ErrContractNotDeployed  = errors.New("contract not deployed")
	ErrGasEstimationFailed  = errors.New("gas estimation failed")
	ErrTransactionRejected  = errors.New("transaction rejected")
	// ErrBroadcastUnknown means the send failed below the node, so the
	// transaction may or may not have reached the pool.
	ErrBroadcastUnknown        = errors.New("broadcast outcome unknown")
	ErrInvalidAttendanceStatus = errors.New("invalid attendance status")
	ErrTransactionReverted     = errors.New("transaction reverted")
	ErrReceiptTimeout          = errors.New("receipt timeout")
	ErrAbiDecode               = errors.New("abi decode error")

	// ErrEventNotFound is soft: callers degrade to a best-effort lookup.
	ErrEventNotFound = errors.New("event not found")
)

// AbiDecodeError names the field whose bytes could not be decoded.
type AbiDecodeError struct {
	Field  string
	Reason string
}

func (e *AbiDecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("abi decode: %s", e.Reason)
	}
	return fmt.Sprintf("abi decode %s: %s", e.Field, e.Reason)
}

func (e *AbiDecodeError) Is(target error) bool {
	return target == ErrAbiDecode
}

// RevertedError reports a mined transaction whose status is failure.
type RevertedError struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
}

func (e *RevertedError) Error() string {
	return fmt.Sprintf("transaction %s reverted in block %d (gas used %d)", e.TxHash, e.BlockNumber, e.GasUsed)
}

func (e *RevertedError) Is(target error) bool {
	return target == ErrTransactionReverted
}

// TimeoutError reports that no receipt appeared within the attempt budget.
// The transaction may still be mined later.
type TimeoutError struct {
	TxHash   string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no receipt for %s after %d attempts", e.TxHash, e.Attempts)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrReceiptTimeout
}
