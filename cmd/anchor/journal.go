package main

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"campusLedger/internal/anchor"
	"campusLedger/internal/model"
)

// writeOutput is printed for every write command.
type writeOutput struct {
	Operation   string `json:"operation"`
	TxHash      string `json:"tx_hash,omitempty"`
	LedgerID    string `json:"ledger_id,omitempty"`
	BestEffort  bool   `json:"best_effort"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	GasUsed     uint64 `json:"gas_used,omitempty"`
	Outcome     string `json:"outcome"`
	Warning     string `json:"warning,omitempty"`
	Error       string `json:"error,omitempty"`
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return model.OutcomeConfirmed
	case errors.Is(err, model.ErrBroadcastUnknown):
		return model.OutcomeUnknown
	case errors.Is(err, model.ErrTransactionReverted):
		return model.OutcomeReverted
	case errors.Is(err, model.ErrReceiptTimeout):
		return model.OutcomeTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return model.OutcomeCancelled
	default:
		return model.OutcomeFailed
	}
}

// finishWrite journals a broadcast write, prints its outcome and returns err
// so the command exits non-zero on failure.
func (s *session) finishWrite(op string, contract common.Address, result anchor.WriteResult, err error) error {
	out := writeOutput{
		Operation:   op,
		BestEffort:  result.BestEffort,
		BlockNumber: result.BlockNumber,
		GasUsed:     result.GasUsed,
		Outcome:     outcomeOf(err),
	}
	if result.TxHash != (common.Hash{}) {
		out.TxHash = result.TxHash.Hex()
	}
	if result.LedgerID != nil {
		out.LedgerID = result.LedgerID.String()
	}
	if result.Warning != nil {
		out.Warning = result.Warning.Error()
	}
	if err != nil {
		out.Error = err.Error()
	}

	if out.TxHash != "" && !s.journal.Empty() {
		entry := model.JournalEntry{
			ChainID:    s.chainID,
			Operation:  op,
			Contract:   model.FormatAddress(contract),
			TxHash:     out.TxHash,
			LedgerID:   out.LedgerID,
			BestEffort: out.BestEffort,
			Outcome:    out.Outcome,
			Warning:    out.Warning,
			Error:      out.Error,
			RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
		}
		// The command context may already be cancelled; the journal must still land.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if jerr := s.journal.PutJournal(ctx, []model.JournalEntry{entry}); jerr != nil {
			s.logger.Error("journal write failed", zap.String("tx_hash", out.TxHash), zap.Error(jerr))
		}
	}
	if out.Outcome == model.OutcomeTimeout || out.Outcome == model.OutcomeUnknown {
		s.logger.Warn("transaction may still be mined; re-running the command can create a duplicate record",
			zap.String("operation", op),
			zap.String("tx_hash", out.TxHash),
		)
	}

	if perr := printJSON(s.cmd, out); perr != nil && err == nil {
		return perr
	}
	return err
}
