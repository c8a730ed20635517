package model

// Write outcomes recorded in the journal.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeReverted  = "reverted"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
	OutcomeUnknown   = "unknown"
	OutcomeFailed    = "failed"
)

// JournalEntry records one write that reached broadcast.
type JournalEntry struct {
	ChainID    uint64 `json:"chain_id"`
	Operation  string `json:"operation"`
	Contract   string `json:"contract"`
	TxHash     string `json:"tx_hash"`
	LedgerID   string `json:"ledger_id,omitempty"`
	BestEffort bool   `json:"best_effort"`
	Outcome    string `json:"outcome"`
	Warning    string `json:"warning,omitempty"`
	Error      string `json:"error,omitempty"`
	RecordedAt string `json:"recorded_at"`
}
