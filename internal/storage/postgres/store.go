package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusLedger/internal/model"
)

// Schema creates the tables used by the anchoring CLI.
const Schema = `
CREATE TABLE IF NOT EXISTS anchor_journal (
	id BIGSERIAL PRIMARY KEY,
	chain_id BIGINT NOT NULL,
	operation TEXT NOT NULL,
	contract TEXT NOT NULL,
	tx_hash TEXT NOT NULL,
	ledger_id NUMERIC,
	best_effort BOOLEAN NOT NULL DEFAULT false,
	outcome TEXT NOT NULL,
	warning TEXT,
	error TEXT,
	recorded_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS anchor_events (
	chain_id BIGINT NOT NULL,
	block_number BIGINT NOT NULL,
	block_hash TEXT NOT NULL,
	tx_hash TEXT NOT NULL,
	log_index BIGINT NOT NULL,
	address TEXT NOT NULL,
	event_name TEXT NOT NULL,
	block_ts BIGINT NOT NULL,
	fields JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, tx_hash, log_index)
);
CREATE TABLE IF NOT EXISTS anchor_state (
	name TEXT PRIMARY KEY,
	last_processed_block BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for journal entries and scanned events.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// PutJournal inserts journal entries.
func (s *Store) PutJournal(ctx context.Context, entries []model.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO anchor_journal (
				chain_id, operation, contract, tx_hash, ledger_id, best_effort, outcome, warning, error, recorded_at
			) VALUES ($1, $2, $3, $4, NULLIF($5, '')::numeric, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10::timestamptz)
		`,
			int64(e.ChainID),
			e.Operation,
			e.Contract,
			e.TxHash,
			e.LedgerID,
			e.BestEffort,
			e.Outcome,
			e.Warning,
			e.Error,
			e.RecordedAt,
		)
	}
	return s.sendBatch(ctx, batch, len(entries))
}

// PutEvents inserts decoded events, ignoring ones already stored.
func (s *Store) PutEvents(ctx context.Context, events []model.EventRecord) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		fields, err := json.Marshal(ev.Fields)
		if err != nil {
			return fmt.Errorf("marshal fields %s:%d: %w", ev.TxHash, ev.LogIndex, err)
		}
		batch.Queue(`
			INSERT INTO anchor_events (
				chain_id, block_number, block_hash, tx_hash, log_index, address, event_name, block_ts, fields
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)
			ON CONFLICT (chain_id, tx_hash, log_index) DO NOTHING
		`,
			int64(ev.ChainID),
			int64(ev.BlockNumber),
			ev.BlockHash,
			ev.TxHash,
			int64(ev.LogIndex),
			ev.Address,
			ev.EventName,
			int64(ev.Timestamp),
			string(fields),
		)
	}
	return s.sendBatch(ctx, batch, len(events))
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM anchor_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts last_processed_block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO anchor_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
