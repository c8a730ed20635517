package scan

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"campusLedger/internal/chain"
	"campusLedger/internal/events"
	"campusLedger/internal/model"
	"campusLedger/internal/storage"
)

// LogSource is the chain surface a scan reads from.
type LogSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// DecodeErrorSink receives logs that carried a known topic0 but failed to decode.
type DecodeErrorSink interface {
	PutDecodeErrors(ctx context.Context, errs []model.DecodeError) error
}

// RunConfig holds runtime settings for a scan.
type RunConfig struct {
	FromBlock    uint64
	ToBlock      uint64
	Addresses    []common.Address
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Runner walks a block range and stores the anchoring events it finds.
type Runner struct {
	cfg        RunConfig
	source     LogSource
	registry   *events.Registry
	sink       storage.EventSink
	errors     DecodeErrorSink
	checkpoint Checkpointer
	logger     *zap.Logger
	seen       map[string]struct{}
}

// NewRunner builds a Runner. checkpoint and errSink may be nil.
func NewRunner(cfg RunConfig, source LogSource, registry *events.Registry, sink storage.EventSink, checkpoint Checkpointer, errSink DecodeErrorSink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		registry:   registry,
		sink:       sink,
		errors:     errSink,
		checkpoint: checkpoint,
		logger:     logger,
		seen:       make(map[string]struct{}),
	}
}

// Run executes the scan loop, checkpointing after every stored batch.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.sink == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.registry == nil {
		return fmt.Errorf("event registry is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Addresses) == 0 {
		return fmt.Errorf("at least one contract address is required")
	}

	chainID, err := r.source.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.source.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.checkpoint != nil {
		last, ok, err := r.checkpoint.Load(ctx)
		if err != nil {
			return err
		}
		if ok && last >= from {
			from = last + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to scan", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	windows, err := Windows(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	topics := r.registry.Topics()
	for _, window := range windows {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", window.From), zap.Uint64("to", window.To))

		logs, err := r.filterLogsWithRetry(ctx, window.From, window.To, topics)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		timestamps := make(map[uint64]uint64)
		records := make([]model.EventRecord, 0, len(logs))
		var decodeErrors []model.DecodeError
		for _, log := range logs {
			if log.Removed || r.isDuplicate(log) || len(log.Topics) == 0 || !r.registry.CanDecode(log.Topics[0]) {
				continue
			}

			record, err := r.registry.Decode(log)
			if err != nil {
				r.logger.Warn("decode log failed", zap.String("tx_hash", log.TxHash.Hex()), zap.Uint("log_index", log.Index), zap.Error(err))
				decodeErrors = append(decodeErrors, model.DecodeError{
					ChainID:     chainIDValue,
					BlockNumber: log.BlockNumber,
					TxHash:      log.TxHash.Hex(),
					LogIndex:    uint64(log.Index),
					Address:     model.FormatAddress(log.Address),
					Topic0:      log.Topics[0].Hex(),
					Error:       err.Error(),
				})
				continue
			}

			ts, ok := timestamps[log.BlockNumber]
			if !ok {
				ts, err = r.blockTimestampWithRetry(ctx, log.BlockNumber)
				if err != nil {
					return fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
				}
				timestamps[log.BlockNumber] = ts
			}
			record.ChainID = chainIDValue
			record.Timestamp = ts
			records = append(records, record)
		}

		if err := r.sink.PutEvents(ctx, records); err != nil {
			return fmt.Errorf("store events: %w", err)
		}
		if len(decodeErrors) > 0 && r.errors != nil {
			if err := r.errors.PutDecodeErrors(ctx, decodeErrors); err != nil {
				return fmt.Errorf("store decode errors: %w", err)
			}
		}

		if r.checkpoint != nil {
			if err := r.checkpoint.Save(ctx, window.To); err != nil {
				return err
			}
		}

		r.logger.Info("batch complete",
			zap.Int("events", len(records)),
			zap.Int("decode_errors", len(decodeErrors)),
			zap.Uint64("from", window.From),
			zap.Uint64("to", window.To),
		)
	}

	return nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64, topics []common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := chain.WithRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.source.FilterLogs(ctx, fromBlock, toBlock, r.cfg.Addresses, topics)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := chain.WithRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.source.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
