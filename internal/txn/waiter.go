package txn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"campusLedger/internal/model"
)

// DefaultPollInterval is the gap between receipt polls.
const DefaultPollInterval = time.Second

// ReceiptSource looks up receipts. A pending transaction is reported as
// ethereum.NotFound or a nil receipt.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Waiter polls for a receipt until it is mined or the attempt budget runs out.
type Waiter struct {
	source   ReceiptSource
	interval time.Duration
	attempts int
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewWaiter builds a Waiter that polls every interval for at most timeout.
func NewWaiter(source ReceiptSource, timeout, interval time.Duration, logger *zap.Logger) *Waiter {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	attempts := int(timeout / interval)
	if timeout%interval != 0 {
		attempts++
	}
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Waiter{
		source:   source,
		interval: interval,
		attempts: attempts,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Attempts returns the poll budget.
func (w *Waiter) Attempts() int {
	return w.attempts
}

// Wait returns the receipt of a successful transaction. A mined failure
// yields *model.RevertedError, an exhausted budget *model.TimeoutError.
// Cancelling ctx only stops watching; the broadcast transaction stands.
func (w *Waiter) Wait(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	for attempt := 1; ; attempt++ {
		receipt, err := w.source.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil && receipt != nil:
			return w.classify(txHash, receipt, attempt)
		case err != nil && !errors.Is(err, ethereum.NotFound):
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("stop watching %s: %w", txHash.Hex(), ctxErr)
			}
			return nil, fmt.Errorf("receipt %s: %w", txHash.Hex(), err)
		}

		if attempt >= w.attempts {
			w.logger.Warn("receipt wait timed out",
				zap.String("tx_hash", txHash.Hex()),
				zap.Int("attempts", attempt),
			)
			return nil, &model.TimeoutError{TxHash: txHash.Hex(), Attempts: attempt}
		}

		w.logger.Debug("receipt pending", zap.String("tx_hash", txHash.Hex()), zap.Int("attempt", attempt))
		if err := w.sleep(ctx, w.interval); err != nil {
			return nil, fmt.Errorf("stop watching %s: %w", txHash.Hex(), err)
		}
	}
}

func (w *Waiter) classify(txHash common.Hash, receipt *types.Receipt, attempt int) (*types.Receipt, error) {
	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		w.logger.Warn("transaction reverted",
			zap.String("tx_hash", txHash.Hex()),
			zap.Uint64("block", block),
			zap.Uint64("gas_used", receipt.GasUsed),
		)
		return nil, &model.RevertedError{TxHash: txHash.Hex(), BlockNumber: block, GasUsed: receipt.GasUsed}
	}
	w.logger.Info("transaction confirmed",
		zap.String("tx_hash", txHash.Hex()),
		zap.Uint64("block", block),
		zap.Uint64("gas_used", receipt.GasUsed),
		zap.Int("attempts", attempt),
	)
	return receipt, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
