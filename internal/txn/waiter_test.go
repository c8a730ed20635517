package txn

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"campusLedger/internal/model"
)

type scriptedReceipts struct {
	pending int
	receipt *types.Receipt
	err     error
	polls   int
}

func (s *scriptedReceipts) TransactionReceipt(ctx context.Context, _ common.Hash) (*types.Receipt, error) {
	s.polls++
	if s.err != nil {
		return nil, s.err
	}
	if s.receipt == nil || s.polls <= s.pending {
		if s.polls%2 == 0 {
			return nil, nil
		}
		return nil, ethereum.NotFound
	}
	return s.receipt, nil
}

func newTestWaiter(source ReceiptSource, timeoutSeconds int) (*Waiter, *int) {
	w := NewWaiter(source, time.Duration(timeoutSeconds)*time.Second, time.Second, nil)
	sleeps := 0
	w.sleep = func(ctx context.Context, d time.Duration) error {
		if d != time.Second {
			return errors.New("unexpected interval")
		}
		sleeps++
		return ctx.Err()
	}
	return w, &sleeps
}

func TestWaiterReturnsReceiptAfterPendingPolls(t *testing.T) {
	receipt := &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(10), GasUsed: 21000}
	source := &scriptedReceipts{pending: 3, receipt: receipt}
	w, sleeps := newTestWaiter(source, 60)

	got, err := w.Wait(context.Background(), common.HexToHash("0x01"))
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got != receipt {
		t.Fatalf("receipt mismatch")
	}
	if *sleeps != 3 || source.polls != 4 {
		t.Fatalf("expected 3 intervals and 4 polls, got %d and %d", *sleeps, source.polls)
	}
}

func TestWaiterTimesOutAfterBudget(t *testing.T) {
	source := &scriptedReceipts{}
	w, _ := newTestWaiter(source, 5)

	_, err := w.Wait(context.Background(), common.HexToHash("0x02"))
	var timeoutErr *model.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if timeoutErr.Attempts != 5 || source.polls != 5 {
		t.Fatalf("expected exactly 5 attempts, got %d (polls %d)", timeoutErr.Attempts, source.polls)
	}
	if errors.Is(err, model.ErrTransactionReverted) {
		t.Fatalf("timeout must not look like a revert")
	}
}

func TestWaiterReverted(t *testing.T) {
	receipt := &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(11), GasUsed: 50000}
	w, _ := newTestWaiter(&scriptedReceipts{receipt: receipt}, 60)

	_, err := w.Wait(context.Background(), common.HexToHash("0x03"))
	var reverted *model.RevertedError
	if !errors.As(err, &reverted) {
		t.Fatalf("expected revert, got %v", err)
	}
	if reverted.BlockNumber != 11 || reverted.GasUsed != 50000 {
		t.Fatalf("revert details mismatch: %+v", reverted)
	}
	if errors.Is(err, model.ErrReceiptTimeout) {
		t.Fatalf("revert must not look like a timeout")
	}
}

func TestWaiterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w, _ := newTestWaiter(&scriptedReceipts{}, 60)
	_, err := w.Wait(ctx, common.HexToHash("0x04"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if errors.Is(err, model.ErrReceiptTimeout) || errors.Is(err, model.ErrTransactionReverted) {
		t.Fatalf("cancellation must be distinguishable")
	}
}

func TestWaiterNodeError(t *testing.T) {
	w, _ := newTestWaiter(&scriptedReceipts{err: errors.New("connection refused")}, 60)
	_, err := w.Wait(context.Background(), common.HexToHash("0x05"))
	if err == nil || errors.Is(err, model.ErrReceiptTimeout) {
		t.Fatalf("expected node error, got %v", err)
	}
}

func TestNewWaiterAttempts(t *testing.T) {
	if got := NewWaiter(nil, 60*time.Second, time.Second, nil).Attempts(); got != 60 {
		t.Fatalf("expected 60 attempts, got %d", got)
	}
	if got := NewWaiter(nil, 1500*time.Millisecond, time.Second, nil).Attempts(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
	if got := NewWaiter(nil, 0, 0, nil).Attempts(); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}
