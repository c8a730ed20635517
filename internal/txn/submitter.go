package txn

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"campusLedger/internal/fee"
	"campusLedger/internal/model"
)

// Sender is the node surface needed to broadcast.
type Sender interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Submitter signs and broadcasts requests. It never retries. A node-level
// refusal surfaces as model.ErrTransactionRejected; a failure below the node
// (transport, deadline) as model.ErrBroadcastUnknown. Once signed, the hash is
// returned with either error so callers can track a possible broadcast.
type Submitter struct {
	sender Sender
	logger *zap.Logger
}

// NewSubmitter builds a Submitter.
func NewSubmitter(sender Sender, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{sender: sender, logger: logger}
}

// Submit broadcasts exactly one transaction for req and returns its hash.
func (s *Submitter) Submit(ctx context.Context, account *Account, req Request) (common.Hash, error) {
	if account == nil {
		return common.Hash{}, fmt.Errorf("signing account is nil")
	}
	if err := req.Fee.Validate(); err != nil {
		return common.Hash{}, fmt.Errorf("fee params: %w", err)
	}
	data, err := req.Calldata()
	if err != nil {
		return common.Hash{}, err
	}

	account.mu.Lock()
	defer account.mu.Unlock()

	nonce, err := s.sender.PendingNonceAt(ctx, account.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}

	tx, err := account.sign(BuildTx(nonce, account.chainID, req.To, data, req.Fee))
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign %s: %w", req.Method, err)
	}

	if err := s.sender.SendTransaction(ctx, tx); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return tx.Hash(), fmt.Errorf("%w: %s: %w", model.ErrTransactionRejected, req.Method, err)
		}
		s.logger.Warn("broadcast outcome unknown",
			zap.String("method", req.Method),
			zap.String("tx_hash", tx.Hash().Hex()),
			zap.Uint64("nonce", nonce),
			zap.Error(err),
		)
		return tx.Hash(), fmt.Errorf("%w: %s %s: %w", model.ErrBroadcastUnknown, req.Method, tx.Hash().Hex(), err)
	}

	s.logger.Info("transaction submitted",
		zap.String("method", req.Method),
		zap.String("to", model.FormatAddress(req.To)),
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.String("fee_mode", req.Fee.Mode.String()),
		zap.Uint64("gas_limit", req.Fee.GasLimit),
	)
	return tx.Hash(), nil
}

// BuildTx shapes an unsigned transaction for the fee mode.
func BuildTx(nonce uint64, chainID *big.Int, to common.Address, data []byte, params fee.Params) *types.Transaction {
	if params.Mode == fee.ModeDynamic {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   new(big.Int).Set(chainID),
			Nonce:     nonce,
			GasTipCap: new(big.Int).Set(params.MaxPriorityFeePerGas),
			GasFeeCap: new(big.Int).Set(params.MaxFeePerGas),
			Gas:       params.GasLimit,
			To:        &to,
			Value:     new(big.Int),
			Data:      data,
		})
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: new(big.Int).Set(params.GasPrice),
		Gas:      params.GasLimit,
		To:       &to,
		Value:    new(big.Int),
		Data:     data,
	})
}
