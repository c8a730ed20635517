package anchor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"campusLedger/internal/chain"
	"campusLedger/internal/contracts"
	"campusLedger/internal/events"
	"campusLedger/internal/fee"
	"campusLedger/internal/model"
	"campusLedger/internal/txn"
)

// Node is the subset of the chain client the façade drives.
type Node interface {
	fee.Source
	txn.Sender
	txn.ReceiptSource
	GetChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, address common.Address) ([]byte, error)
}

// Options holds the read-only settings of a Client.
type Options struct {
	CredentialContract common.Address
	AttendanceContract common.Address
	Fees               fee.Overrides
	ReceiptTimeout     time.Duration
	PollInterval       time.Duration
	ReadRetries        int
	ReadRetryBackoff   time.Duration
}

// DefaultReceiptTimeout bounds the receipt wait when Options leaves it unset.
const DefaultReceiptTimeout = 60 * time.Second

// Contract pairs a deployed address with its ABI.
type Contract struct {
	Address common.Address
	ABI     abi.ABI
}

// WriteResult describes a broadcast write. TxHash is set whenever the
// transaction reached or may have reached the node, including when the send
// outcome is unknown or the wait failed.
type WriteResult struct {
	TxHash      common.Hash
	LedgerID    *big.Int
	BestEffort  bool
	BlockNumber uint64
	GasUsed     uint64
	// Warning carries non-fatal degradation such as model.ErrEventNotFound.
	Warning error
}

// Client composes fee resolution, submission, receipt waiting and event
// correlation into the credential and attendance operations.
type Client struct {
	node       Node
	account    *txn.Account
	credential Contract
	attendance Contract
	fees       *fee.Strategy
	submitter  *txn.Submitter
	waiter     *txn.Waiter
	retries    int
	backoff    time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	deployed map[common.Address]bool
}

// NewClient verifies the node serves the account's chain and wires the
// pipeline. It does not touch the contracts until the first call.
func NewClient(ctx context.Context, node Node, account *txn.Account, opts Options, logger *zap.Logger) (*Client, error) {
	if node == nil {
		return nil, fmt.Errorf("node is required")
	}
	if account == nil {
		return nil, fmt.Errorf("signing account is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	chainID, err := node.GetChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if chainID.Cmp(account.ChainID()) != 0 {
		return nil, fmt.Errorf("chain id mismatch: configured %s, node reports %s", account.ChainID(), chainID)
	}

	credentialABI, err := contracts.CredentialABI()
	if err != nil {
		return nil, err
	}
	attendanceABI, err := contracts.AttendanceABI()
	if err != nil {
		return nil, err
	}

	timeout := opts.ReceiptTimeout
	if timeout <= 0 {
		timeout = DefaultReceiptTimeout
	}

	return &Client{
		node:       node,
		account:    account,
		credential: Contract{Address: opts.CredentialContract, ABI: credentialABI},
		attendance: Contract{Address: opts.AttendanceContract, ABI: attendanceABI},
		fees:       fee.NewStrategy(opts.Fees, node, logger),
		submitter:  txn.NewSubmitter(node, logger),
		waiter:     txn.NewWaiter(node, timeout, opts.PollInterval, logger),
		retries:    opts.ReadRetries,
		backoff:    opts.ReadRetryBackoff,
		logger:     logger,
		deployed:   make(map[common.Address]bool),
	}, nil
}

// Account returns the signing account.
func (c *Client) Account() *txn.Account {
	return c.account
}

// FeeMode reports the pricing mode implied by the configured overrides.
func (c *Client) FeeMode() fee.Mode {
	return c.fees.Mode()
}

// write runs resolve, submit and wait for one call. The returned result
// carries the hash once broadcast even if err is non-nil.
func (c *Client) write(ctx context.Context, contract Contract, method string, args ...interface{}) (WriteResult, *types.Receipt, error) {
	if err := c.ensureDeployed(ctx, contract.Address); err != nil {
		return WriteResult{}, nil, err
	}

	req := txn.Request{To: contract.Address, ABI: &contract.ABI, Method: method, Args: args}
	msg, err := req.CallMsg(c.account.Address())
	if err != nil {
		return WriteResult{}, nil, err
	}
	params, err := c.fees.Resolve(ctx, msg)
	if err != nil {
		return WriteResult{}, nil, fmt.Errorf("%s: %w", method, err)
	}
	req.Fee = params

	hash, err := c.submitter.Submit(ctx, c.account, req)
	if err != nil {
		if errors.Is(err, model.ErrBroadcastUnknown) {
			return WriteResult{TxHash: hash}, nil, err
		}
		return WriteResult{}, nil, err
	}
	result := WriteResult{TxHash: hash}

	receipt, err := c.waiter.Wait(ctx, hash)
	if err != nil {
		var reverted *model.RevertedError
		if errors.As(err, &reverted) {
			result.BlockNumber = reverted.BlockNumber
			result.GasUsed = reverted.GasUsed
		}
		return result, nil, fmt.Errorf("%s: %w", method, err)
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	result.GasUsed = receipt.GasUsed
	return result, receipt, nil
}

// correlate fills the ledger id of a confirmed write.
func (c *Client) correlate(ctx context.Context, result *WriteResult, receipt *types.Receipt, contract Contract, event, idField, countMethod string, keys []events.Key) {
	fallback := func(ctx context.Context) (*big.Int, error) {
		return c.readUint(ctx, contract, countMethod)
	}
	correlator := events.NewCorrelator(contract.Address, contract.ABI.Events[event], idField, fallback, c.logger)
	corr := correlator.Correlate(ctx, receipt, keys)
	result.LedgerID = corr.LedgerID
	result.BestEffort = corr.BestEffort
	result.Warning = corr.Warning
}

// call performs a read-only call with retries. An empty response triggers a
// deployment check so a missing contract is reported as such.
func (c *Client) call(ctx context.Context, contract Contract, method string, args ...interface{}) ([]byte, error) {
	data, err := contract.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	to := contract.Address
	msg := ethereum.CallMsg{From: c.account.Address(), To: &to, Data: data}

	var out []byte
	err = chain.WithRetry(ctx, c.retries, c.backoff, func(ctx context.Context) error {
		var callErr error
		out, callErr = c.node.CallContract(ctx, msg, nil)
		if isRevert(callErr) {
			return chain.Permanent(callErr)
		}
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(out) == 0 {
		if err := c.checkCode(ctx, contract.Address); err != nil {
			return nil, err
		}
		return nil, &model.AbiDecodeError{Field: method, Reason: "empty response"}
	}
	return out, nil
}

func (c *Client) readUint(ctx context.Context, contract Contract, method string, args ...interface{}) (*big.Int, error) {
	out, err := c.call(ctx, contract, method, args...)
	if err != nil {
		return nil, err
	}
	values, err := contract.ABI.Unpack(method, out)
	if err != nil {
		return nil, &model.AbiDecodeError{Field: method, Reason: err.Error()}
	}
	if len(values) != 1 {
		return nil, &model.AbiDecodeError{Field: method, Reason: fmt.Sprintf("expected 1 value, got %d", len(values))}
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, &model.AbiDecodeError{Field: method, Reason: fmt.Sprintf("unexpected type %T", values[0])}
	}
	return v, nil
}

func (c *Client) ensureDeployed(ctx context.Context, address common.Address) error {
	c.mu.Lock()
	known := c.deployed[address]
	c.mu.Unlock()
	if known {
		return nil
	}
	if err := c.checkCode(ctx, address); err != nil {
		return err
	}
	c.mu.Lock()
	c.deployed[address] = true
	c.mu.Unlock()
	return nil
}

func (c *Client) checkCode(ctx context.Context, address common.Address) error {
	if address == (common.Address{}) {
		return fmt.Errorf("%w: contract address is not configured", model.ErrContractNotDeployed)
	}
	var code []byte
	err := chain.WithRetry(ctx, c.retries, c.backoff, func(ctx context.Context) error {
		var codeErr error
		code, codeErr = c.node.CodeAt(ctx, address)
		return codeErr
	})
	if err != nil {
		return fmt.Errorf("get code %s: %w", model.FormatAddress(address), err)
	}
	if len(code) == 0 {
		return fmt.Errorf("%w: no code at %s", model.ErrContractNotDeployed, model.FormatAddress(address))
	}
	return nil
}

// isRevert reports errors raised by the contract itself.
func isRevert(err error) bool {
	if err == nil {
		return false
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}
