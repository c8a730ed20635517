package anchor

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"campusLedger/internal/contracts"
	"campusLedger/internal/fee"
	"campusLedger/internal/model"
	"campusLedger/internal/txn"
)

var (
	credentialAddr = common.HexToAddress("0x5555555555555555555555555555555555555555")
	attendanceAddr = common.HexToAddress("0x7777777777777777777777777777777777777777")
	studentAddr    = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

type fakeNode struct {
	mu sync.Mutex

	chainID   *big.Int
	code      map[common.Address][]byte
	responses map[string][]byte
	callErr   error
	callCount int
	sendErr   error
	sent      []*types.Transaction
	receipt   func(tx *types.Transaction) *types.Receipt
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		chainID: big.NewInt(1337),
		code: map[common.Address][]byte{
			credentialAddr: {0x60, 0x80},
			attendanceAddr: {0x60, 0x80},
		},
		responses: make(map[string][]byte),
		receipt: func(tx *types.Transaction) *types.Receipt {
			return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: tx.Hash(), BlockNumber: big.NewInt(10), GasUsed: 21000}
		},
	}
}

func (n *fakeNode) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) { return 100000, nil }
func (n *fakeNode) SuggestGasPrice(context.Context) (*big.Int, error)             { return big.NewInt(5), nil }
func (n *fakeNode) SuggestGasTipCap(context.Context) (*big.Int, error)            { return big.NewInt(2), nil }
func (n *fakeNode) BaseFee(context.Context) (*big.Int, error)                     { return big.NewInt(10), nil }
func (n *fakeNode) GetChainID(context.Context) (*big.Int, error)                  { return n.chainID, nil }

func (n *fakeNode) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return uint64(len(n.sent)), nil
}

func (n *fakeNode) SendTransaction(_ context.Context, tx *types.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return n.sendErr
	}
	n.sent = append(n.sent, tx)
	return nil
}

func (n *fakeNode) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, tx := range n.sent {
		if tx.Hash() == hash {
			return n.receipt(tx), nil
		}
	}
	return nil, ethereum.NotFound
}

func (n *fakeNode) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.callCount++
	if n.callErr != nil {
		return nil, n.callErr
	}
	return n.responses[hex.EncodeToString(msg.Data[:4])], nil
}

func (n *fakeNode) CodeAt(_ context.Context, address common.Address) ([]byte, error) {
	return n.code[address], nil
}

func (n *fakeNode) respond(t *testing.T, contractABI abi.ABI, method string, values ...interface{}) {
	t.Helper()
	out, err := contractABI.Methods[method].Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	n.responses[hex.EncodeToString(contractABI.Methods[method].ID)] = out
}

func newTestClient(t *testing.T, node *fakeNode, overrides fee.Overrides) *Client {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	client, err := NewClient(context.Background(), node, txn.NewAccountFromKey(key, big.NewInt(1337)), Options{
		CredentialContract: credentialAddr,
		AttendanceContract: attendanceAddr,
		Fees:               overrides,
		ReceiptTimeout:     20 * time.Millisecond,
		PollInterval:       time.Millisecond,
		ReadRetries:        2,
		ReadRetryBackoff:   time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func mustABI(t *testing.T, load func() (abi.ABI, error)) abi.ABI {
	t.Helper()
	parsed, err := load()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	return parsed
}

func credentialIssuedLog(t *testing.T, id int64, student common.Address, credType string) *types.Log {
	t.Helper()
	event := mustABI(t, contracts.CredentialABI).Events[contracts.EventCredentialIssued]
	data, err := event.Inputs.NonIndexed().Pack(credType)
	if err != nil {
		t.Fatalf("pack event: %v", err)
	}
	return &types.Log{
		Address: credentialAddr,
		Topics: []common.Hash{
			event.ID,
			common.BigToHash(big.NewInt(id)),
			common.BytesToHash(student.Bytes()),
			common.BytesToHash(common.HexToAddress("0x9999999999999999999999999999999999999999").Bytes()),
		},
		Data: data,
	}
}

func TestNewClientChainIDMismatch(t *testing.T) {
	node := newFakeNode()
	key, _ := crypto.GenerateKey()
	_, err := NewClient(context.Background(), node, txn.NewAccountFromKey(key, big.NewInt(1)), Options{}, nil)
	if err == nil {
		t.Fatalf("expected chain id mismatch")
	}
}

func TestIssueCredentialCorrelatesEvent(t *testing.T) {
	node := newFakeNode()
	node.receipt = func(tx *types.Transaction) *types.Receipt {
		return &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			TxHash:      tx.Hash(),
			BlockNumber: big.NewInt(12),
			GasUsed:     90000,
			Logs:        []*types.Log{credentialIssuedLog(t, 42, studentAddr, "SubjectCompletion")},
		}
	}
	client := newTestClient(t, node, fee.Overrides{})

	result, err := client.IssueCredential(context.Background(), "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", "SubjectCompletion", "{}", big.NewInt(0))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if result.LedgerID == nil || result.LedgerID.Int64() != 42 {
		t.Fatalf("expected ledger id 42, got %v", result.LedgerID)
	}
	if result.BestEffort || result.Warning != nil {
		t.Fatalf("event-derived id must not be best effort: %+v", result)
	}
	if result.BlockNumber != 12 || result.GasUsed != 90000 {
		t.Fatalf("receipt details missing: %+v", result)
	}
	if len(node.sent) != 1 || result.TxHash != node.sent[0].Hash() {
		t.Fatalf("expected exactly one broadcast")
	}
	tx := node.sent[0]
	if tx.Type() != types.LegacyTxType || tx.GasPrice().Int64() != 5 || tx.Gas() != 120000 {
		t.Fatalf("unexpected fee fields: type=%d price=%v gas=%d", tx.Type(), tx.GasPrice(), tx.Gas())
	}
}

func TestIssueCredentialFallsBackToCount(t *testing.T) {
	node := newFakeNode()
	client := newTestClient(t, node, fee.Overrides{MaxPriorityFeePerGas: big.NewInt(3)})
	node.respond(t, client.credential.ABI, contracts.MethodCredentialCount, big.NewInt(7))

	result, err := client.IssueCredential(context.Background(), studentAddr.Hex(), "Degree", "{}", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !result.BestEffort || result.LedgerID == nil || result.LedgerID.Int64() != 7 {
		t.Fatalf("expected best-effort id 7, got %+v", result)
	}
	if !errors.Is(result.Warning, model.ErrEventNotFound) {
		t.Fatalf("expected event-not-found warning, got %v", result.Warning)
	}
	if node.sent[0].Type() != types.DynamicFeeTxType {
		t.Fatalf("priority fee override must select dynamic pricing")
	}
}

func TestIssueCredentialRejectsBadAddress(t *testing.T) {
	node := newFakeNode()
	client := newTestClient(t, node, fee.Overrides{})

	_, err := client.IssueCredential(context.Background(), "0x1234", "Degree", "{}", nil)
	if !errors.Is(err, model.ErrInvalidAddressFormat) {
		t.Fatalf("expected invalid address, got %v", err)
	}
	if len(node.sent) != 0 {
		t.Fatalf("nothing should be broadcast")
	}
}

func TestWriteContractNotDeployed(t *testing.T) {
	node := newFakeNode()
	delete(node.code, credentialAddr)
	client := newTestClient(t, node, fee.Overrides{})

	_, err := client.RevokeCredential(context.Background(), big.NewInt(1))
	if !errors.Is(err, model.ErrContractNotDeployed) {
		t.Fatalf("expected not deployed, got %v", err)
	}
	if len(node.sent) != 0 {
		t.Fatalf("nothing should be broadcast")
	}
}

func TestRevokeCredentialReverted(t *testing.T) {
	node := newFakeNode()
	node.receipt = func(tx *types.Transaction) *types.Receipt {
		return &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: tx.Hash(), BlockNumber: big.NewInt(9), GasUsed: 30000}
	}
	client := newTestClient(t, node, fee.Overrides{})

	result, err := client.RevokeCredential(context.Background(), big.NewInt(3))
	if !errors.Is(err, model.ErrTransactionReverted) {
		t.Fatalf("expected revert, got %v", err)
	}
	if errors.Is(err, model.ErrReceiptTimeout) {
		t.Fatalf("revert must be distinguishable from timeout")
	}
	if result.TxHash == (common.Hash{}) || result.BlockNumber != 9 || result.GasUsed != 30000 {
		t.Fatalf("reverted result should keep hash and receipt details: %+v", result)
	}
}

func TestWriteTimeoutKeepsHash(t *testing.T) {
	node := newFakeNode()
	node.receipt = func(*types.Transaction) *types.Receipt { return nil }
	client := newTestClient(t, node, fee.Overrides{})

	result, err := client.UpdateAttendance(context.Background(), big.NewInt(5), model.AttendanceExcused, "late note")
	if !errors.Is(err, model.ErrReceiptTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if result.TxHash != node.sent[0].Hash() {
		t.Fatalf("timeout must still return the broadcast hash")
	}
}

func TestMarkAttendanceEncodesStatus(t *testing.T) {
	node := newFakeNode()
	client := newTestClient(t, node, fee.Overrides{})
	attABI := client.attendance.ABI
	node.respond(t, attABI, contracts.MethodRecordCount, big.NewInt(77))

	event := attABI.Events[contracts.EventAttendanceMarked]
	eventData, err := event.Inputs.NonIndexed().Pack(uint8(model.AttendanceExcused), studentAddr)
	if err != nil {
		t.Fatalf("pack event: %v", err)
	}
	node.receipt = func(tx *types.Transaction) *types.Receipt {
		return &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			TxHash:      tx.Hash(),
			BlockNumber: big.NewInt(20),
			Logs: []*types.Log{{
				Address: attendanceAddr,
				Topics: []common.Hash{
					event.ID,
					common.BigToHash(big.NewInt(15)),
					common.BigToHash(big.NewInt(301)),
					common.BytesToHash(studentAddr.Bytes()),
				},
				Data: eventData,
			}},
		}
	}

	result, err := client.MarkAttendance(context.Background(), AttendanceMark{
		ClassID:        big.NewInt(301),
		StudentAddress: studentAddr.Hex(),
		SessionDate:    big.NewInt(1704067200),
		Status:         model.AttendanceStatusFor(false, true),
		Notes:          "doctor",
	})
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if result.BestEffort || result.LedgerID.Int64() != 15 {
		t.Fatalf("expected record id 15 from event, got %+v", result)
	}

	args, err := attABI.Methods[contracts.MethodMarkAttendance].Inputs.Unpack(node.sent[0].Data()[4:])
	if err != nil {
		t.Fatalf("unpack calldata: %v", err)
	}
	if status := args[3].(uint8); status != 3 {
		t.Fatalf("expected status byte 3, got %d", status)
	}
}

func TestVerifyCredential(t *testing.T) {
	node := newFakeNode()
	client := newTestClient(t, node, fee.Overrides{})
	node.respond(t, client.credential.ABI, contracts.MethodVerifyCredential, true)

	valid, err := client.VerifyCredential(context.Background(), big.NewInt(1))
	if err != nil || !valid {
		t.Fatalf("expected valid credential, got %v %v", valid, err)
	}
}

func TestGetCredential(t *testing.T) {
	node := newFakeNode()
	client := newTestClient(t, node, fee.Overrides{})
	node.respond(t, client.credential.ABI, contracts.MethodGetCredential, struct {
		CredentialId   *big.Int
		StudentAddress common.Address
		CredentialType string
		CredentialData string
		Status         uint8
		IssuedBy       common.Address
		IssuedAt       *big.Int
		ExpiresAt      *big.Int
	}{
		CredentialId:   big.NewInt(42),
		StudentAddress: studentAddr,
		CredentialType: "SubjectCompletion",
		CredentialData: "{}",
		Status:         1,
		IssuedBy:       common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		IssuedAt:       big.NewInt(1700000000),
		ExpiresAt:      big.NewInt(0),
	})

	rec, err := client.GetCredential(context.Background(), big.NewInt(42))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.CredentialID.Int64() != 42 || rec.StudentAddress != "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" || rec.CredentialType != "SubjectCompletion" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestReadEmptyResponseChecksDeployment(t *testing.T) {
	node := newFakeNode()
	client := newTestClient(t, node, fee.Overrides{})

	_, err := client.GetAttendanceRecord(context.Background(), big.NewInt(1))
	if !errors.Is(err, model.ErrAbiDecode) {
		t.Fatalf("expected decode error for empty response, got %v", err)
	}

	delete(node.code, attendanceAddr)
	_, err = client.GetAttendanceRecord(context.Background(), big.NewInt(1))
	if !errors.Is(err, model.ErrContractNotDeployed) {
		t.Fatalf("expected not deployed, got %v", err)
	}
}

func TestReadRetries(t *testing.T) {
	node := newFakeNode()
	node.callErr = errors.New("connection reset")
	client := newTestClient(t, node, fee.Overrides{})

	if _, err := client.VerifyCredential(context.Background(), big.NewInt(1)); err == nil {
		t.Fatalf("expected error")
	}
	if node.callCount != 3 {
		t.Fatalf("expected 3 attempts, got %d", node.callCount)
	}
}

func TestAttendanceRejectsUnwritableStatus(t *testing.T) {
	node := newFakeNode()
	client := newTestClient(t, node, fee.Overrides{})

	for _, status := range []model.AttendanceStatus{model.AttendanceReserved, 9} {
		_, err := client.MarkAttendance(context.Background(), AttendanceMark{
			ClassID:        big.NewInt(301),
			StudentAddress: studentAddr.Hex(),
			SessionDate:    big.NewInt(1704067200),
			Status:         status,
		})
		if !errors.Is(err, model.ErrInvalidAttendanceStatus) {
			t.Fatalf("mark with status %d: expected invalid status, got %v", status, err)
		}

		_, err = client.UpdateAttendance(context.Background(), big.NewInt(5), status, "")
		if !errors.Is(err, model.ErrInvalidAttendanceStatus) {
			t.Fatalf("update with status %d: expected invalid status, got %v", status, err)
		}
	}
	if len(node.sent) != 0 {
		t.Fatalf("nothing should be broadcast, got %d", len(node.sent))
	}
}

func TestWriteUnknownBroadcastKeepsHash(t *testing.T) {
	node := newFakeNode()
	node.sendErr = fmt.Errorf("post: %w", context.DeadlineExceeded)
	client := newTestClient(t, node, fee.Overrides{})

	result, err := client.RevokeCredential(context.Background(), big.NewInt(4))
	if !errors.Is(err, model.ErrBroadcastUnknown) {
		t.Fatalf("expected unknown broadcast, got %v", err)
	}
	if errors.Is(err, model.ErrTransactionRejected) {
		t.Fatalf("transport failure must not read as a rejection")
	}
	if result.TxHash == (common.Hash{}) {
		t.Fatalf("a possibly broadcast write must carry its hash")
	}
}

type revertError struct{}

func (revertError) Error() string          { return "execution reverted: unknown credential" }
func (revertError) ErrorCode() int         { return 3 }
func (revertError) ErrorData() interface{} { return "0x08c379a0" }

func TestReadRevertIsNotRetried(t *testing.T) {
	node := newFakeNode()
	node.callErr = revertError{}
	client := newTestClient(t, node, fee.Overrides{})

	if _, err := client.GetCredential(context.Background(), big.NewInt(404)); err == nil {
		t.Fatalf("expected revert error")
	}
	if node.callCount != 1 {
		t.Fatalf("revert should not be retried, got %d calls", node.callCount)
	}
}
