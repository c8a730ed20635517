package txn

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"campusLedger/internal/contracts"
	"campusLedger/internal/fee"
	"campusLedger/internal/model"
)

// recordingSender behaves like a node pool: an accepted transaction bumps
// the pending nonce unless frozen is set.
type recordingSender struct {
	mu        sync.Mutex
	pending   uint64
	frozen    bool
	sendErr   error
	attempted []*types.Transaction
	sent      []*types.Transaction
}

func (s *recordingSender) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, nil
}

func (s *recordingSender) SendTransaction(_ context.Context, tx *types.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempted = append(s.attempted, tx)
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, tx)
	if !s.frozen {
		s.pending = tx.Nonce() + 1
	}
	return nil
}

type nodeError struct {
	code int
	msg  string
}

func (e *nodeError) Error() string  { return e.msg }
func (e *nodeError) ErrorCode() int { return e.code }

func testAccount(t *testing.T) *Account {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return NewAccountFromKey(key, big.NewInt(1337))
}

func revokeRequest(t *testing.T, params fee.Params) Request {
	t.Helper()
	credABI, err := contracts.CredentialABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	return Request{
		To:     common.HexToAddress("0x5555555555555555555555555555555555555555"),
		ABI:    &credABI,
		Method: contracts.MethodRevokeCredential,
		Args:   []interface{}{big.NewInt(9)},
		Fee:    params,
	}
}

func TestSubmitLegacy(t *testing.T) {
	account := testAccount(t)
	sender := &recordingSender{pending: 4}
	req := revokeRequest(t, fee.Params{Mode: fee.ModeLegacy, GasLimit: 60000, GasPrice: big.NewInt(2_000_000_000)})

	hash, err := NewSubmitter(sender, nil).Submit(context.Background(), account, req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(hash.Hex()) != 66 {
		t.Fatalf("hash format: %s", hash.Hex())
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly one broadcast, got %d", len(sender.sent))
	}

	tx := sender.sent[0]
	if tx.Type() != types.LegacyTxType || tx.GasPrice().Int64() != 2_000_000_000 || tx.Gas() != 60000 || tx.Nonce() != 4 {
		t.Fatalf("legacy tx mismatch: type=%d price=%s gas=%d nonce=%d", tx.Type(), tx.GasPrice(), tx.Gas(), tx.Nonce())
	}
	if tx.Hash() != hash {
		t.Fatalf("returned hash does not match broadcast")
	}

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1337)), tx)
	if err != nil || from != account.Address() {
		t.Fatalf("signature does not recover sender: %v", err)
	}
}

func TestSubmitDynamic(t *testing.T) {
	account := testAccount(t)
	sender := &recordingSender{}
	req := revokeRequest(t, fee.Params{
		Mode:                 fee.ModeDynamic,
		GasLimit:             60000,
		MaxFeePerGas:         big.NewInt(30),
		MaxPriorityFeePerGas: big.NewInt(2),
	})

	if _, err := NewSubmitter(sender, nil).Submit(context.Background(), account, req); err != nil {
		t.Fatalf("submit: %v", err)
	}

	tx := sender.sent[0]
	if tx.Type() != types.DynamicFeeTxType {
		t.Fatalf("expected dynamic fee tx, got type %d", tx.Type())
	}
	if tx.GasFeeCap().Int64() != 30 || tx.GasTipCap().Int64() != 2 || tx.ChainId().Int64() != 1337 {
		t.Fatalf("dynamic fields mismatch")
	}
}

func TestSubmitRejected(t *testing.T) {
	account := testAccount(t)
	sender := &recordingSender{pending: 3, sendErr: &nodeError{code: -32000, msg: "insufficient funds for gas * price + value"}}
	req := revokeRequest(t, fee.Params{Mode: fee.ModeLegacy, GasLimit: 60000, GasPrice: big.NewInt(1)})

	hash, err := NewSubmitter(sender, nil).Submit(context.Background(), account, req)
	if !errors.Is(err, model.ErrTransactionRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if errors.Is(err, model.ErrBroadcastUnknown) {
		t.Fatalf("a node refusal is not an unknown outcome")
	}
	if hash != sender.attempted[0].Hash() {
		t.Fatalf("signed hash should accompany the rejection")
	}

	// the next write reuses the nonce the node still reports
	sender.sendErr = nil
	if _, err := NewSubmitter(sender, nil).Submit(context.Background(), account, req); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sender.sent[0].Nonce() != 3 {
		t.Fatalf("expected nonce 3, got %d", sender.sent[0].Nonce())
	}
}

func TestSubmitTransportFailureKeepsHash(t *testing.T) {
	account := testAccount(t)
	sender := &recordingSender{sendErr: context.DeadlineExceeded}
	req := revokeRequest(t, fee.Params{Mode: fee.ModeLegacy, GasLimit: 60000, GasPrice: big.NewInt(1)})

	hash, err := NewSubmitter(sender, nil).Submit(context.Background(), account, req)
	if !errors.Is(err, model.ErrBroadcastUnknown) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected unknown broadcast wrapping the deadline, got %v", err)
	}
	if errors.Is(err, model.ErrTransactionRejected) {
		t.Fatalf("transport failure must not read as a node rejection")
	}
	if hash == (common.Hash{}) || hash != sender.attempted[0].Hash() {
		t.Fatalf("expected the signed hash, got %s", hash.Hex())
	}
}

func TestSubmitFollowsNodeNonce(t *testing.T) {
	account := testAccount(t)
	// the first broadcast is dropped from the pool, so pending never moves
	sender := &recordingSender{frozen: true}
	submitter := NewSubmitter(sender, nil)
	req := revokeRequest(t, fee.Params{Mode: fee.ModeLegacy, GasLimit: 60000, GasPrice: big.NewInt(1)})

	for i := 0; i < 3; i++ {
		if _, err := submitter.Submit(context.Background(), account, req); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	for i, tx := range sender.sent {
		if tx.Nonce() != 0 {
			t.Fatalf("submit %d used nonce %d, want the node's pending nonce 0", i, tx.Nonce())
		}
	}

	sender.frozen = false
	sender.pending = 7
	if _, err := submitter.Submit(context.Background(), account, req); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := sender.sent[len(sender.sent)-1].Nonce(); got != 7 {
		t.Fatalf("expected nonce 7, got %d", got)
	}
}

func TestSubmitInvalidFee(t *testing.T) {
	account := testAccount(t)
	sender := &recordingSender{}
	req := revokeRequest(t, fee.Params{Mode: fee.ModeLegacy, GasPrice: big.NewInt(1)})

	if _, err := NewSubmitter(sender, nil).Submit(context.Background(), account, req); err == nil {
		t.Fatalf("expected zero gas limit to be rejected before broadcast")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("nothing should be broadcast")
	}
}

func TestSubmitConcurrentNoncesAreDistinct(t *testing.T) {
	account := testAccount(t)
	sender := &recordingSender{}
	submitter := NewSubmitter(sender, nil)
	req := revokeRequest(t, fee.Params{Mode: fee.ModeLegacy, GasLimit: 60000, GasPrice: big.NewInt(1)})

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := submitter.Submit(context.Background(), account, req); err != nil {
				t.Errorf("submit: %v", err)
			}
		}()
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for _, tx := range sender.sent {
		if seen[tx.Nonce()] {
			t.Fatalf("nonce %d used twice", tx.Nonce())
		}
		seen[tx.Nonce()] = true
	}
	if len(seen) != writers {
		t.Fatalf("expected %d distinct nonces, got %d", writers, len(seen))
	}
}

func TestNewAccount(t *testing.T) {
	key, _ := crypto.GenerateKey()
	hexKey := "0x" + common.Bytes2Hex(crypto.FromECDSA(key))

	account, err := NewAccount(hexKey, big.NewInt(5))
	if err != nil {
		t.Fatalf("new account: %v", err)
	}
	if account.Address() != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("address mismatch")
	}
	if _, err := NewAccount("zz", big.NewInt(5)); err == nil {
		t.Fatalf("expected invalid key error")
	}
	if _, err := NewAccount(hexKey, nil); err == nil {
		t.Fatalf("expected missing chain id error")
	}
}
