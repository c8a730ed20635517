package txn

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account is the signing context shared by every write. Its mutex is the
// single-writer point: the node's pending nonce is read, signed over and
// broadcast while it is held, so concurrent writes through the same Account
// never reuse a nonce. No nonce is cached between writes.
type Account struct {
	mu      sync.Mutex
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	signer  types.Signer
}

// NewAccount loads a hex private key (0x prefix optional) for chainID.
func NewAccount(privateKeyHex string, chainID *big.Int) (*Account, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id is required")
	}
	keyHex := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if keyHex == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key format: %w", err)
	}
	return NewAccountFromKey(key, chainID), nil
}

// NewAccountFromKey wraps an already parsed key.
func NewAccountFromKey(key *ecdsa.PrivateKey, chainID *big.Int) *Account {
	id := new(big.Int).Set(chainID)
	return &Account{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: id,
		signer:  types.LatestSignerForChainID(id),
	}
}

// Address returns the sender address.
func (a *Account) Address() common.Address {
	return a.address
}

// ChainID returns the chain the account signs for.
func (a *Account) ChainID() *big.Int {
	return new(big.Int).Set(a.chainID)
}

func (a *Account) sign(tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, a.signer, a.key)
}
