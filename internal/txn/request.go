package txn

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"campusLedger/internal/fee"
)

// Request describes one outbound contract call.
type Request struct {
	To     common.Address
	ABI    *abi.ABI
	Method string
	Args   []interface{}
	Fee    fee.Params
}

// Calldata packs the method selector and arguments.
func (r Request) Calldata() ([]byte, error) {
	if r.ABI == nil {
		return nil, fmt.Errorf("abi is required for %s", r.Method)
	}
	data, err := r.ABI.Pack(r.Method, r.Args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", r.Method, err)
	}
	return data, nil
}

// CallMsg is the simulation message used for gas estimation.
func (r Request) CallMsg(from common.Address) (ethereum.CallMsg, error) {
	data, err := r.Calldata()
	if err != nil {
		return ethereum.CallMsg{}, err
	}
	to := r.To
	return ethereum.CallMsg{From: from, To: &to, Value: new(big.Int), Data: data}, nil
}
