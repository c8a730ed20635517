package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress validates a 0x-prefixed, 40 hex char address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if len(input) != 42 || (!strings.HasPrefix(input, "0x") && !strings.HasPrefix(input, "0X")) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddressFormat, input)
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddressFormat, input)
	}
	return common.HexToAddress(input), nil
}

// FormatAddress renders an address as lower-case 0x hex.
func FormatAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// SameAddress compares two hex addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
