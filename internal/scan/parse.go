package scan

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"campusLedger/internal/model"
)

// ParseAddresses converts configured contract addresses, skipping blanks.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		addr, err := model.ParseAddress(input)
		if err != nil {
			return nil, fmt.Errorf("contract %q: %w", input, err)
		}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}
