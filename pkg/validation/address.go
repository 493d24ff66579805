package validation

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ValidateAddress validates an EVM address format (20 bytes, hex, optional 0x prefix).
// Mixed-case input must carry a correct EIP-55 checksum.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	normalized := strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X")
	if len(normalized) != 2*common.AddressLength {
		return fmt.Errorf("invalid address length: expected %d characters (without 0x), got %d", 2*common.AddressLength, len(normalized))
	}

	if !common.IsHexAddress(addr) {
		return fmt.Errorf("invalid hex address: %s", addr)
	}

	if isMixedCase(normalized) && common.HexToAddress(addr).Hex() != "0x"+normalized {
		return fmt.Errorf("invalid address checksum: %s", addr)
	}

	return nil
}

// ValidateChecksumAddress is stricter than ValidateAddress: the address must be
// written exactly in its EIP-55 checksummed form. Used for custody addresses.
func ValidateChecksumAddress(addr string) error {
	if err := ValidateAddress(addr); err != nil {
		return err
	}
	if common.HexToAddress(addr).Hex() != addr {
		return fmt.Errorf("address is not checksummed: %s", addr)
	}
	return nil
}

// NormalizeAddress converts an address to its checksummed 0x form
func NormalizeAddress(addr string) string {
	return common.HexToAddress(addr).Hex()
}

// ValidateAndNormalizeAddress validates an address and returns its normalized form
func ValidateAndNormalizeAddress(addr string) (common.Address, error) {
	if err := ValidateAddress(addr); err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(addr), nil
}

func isMixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}
