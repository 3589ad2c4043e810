package utils

import (
	"strings"

	"github.com/holiman/uint256"
)

// Uint256ToString renders a balance as a decimal string, treating nil as zero.
func Uint256ToString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// StringToUint256 parses a decimal (or 0x-prefixed hex) amount string.
func StringToUint256(s string) (*uint256.Int, error) {
	if s == "" {
		return uint256.NewInt(0), nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return uint256.FromHex(s)
	}
	return uint256.FromDecimal(s)
}
