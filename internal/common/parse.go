package common

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// ParseUint64orHex converts the given uint64 string into the number.
// It can parse the string with 0x prefix as well.
func ParseUint64orHex(val *string) (uint64, error) {
	if val == nil {
		return 0, nil
	}

	str := *val
	base := 10

	if strings.HasPrefix(str, "0x") {
		str = str[2:]
		base = 16
	}

	return strconv.ParseUint(str, base, 64)
}

// ParseBigInt parses a base-10 (or 0x-prefixed hex) unsigned integer of arbitrary size.
func ParseBigInt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}

	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer: %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative integer not allowed: %q", s)
	}

	return v, nil
}

// NormalizeAddress returns the canonical lower-case hex form of an address.
func NormalizeAddress(addr ethcommon.Address) string {
	return strings.ToLower(addr.Hex())
}

// NormalizeAddressString validates and lower-cases a textual address.
func NormalizeAddressString(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !ethcommon.IsHexAddress(s) {
		return "", fmt.Errorf("invalid address: %q", s)
	}
	return NormalizeAddress(ethcommon.HexToAddress(s)), nil
}

const bytesInMB = 1024 * 1024

func MBToBytes(mb uint64) uint64 {
	return mb * bytesInMB
}

func BytesToMB(bytes uint64) uint64 {
	return bytes / bytesInMB
}

func ToLowerWithTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
