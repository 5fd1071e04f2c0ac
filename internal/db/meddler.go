package db

import (
	"database/sql"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
)

func init() {
	meddler.Register("address", AddressMeddler{})
	meddler.Register("hash", HashMeddler{})
	meddler.Register("bigint", BigIntMeddler{})
}

// AddressMeddler stores addresses as lower-case hex text.
// It accepts string and common.Address fields; strings are validated and normalized on write.
type AddressMeddler struct{}

func (AddressMeddler) PreRead(fieldAddr any) (any, error) {
	return new(sql.NullString), nil
}

func (AddressMeddler) PostRead(fieldAddr, scanTarget any) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	switch ptr := fieldAddr.(type) {
	case *string:
		*ptr = ns.String
	case **string:
		if !ns.Valid {
			*ptr = nil
			return nil
		}
		s := ns.String
		*ptr = &s
	case *common.Address:
		*ptr = common.HexToAddress(ns.String)
	default:
		return fmt.Errorf("expected *string, **string or *common.Address, got %T", fieldAddr)
	}
	return nil
}

func (AddressMeddler) PreWrite(field any) (any, error) {
	switch v := field.(type) {
	case string:
		return normalizeAddress(v)
	case *string:
		if v == nil {
			return nil, nil
		}
		return normalizeAddress(*v)
	case common.Address:
		return strings.ToLower(v.Hex()), nil
	default:
		return nil, fmt.Errorf("expected string or common.Address, got %T", field)
	}
}

func normalizeAddress(s string) (string, error) {
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("invalid address %q", s)
	}
	return strings.ToLower(common.HexToAddress(s).Hex()), nil
}

// HashMeddler handles conversion between common.Hash and its hex representation.
type HashMeddler struct{}

func (HashMeddler) PreRead(fieldAddr any) (any, error) {
	return new(sql.NullString), nil
}

func (HashMeddler) PostRead(fieldAddr, scanTarget any) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	switch ptr := fieldAddr.(type) {
	case *common.Hash:
		*ptr = common.HexToHash(ns.String)
	case **common.Hash:
		if !ns.Valid {
			*ptr = nil
			return nil
		}
		h := common.HexToHash(ns.String)
		*ptr = &h
	default:
		return fmt.Errorf("expected *common.Hash or **common.Hash, got %T", fieldAddr)
	}
	return nil
}

func (HashMeddler) PreWrite(field any) (any, error) {
	switch v := field.(type) {
	case common.Hash:
		return v.Hex(), nil
	case *common.Hash:
		if v == nil {
			return nil, nil
		}
		return v.Hex(), nil
	default:
		return nil, fmt.Errorf("expected common.Hash or *common.Hash, got %T", field)
	}
}

// BigIntMeddler stores *big.Int values as base-10 text so uint256 amounts survive intact.
type BigIntMeddler struct{}

func (BigIntMeddler) PreRead(fieldAddr any) (any, error) {
	return new(sql.NullString), nil
}

func (BigIntMeddler) PostRead(fieldAddr, scanTarget any) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}
	ptr, ok := fieldAddr.(**big.Int)
	if !ok {
		return fmt.Errorf("expected **big.Int, got %T", fieldAddr)
	}
	if !ns.Valid {
		*ptr = nil
		return nil
	}
	v, ok := new(big.Int).SetString(ns.String, 10)
	if !ok {
		return fmt.Errorf("invalid integer %q", ns.String)
	}
	*ptr = v
	return nil
}

func (BigIntMeddler) PreWrite(field any) (any, error) {
	v, ok := field.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("expected *big.Int, got %T", field)
	}
	if v == nil {
		return nil, nil
	}
	return v.String(), nil
}
