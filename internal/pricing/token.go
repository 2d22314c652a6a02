package pricing

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Token describes an ERC20 token as seen by the pool math.
type Token struct {
	Address  common.Address
	Decimals uint8
	Symbol   string
	ChainID  uint64
}

// NewToken builds a Token from a hex address.
func NewToken(chainID uint64, address string, decimals uint8, symbol string) (Token, error) {
	if !common.IsHexAddress(address) {
		return Token{}, fmt.Errorf("invalid token address %q", address)
	}
	return Token{
		Address:  common.HexToAddress(address),
		Decimals: decimals,
		Symbol:   symbol,
		ChainID:  chainID,
	}, nil
}

// SortsBefore reports whether t is token0 in a pool with other.
// Pools order tokens by numeric address value, which is the same ordering as
// a case-insensitive comparison of the fixed-width hex strings.
func (t Token) SortsBefore(other Token) bool {
	return bytes.Compare(t.Address.Bytes(), other.Address.Bytes()) < 0
}

// Equal compares tokens by chain and address.
func (t Token) Equal(other Token) bool {
	return t.ChainID == other.ChainID && t.Address == other.Address
}

func (t Token) String() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address.Hex()
}

// SortTokens returns the pair in pool order (token0, token1).
func SortTokens(a, b Token) (Token, Token) {
	if b.SortsBefore(a) {
		return b, a
	}
	return a, b
}
