// Package liquidity computes token amounts and transaction parameters for
// concentrated-liquidity positions.
package liquidity

import (
	"math/big"

	"github.com/agatticelli/clmm-kit/internal/pricing"
	"github.com/agatticelli/clmm-kit/internal/pricing/uniswapv3"
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"
)

// Position is a read-only snapshot of a NonfungiblePositionManager position.
type Position struct {
	TokenID   *big.Int
	Liquidity uint128.Uint128
	TickLower int32
	TickUpper int32
	Token0    pricing.Token
	Token1    pricing.Token
	Fee       uniswapv3.FeeTier

	// Fees owed at snapshot time, collected alongside a removal
	TokensOwed0 uint128.Uint128
	TokensOwed1 uint128.Uint128
}

// PoolState is a read-only snapshot of a pool's slot0 and active liquidity.
type PoolState struct {
	SqrtPriceX96 *uint256.Int
	CurrentTick  int32
	Liquidity    uint128.Uint128
}

// RangeStatus describes where the pool price sits relative to a position.
type RangeStatus int

const (
	InRange RangeStatus = iota
	BelowRange
	AboveRange
)

func (s RangeStatus) String() string {
	switch s {
	case BelowRange:
		return "below range"
	case AboveRange:
		return "above range"
	default:
		return "in range"
	}
}

// Status classifies the pool tick against the position's [TickLower, TickUpper)
// range: below holds only token0, above holds only token1.
func (p *Position) Status(currentTick int32) RangeStatus {
	switch {
	case currentTick < p.TickLower:
		return BelowRange
	case currentTick >= p.TickUpper:
		return AboveRange
	default:
		return InRange
	}
}

// toUint256 widens a uint128 value.
func toUint256(v uint128.Uint128) *uint256.Int {
	return &uint256.Int{v.Lo, v.Hi, 0, 0}
}

// toUint128 narrows v, reporting false when it does not fit.
func toUint128(v *uint256.Int) (uint128.Uint128, bool) {
	if v.BitLen() > 128 {
		return uint128.Zero, false
	}
	return uint128.New(v[0], v[1]), true
}
