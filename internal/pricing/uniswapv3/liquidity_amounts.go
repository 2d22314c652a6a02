package uniswapv3

import (
	"github.com/holiman/uint256"
)

// GetAmountsForLiquidity returns the token amounts held by liquidity between
// sqrtRatioAX96 and sqrtRatioBX96 at the current sqrtRatioX96, rounded down.
// Ported from Uniswap V3 LiquidityAmounts.sol
func GetAmountsForLiquidity(sqrtRatioX96, sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int) (amount0, amount1 *uint256.Int) {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}

	switch {
	case !sqrtRatioX96.Gt(sqrtRatioAX96):
		return GetAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity, false), new(uint256.Int)
	case sqrtRatioX96.Lt(sqrtRatioBX96):
		return GetAmount0Delta(sqrtRatioX96, sqrtRatioBX96, liquidity, false),
			GetAmount1Delta(sqrtRatioAX96, sqrtRatioX96, liquidity, false)
	default:
		return new(uint256.Int), GetAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity, false)
	}
}

// GetLiquidityForAmount0 computes the liquidity received for amount0 across a range
func GetLiquidityForAmount0(sqrtRatioAX96, sqrtRatioBX96, amount0 *uint256.Int) *uint256.Int {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.Eq(sqrtRatioBX96) {
		return new(uint256.Int)
	}
	intermediate := mulDiv(sqrtRatioAX96, sqrtRatioBX96, Q96)
	return mulDiv(amount0, intermediate, new(uint256.Int).Sub(sqrtRatioBX96, sqrtRatioAX96))
}

// GetLiquidityForAmount1 computes the liquidity received for amount1 across a range
func GetLiquidityForAmount1(sqrtRatioAX96, sqrtRatioBX96, amount1 *uint256.Int) *uint256.Int {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.Eq(sqrtRatioBX96) {
		return new(uint256.Int)
	}
	return mulDiv(amount1, Q96, new(uint256.Int).Sub(sqrtRatioBX96, sqrtRatioAX96))
}
