package uniswapv3

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrInvalidPrice   = errors.New("invalid sqrt price")
	ErrMulDivOverflow = errors.New("mulDiv overflow")
)

// GetAmount0Delta calculates amount0 delta for a liquidity change
// amount0 = liquidity * (sqrt(upper) - sqrt(lower)) / (sqrt(upper) * sqrt(lower))
// Ported from Uniswap V3 SqrtPriceMath.sol
func GetAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int, roundUp bool) *uint256.Int {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.IsZero() {
		panic(ErrInvalidPrice)
	}

	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)

	if roundUp {
		return divRoundingUp(mulDivRoundingUp(numerator1, numerator2, sqrtRatioBX96), sqrtRatioAX96)
	}

	result := mulDiv(numerator1, numerator2, sqrtRatioBX96)
	return result.Div(result, sqrtRatioAX96)
}

// GetAmount1Delta calculates amount1 delta for a liquidity change
// amount1 = liquidity * (sqrt(upper) - sqrt(lower))
// Ported from Uniswap V3 SqrtPriceMath.sol
func GetAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int, roundUp bool) *uint256.Int {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}

	diff := new(uint256.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)

	if roundUp {
		return mulDivRoundingUp(liquidity, diff, Q96)
	}

	return mulDiv(liquidity, diff, Q96)
}

// mulDiv computes floor(a * b / denominator) with a 512-bit intermediate
func mulDiv(a, b, denominator *uint256.Int) *uint256.Int {
	result, overflow := new(uint256.Int).MulDivOverflow(a, b, denominator)
	if overflow {
		panic(ErrMulDivOverflow)
	}
	return result
}

// mulDivRoundingUp computes ceil(a * b / denominator)
func mulDivRoundingUp(a, b, denominator *uint256.Int) *uint256.Int {
	result := mulDiv(a, b, denominator)
	if !new(uint256.Int).MulMod(a, b, denominator).IsZero() {
		result.AddUint64(result, 1)
	}
	return result
}

// divRoundingUp computes ceil(a / b)
func divRoundingUp(a, b *uint256.Int) *uint256.Int {
	quotient, remainder := new(uint256.Int).DivMod(a, b, new(uint256.Int))
	if !remainder.IsZero() {
		quotient.AddUint64(quotient, 1)
	}
	return quotient
}
