package uniswapv3

import (
	"errors"

	"github.com/holiman/uint256"
)

// Tick math constants from Uniswap V3
// https://github.com/Uniswap/v3-core/blob/main/contracts/libraries/TickMath.sol
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	// MinSqrtRatio is the sqrt price at MinTick
	MinSqrtRatio = uint256.NewInt(4295128739)

	// MaxSqrtRatio is the sqrt price at MaxTick
	MaxSqrtRatio = uint256.MustFromHex("0xfffd8963efd1fc6a506488495d951d5263988d26")

	// Q96 is 2^96, the fixed-point scale of sqrtPriceX96
	Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)

	maxUint256 = new(uint256.Int).SetAllOne()
	q32        = new(uint256.Int).Lsh(uint256.NewInt(1), 32)

	ErrInvalidTick      = errors.New("tick out of bounds")
	ErrInvalidSqrtRatio = errors.New("sqrt ratio out of bounds")
)

// sqrt(1.0001^(2^i)) * 2^128 for i = 1..19, indexed by bit position
var tickRatioMultipliers = [...]*uint256.Int{
	uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
	uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
	uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
	uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
	uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
	uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
	uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
	uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
	uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
	uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
	uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
	uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
	uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
	uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
	uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
	uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
	uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
	uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
	uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
}

var (
	ratioOddTick  = uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001")
	ratioEvenTick = uint256.MustFromHex("0x100000000000000000000000000000000")
)

// GetSqrtRatioAtTick calculates sqrt(1.0001^tick) * 2^96, rounded up.
// Ported from Uniswap V3 TickMath.sol
func GetSqrtRatioAtTick(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrInvalidTick
	}

	absTick := tick
	if tick < 0 {
		absTick = -tick
	}

	ratio := new(uint256.Int)
	if absTick&0x1 != 0 {
		ratio.Set(ratioOddTick)
	} else {
		ratio.Set(ratioEvenTick)
	}

	for i, multiplier := range tickRatioMultipliers {
		if absTick&(int32(2)<<i) != 0 {
			mulShift(ratio, multiplier)
		}
	}

	// ratio is sqrt(1.0001^-|tick|) as Q128.128; flip it for positive ticks
	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Q128.128 -> Q64.96, rounding up so that GetTickAtSqrtRatio(GetSqrtRatioAtTick(t)) == t
	remainder := new(uint256.Int).Mod(ratio, q32)
	ratio.Rsh(ratio, 32)
	if !remainder.IsZero() {
		ratio.AddUint64(ratio, 1)
	}

	return ratio, nil
}

// MustGetSqrtRatioAtTick is GetSqrtRatioAtTick for ticks already known to be in bounds.
func MustGetSqrtRatioAtTick(tick int32) *uint256.Int {
	ratio, err := GetSqrtRatioAtTick(tick)
	if err != nil {
		panic(err)
	}
	return ratio
}

// GetTickAtSqrtRatio returns the greatest tick whose sqrt ratio is <= sqrtPriceX96.
func GetTickAtSqrtRatio(sqrtPriceX96 *uint256.Int) (int32, error) {
	if sqrtPriceX96.Lt(MinSqrtRatio) || !sqrtPriceX96.Lt(MaxSqrtRatio) {
		return 0, ErrInvalidSqrtRatio
	}

	// Upper-bound binary search over the monotonic tick -> ratio mapping
	lo, hi := MinTick, MaxTick
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if MustGetSqrtRatioAtTick(mid).Gt(sqrtPriceX96) {
			hi = mid - 1
		} else {
			lo = mid
		}
	}

	return lo, nil
}

// ClampTick bounds a tick to [MinTick, MaxTick]
func ClampTick(tick int64) int32 {
	if tick < int64(MinTick) {
		return MinTick
	}
	if tick > int64(MaxTick) {
		return MaxTick
	}
	return int32(tick)
}

// mulShift sets ratio = (ratio * multiplier) >> 128.
// Both operands are below 2^129 so the product fits in 256 bits.
func mulShift(ratio, multiplier *uint256.Int) {
	ratio.Mul(ratio, multiplier)
	ratio.Rsh(ratio, 128)
}
