package money

import (
	"github.com/holiman/uint256"
)

var bpsDenominator = uint256.NewInt(uint64(BPSScale))

// ApplyMin returns floor(amount * (10000 - bps) / 10000).
// Used for amountOutMinimum / amountXMin; bps == 0 returns amount unchanged.
func ApplyMin(amount *uint256.Int, bps BPS) *uint256.Int {
	bps = clampBPS(bps)
	if amount == nil {
		return new(uint256.Int)
	}
	if bps == 0 {
		return new(uint256.Int).Set(amount)
	}

	factor := uint256.NewInt(uint64(BPSScale - int64(bps)))
	// amount * factor < 2^270, MulDivOverflow carries the full product
	result, _ := new(uint256.Int).MulDivOverflow(amount, factor, bpsDenominator)
	return result
}

// ApplyMax returns floor(amount * (10000 + bps) / 10000).
// Used for amountInMaximum; saturates at 2^256-1 when the bound no longer fits.
func ApplyMax(amount *uint256.Int, bps BPS) *uint256.Int {
	bps = clampBPS(bps)
	if amount == nil {
		return new(uint256.Int)
	}
	if bps == 0 {
		return new(uint256.Int).Set(amount)
	}

	factor := uint256.NewInt(uint64(BPSScale + int64(bps)))
	result, overflow := new(uint256.Int).MulDivOverflow(amount, factor, bpsDenominator)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return result
}

func clampBPS(bps BPS) BPS {
	if bps < 0 {
		return 0
	}
	if bps > BPS(BPSScale) {
		return BPS(BPSScale)
	}
	return bps
}
