// Package money provides fixed-point arithmetic for financial calculations.
// USD uses int64 cents, BPS uses int64 basis points; token amounts stay in
// 256-bit integers so slippage bounds match on-chain arithmetic exactly.
package money

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Scale factors for different precisions
const (
	USDScale int64 = 100   // 2 decimals: $1.00 = 100
	BPSScale int64 = 10000 // basis points: 100% = 10000
	MaxUSD   int64 = math.MaxInt64 / USDScale
)

// USD represents US dollars in cents (2 decimal places).
type USD int64

// BPS represents basis points (1 bps = 0.01% = 0.0001).
type BPS int64

// --- USD Constructors ---

// NewUSDFromDecimal creates USD from a decimal dollar amount, rounding to the
// cent. Amounts beyond ±MaxUSD dollars saturate.
func NewUSDFromDecimal(dollars decimal.Decimal) USD {
	limit := decimal.NewFromInt(MaxUSD * USDScale)
	cents := dollars.Shift(2).Round(0)
	switch {
	case cents.GreaterThan(limit):
		return USD(MaxUSD * USDScale)
	case cents.LessThan(limit.Neg()):
		return USD(-MaxUSD * USDScale)
	}
	return USD(cents.IntPart())
}

// --- USD Conversion ---

// String returns formatted string like "$123.45" or "-$45.00".
func (a USD) String() string {
	if a < 0 {
		return fmt.Sprintf("-$%.2f", float64(-a)/float64(USDScale))
	}
	return fmt.Sprintf("$%.2f", float64(a)/float64(USDScale))
}

// --- BPS Constructors ---

// NewBPSFromPercent converts a tolerance percentage (0.5 = 0.5%) to basis points:
// round(percent * 100), clamped to [0, 10000].
func NewBPSFromPercent(percent decimal.Decimal) BPS {
	bps := percent.Shift(2).Round(0)
	switch {
	case bps.IsNegative():
		return 0
	case bps.GreaterThan(decimal.NewFromInt(BPSScale)):
		return BPS(BPSScale)
	}
	return BPS(bps.IntPart())
}

// NewBPSFromRatio converts a signed ratio (-0.0123 = -1.23%) to basis points,
// truncating toward zero.
func NewBPSFromRatio(ratio decimal.Decimal) BPS {
	return BPS(ratio.Shift(4).Truncate(0).IntPart())
}

// --- BPS Conversion ---

// String returns basis points as string (e.g., "50 bps").
func (a BPS) String() string {
	return fmt.Sprintf("%d bps", a)
}

// Int64 returns raw basis points value.
func (a BPS) Int64() int64 {
	return int64(a)
}
