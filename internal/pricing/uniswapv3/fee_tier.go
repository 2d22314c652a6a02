package uniswapv3

import "fmt"

// FeeTier is a pool fee in pips (1e-6), e.g. 3000 = 0.3%
type FeeTier uint32

// Standard Uniswap V3 fee tiers
const (
	FeeLowest FeeTier = 100
	FeeLow    FeeTier = 500
	FeeMedium FeeTier = 3000
	FeeHigh   FeeTier = 10000
)

// tickSpacings is the factory's enableFeeAmount table
var tickSpacings = map[FeeTier]int32{
	FeeLowest: 1,
	FeeLow:    10,
	FeeMedium: 60,
	FeeHigh:   200,
}

// UnsupportedFeeTierError is returned when a fee tier has no known tick spacing
type UnsupportedFeeTierError struct {
	Fee FeeTier
}

func (e *UnsupportedFeeTierError) Error() string {
	return fmt.Sprintf("unsupported fee tier: %d", uint32(e.Fee))
}

// TickSpacing returns the tick spacing enforced for the fee tier
func (f FeeTier) TickSpacing() (int32, error) {
	spacing, ok := tickSpacings[f]
	if !ok {
		return 0, &UnsupportedFeeTierError{Fee: f}
	}
	return spacing, nil
}

// Valid reports whether the tier is one of the standard tiers
func (f FeeTier) Valid() bool {
	_, ok := tickSpacings[f]
	return ok
}

// Percent returns the fee as a percentage string (e.g. "0.30%")
func (f FeeTier) Percent() string {
	return fmt.Sprintf("%.2f%%", float64(f)/10000.0)
}

// String returns the fee in pips
func (f FeeTier) String() string {
	return fmt.Sprintf("%d", uint32(f))
}

// MinUsableTick returns the lowest tick aligned to tickSpacing within bounds
func MinUsableTick(tickSpacing int32) int32 {
	return -(-MinTick / tickSpacing * tickSpacing)
}

// MaxUsableTick returns the highest tick aligned to tickSpacing within bounds
func MaxUsableTick(tickSpacing int32) int32 {
	return MaxTick / tickSpacing * tickSpacing
}
