// Package pricing converts between human prices and pool ticks, and analyzes
// routed swap quotes.
package pricing

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/agatticelli/clmm-kit/internal/pricing/uniswapv3"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const (
	// PriceDivisionPrecision is the number of significant digits kept when a
	// tick price is rendered as a decimal.
	PriceDivisionPrecision int32 = 18

	// lnPrecision is the number of decimal places used for the log estimate.
	lnPrecision int32 = 16
)

// lnTickBase is ln(1.0001)
var lnTickBase = decimal.RequireFromString("0.0000999950003333083353331666809511310634820644010710755126612943")

// q192 is 2^192, the denominator of sqrtPriceX96^2
var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// TickPrice is a tick together with the human price it represents.
type TickPrice struct {
	Tick  int32
	Price decimal.Decimal
}

// tickRatio returns the exact raw price token1/token0 at tick as a rational.
func tickRatio(tick int32) *big.Rat {
	return sqrtRatioToRat(uniswapv3.MustGetSqrtRatioAtTick(tick))
}

// sqrtRatioToRat returns sqrtPriceX96^2 / 2^192 without rounding.
func sqrtRatioToRat(sqrtPriceX96 *uint256.Int) *big.Rat {
	s := sqrtPriceX96.ToBig()
	num := new(big.Int).Mul(s, s)
	return new(big.Rat).SetFrac(num, q192)
}

// PriceToTick returns the greatest tick whose price does not exceed price.
// price is token1 per token0 in human units; it is scaled to the raw pool
// ratio by 10^(token1Decimals-token0Decimals). Non-positive prices map to
// MinTick and prices beyond the protocol range clamp to the nearest bound.
func PriceToTick(price decimal.Decimal, token0Decimals, token1Decimals uint8) int32 {
	if !price.IsPositive() {
		return uniswapv3.MinTick
	}

	raw := price.Shift(int32(token1Decimals) - int32(token0Decimals))
	rawRat := raw.Rat()
	if rawRat.Cmp(tickRatio(uniswapv3.MaxTick)) >= 0 {
		return uniswapv3.MaxTick
	}
	if rawRat.Cmp(tickRatio(uniswapv3.MinTick)) <= 0 {
		return uniswapv3.MinTick
	}

	tick := estimateTick(raw)

	// The log estimate can be off by one near tick boundaries; settle it
	// against the exact integer price so that price(tick) <= raw < price(tick+1).
	for tick < uniswapv3.MaxTick && tickRatio(tick+1).Cmp(rawRat) <= 0 {
		tick++
	}
	for tick > uniswapv3.MinTick && tickRatio(tick).Cmp(rawRat) > 0 {
		tick--
	}
	return tick
}

func estimateTick(raw decimal.Decimal) int32 {
	ln, err := raw.Ln(lnPrecision)
	if err != nil {
		// Ln only fails for non-positive input, which callers exclude
		return uniswapv3.MinTick
	}
	return uniswapv3.ClampTick(ln.DivRound(lnTickBase, 8).Floor().IntPart())
}

// PriceToTickString parses a user-typed price and converts it with PriceToTick.
// "inf", "infinity" and "∞" map to MaxTick.
func PriceToTickString(input string, token0Decimals, token1Decimals uint8) (int32, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	switch s {
	case "inf", "+inf", "infinity", "+infinity", "∞", "+∞":
		return uniswapv3.MaxTick, nil
	case "-inf", "-infinity", "-∞":
		return uniswapv3.MinTick, nil
	}

	price, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrInvalidPriceInput, input, err)
	}
	return PriceToTick(price, token0Decimals, token1Decimals), nil
}

// TickToPrice returns the human price (token1 per token0) at tick.
// Ticks outside the protocol range are clamped first.
func TickToPrice(tick int32, token0Decimals, token1Decimals uint8) decimal.Decimal {
	tick = uniswapv3.ClampTick(int64(tick))
	r := scaleRat(tickRatio(tick), int(token0Decimals)-int(token1Decimals))
	return ratToDecimal(r, PriceDivisionPrecision)
}

// InvertPrice returns 1/price, or zero when price is zero.
func InvertPrice(price decimal.Decimal) decimal.Decimal {
	if price.IsZero() {
		return decimal.Zero
	}
	r := new(big.Rat).Inv(price.Rat())
	return ratToDecimal(r, PriceDivisionPrecision)
}

// SnapToSpacing rounds tick to the nearest multiple of the fee tier's spacing.
//
// An exact tie (only possible for even spacings) resolves toward currentTick
// when it is given and strictly closer to one side; otherwise toward zero.
// The result is clamped to the usable tick range for the spacing.
func SnapToSpacing(tick int32, fee uniswapv3.FeeTier, currentTick *int32) (int32, error) {
	spacing, err := fee.TickSpacing()
	if err != nil {
		return 0, err
	}

	lower := floorDiv(tick, spacing) * spacing
	upper := lower + spacing

	var snapped int32
	switch d := tick - lower; {
	case d == 0:
		snapped = tick
	case 2*d < spacing:
		snapped = lower
	case 2*d > spacing:
		snapped = upper
	default:
		snapped = breakTie(lower, upper, currentTick)
	}

	minUsable := uniswapv3.MinUsableTick(spacing)
	maxUsable := uniswapv3.MaxUsableTick(spacing)
	if snapped < minUsable {
		return minUsable, nil
	}
	if snapped > maxUsable {
		return maxUsable, nil
	}
	return snapped, nil
}

func breakTie(lower, upper int32, currentTick *int32) int32 {
	if currentTick != nil {
		toLower := absInt32(*currentTick - lower)
		toUpper := absInt32(*currentTick - upper)
		if toLower < toUpper {
			return lower
		}
		if toUpper < toLower {
			return upper
		}
	}
	if lower >= 0 {
		return lower
	}
	return upper
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func absInt32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// NearestTickAndPrice corrects a user-typed price to the nearest tradeable
// tick and its price. It returns false, without error, when the input is
// empty, non-numeric, a token is missing, or the fee tier is unknown.
func NearestTickAndPrice(input string, token0, token1 *Token, fee uniswapv3.FeeTier) (TickPrice, bool) {
	if token0 == nil || token1 == nil || strings.TrimSpace(input) == "" {
		return TickPrice{}, false
	}
	if !fee.Valid() {
		return TickPrice{}, false
	}

	raw, err := PriceToTickString(input, token0.Decimals, token1.Decimals)
	if err != nil {
		return TickPrice{}, false
	}
	tick, err := SnapToSpacing(raw, fee, nil)
	if err != nil {
		return TickPrice{}, false
	}

	return TickPrice{
		Tick:  tick,
		Price: TickToPrice(tick, token0.Decimals, token1.Decimals),
	}, true
}

// ValidateRange checks that minPrice is strictly below maxPrice.
func ValidateRange(minPrice, maxPrice decimal.Decimal) error {
	if minPrice.GreaterThanOrEqual(maxPrice) {
		return &InvalidRangeError{Min: minPrice, Max: maxPrice}
	}
	return nil
}

// TickRange is a spacing-aligned [Lower, Upper) position range.
type TickRange struct {
	Lower     TickPrice
	Upper     TickPrice
	Spacing   int32
	FullRange bool
}

// TickRangeForPrices snaps a human price range to ticks. When both ends land
// on the same tick the upper end is widened by one spacing so the range is
// never empty. currentTick, when known, breaks snapping ties.
func TickRangeForPrices(minPrice, maxPrice decimal.Decimal, token0, token1 Token, fee uniswapv3.FeeTier, currentTick *int32) (TickRange, error) {
	if err := ValidateRange(minPrice, maxPrice); err != nil {
		return TickRange{}, err
	}
	spacing, err := fee.TickSpacing()
	if err != nil {
		return TickRange{}, err
	}

	lower, err := SnapToSpacing(PriceToTick(minPrice, token0.Decimals, token1.Decimals), fee, currentTick)
	if err != nil {
		return TickRange{}, err
	}
	upper, err := SnapToSpacing(PriceToTick(maxPrice, token0.Decimals, token1.Decimals), fee, currentTick)
	if err != nil {
		return TickRange{}, err
	}

	if upper <= lower {
		if lower+spacing <= uniswapv3.MaxUsableTick(spacing) {
			upper = lower + spacing
		} else {
			lower = upper - spacing
		}
	}

	minUsable := uniswapv3.MinUsableTick(spacing)
	maxUsable := uniswapv3.MaxUsableTick(spacing)

	return TickRange{
		Lower:     TickPrice{Tick: lower, Price: TickToPrice(lower, token0.Decimals, token1.Decimals)},
		Upper:     TickPrice{Tick: upper, Price: TickToPrice(upper, token0.Decimals, token1.Decimals)},
		Spacing:   spacing,
		FullRange: lower == minUsable && upper == maxUsable,
	}, nil
}
