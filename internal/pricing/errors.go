package pricing

import (
	"errors"
	"fmt"

	"github.com/agatticelli/clmm-kit/internal/pricing/uniswapv3"
	"github.com/shopspring/decimal"
)

var (
	// ErrMissingRouteData marks a quote whose first route or final hop is absent.
	// Analysis functions return placeholders instead; callers may use it to explain them.
	ErrMissingRouteData = errors.New("quote route data missing")

	// ErrInvalidPriceInput is returned when a user-typed price cannot be parsed
	ErrInvalidPriceInput = errors.New("invalid price input")
)

// UnsupportedFeeTierError is re-exported so callers need not import uniswapv3
type UnsupportedFeeTierError = uniswapv3.UnsupportedFeeTierError

// InvalidRangeError is returned when a price range has min >= max
type InvalidRangeError struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid price range: min %s must be below max %s", e.Min, e.Max)
}
