package pricing

import (
	"math/big"

	"github.com/agatticelli/clmm-kit/internal/money"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// ImpactPrecision is the number of decimal places kept in a price impact.
const ImpactPrecision int32 = 18

// Severity thresholds on the magnitude of price impact.
var (
	impactMedium  = decimal.RequireFromString("0.01")
	impactHigh    = decimal.RequireFromString("0.03")
	impactBlocked = decimal.RequireFromString("0.15")
)

// Severity classifies how far a quote executes from the pool mid-price.
type Severity string

const (
	SeverityLow     Severity = "low"
	SeverityMedium  Severity = "medium"
	SeverityHigh    Severity = "high"
	SeverityBlocked Severity = "blocked"
)

// ClassifyImpact maps a signed price impact to a Severity.
func ClassifyImpact(impact decimal.Decimal) Severity {
	m := impact.Abs()
	switch {
	case m.GreaterThanOrEqual(impactBlocked):
		return SeverityBlocked
	case m.GreaterThanOrEqual(impactHigh):
		return SeverityHigh
	case m.GreaterThanOrEqual(impactMedium):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Amount is a raw token amount with the decimals needed to display it.
// A Missing amount is the placeholder returned when route data is absent.
type Amount struct {
	Raw      *uint256.Int
	Decimals uint8
	Token    Token
	Missing  bool
}

// ZeroAmount returns the placeholder amount.
func ZeroAmount() Amount {
	return Amount{Raw: new(uint256.Int), Missing: true}
}

// Decimal returns the human-readable amount.
func (a Amount) Decimal() decimal.Decimal {
	return RawToDecimal(a.Raw, a.Decimals)
}

// String renders the amount, or "-" for the placeholder.
func (a Amount) String() string {
	if a.Missing {
		return "-"
	}
	s := a.Decimal().String()
	if a.Token.Symbol != "" {
		s += " " + a.Token.Symbol
	}
	return s
}

// hopMidPrice returns the hop's mid-price as tokenOut per tokenIn in human
// units, or false when the hop carries no usable pool price.
func hopMidPrice(hop RouteHop) (*big.Rat, bool) {
	if hop.SqrtRatioX96 == nil || hop.SqrtRatioX96.IsZero() {
		return nil, false
	}
	if hop.TokenIn.Address == hop.TokenOut.Address {
		return nil, false
	}

	token0, token1 := SortTokens(hop.TokenIn, hop.TokenOut)
	price := scaleRat(sqrtRatioToRat(hop.SqrtRatioX96), int(token0.Decimals)-int(token1.Decimals))
	if hop.TokenIn.Address == token0.Address {
		return price, true
	}
	return price.Inv(price), true
}

// routeMidPrice multiplies hop mid-prices along the first path.
func routeMidPrice(q *Quote) (*big.Rat, bool) {
	path := q.FirstPath()
	if len(path) == 0 {
		return nil, false
	}
	mid := big.NewRat(1, 1)
	for _, hop := range path {
		p, ok := hopMidPrice(hop)
		if !ok {
			return nil, false
		}
		mid.Mul(mid, p)
	}
	return mid, true
}

// executionPrice returns amountOut/amountIn in human units. Decimal amounts
// from the quote are preferred; raw amounts are scaled by the path's first
// and last token decimals otherwise.
func executionPrice(q *Quote) (*big.Rat, bool) {
	if q.AmountInDecimals.IsPositive() && q.AmountOutDecimals.IsPositive() {
		return new(big.Rat).Quo(q.AmountOutDecimals.Rat(), q.AmountInDecimals.Rat()), true
	}

	path := q.FirstPath()
	if len(path) == 0 || q.AmountIn == nil || q.AmountOut == nil || q.AmountIn.IsZero() {
		return nil, false
	}
	in := path[0].TokenIn
	out := path[len(path)-1].TokenOut
	r := new(big.Rat).SetFrac(q.AmountOut.ToBig(), q.AmountIn.ToBig())
	return scaleRat(r, int(in.Decimals)-int(out.Decimals)), true
}

// PriceImpact returns (executionPrice - midPrice) / midPrice for the first
// route path. The result is signed: negative means the trade executes worse
// than the pools' mid-price. Quotes without usable route data yield zero.
func PriceImpact(q *Quote) decimal.Decimal {
	if q == nil {
		return decimal.Zero
	}
	mid, ok := routeMidPrice(q)
	if !ok || mid.Sign() == 0 {
		return decimal.Zero
	}
	exec, ok := executionPrice(q)
	if !ok {
		return decimal.Zero
	}

	impact := new(big.Rat).Sub(exec, mid)
	impact.Quo(impact, mid)
	return ratToFixed(impact, ImpactPrecision)
}

// ratToFixed rounds r to places decimal places.
func ratToFixed(r *big.Rat, places int32) decimal.Decimal {
	return decimal.NewFromBigInt(r.Num(), 0).DivRound(decimal.NewFromBigInt(r.Denom(), 0), places)
}

// MinimumReceived applies the slippage tolerance (percent, 0.5 = 0.5%) to the
// quoted output. The output token comes from the final hop of the first path;
// when it is missing the ZeroAmount placeholder is returned.
func MinimumReceived(q *Quote, tolerancePercent decimal.Decimal) Amount {
	path := q.FirstPath()
	if len(path) == 0 || q.AmountOut == nil {
		return ZeroAmount()
	}
	out := path[len(path)-1].TokenOut
	if out.Address == (common.Address{}) {
		return ZeroAmount()
	}

	return Amount{
		Raw:      money.ApplyMin(q.AmountOut, money.NewBPSFromPercent(tolerancePercent)),
		Decimals: out.Decimals,
		Token:    out,
	}
}

// QuoteAnalysis is everything a swap form shows for a quote.
type QuoteAnalysis struct {
	PriceImpact     decimal.Decimal
	ImpactBPS       money.BPS
	Severity        Severity
	MidPrice        decimal.Decimal
	ExecutionPrice  decimal.Decimal
	MinimumReceived Amount
	Hops            int
	Path            []Token
	GasEstimateUSD  money.USD
}

// Analyze bundles price impact, minimum received and display prices.
func Analyze(q *Quote, tolerancePercent decimal.Decimal) QuoteAnalysis {
	a := QuoteAnalysis{
		PriceImpact:     decimal.Zero,
		Severity:        SeverityLow,
		MinimumReceived: ZeroAmount(),
	}
	if q == nil {
		return a
	}

	a.PriceImpact = PriceImpact(q)
	a.ImpactBPS = money.NewBPSFromRatio(a.PriceImpact)
	a.Severity = ClassifyImpact(a.PriceImpact)
	a.MinimumReceived = MinimumReceived(q, tolerancePercent)
	a.Hops = q.HopCount()
	a.Path = q.TokenPath()
	a.GasEstimateUSD = q.GasEstimateUSD

	if mid, ok := routeMidPrice(q); ok {
		a.MidPrice = ratToDecimal(mid, PriceDivisionPrecision)
	}
	if exec, ok := executionPrice(q); ok {
		a.ExecutionPrice = ratToDecimal(exec, PriceDivisionPrecision)
	}
	return a
}
