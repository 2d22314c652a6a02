package pricing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/agatticelli/clmm-kit/internal/money"
	"github.com/agatticelli/clmm-kit/internal/pricing/uniswapv3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"lukechampine.com/uint128"
)

// RouteHop is one pool traversed by a routed swap.
type RouteHop struct {
	PoolAddress  common.Address
	TokenIn      Token
	TokenOut     Token
	Fee          uniswapv3.FeeTier
	SqrtRatioX96 *uint256.Int
	Liquidity    uint128.Uint128
	TickCurrent  int32
	AmountIn     *uint256.Int
	AmountOut    *uint256.Int
}

// Quote is a routed exact-input swap quote.
// Route holds split paths; only Route[0] feeds price impact.
type Quote struct {
	AmountIn          *uint256.Int
	AmountOut         *uint256.Int
	AmountOutGasAdj   *uint256.Int
	AmountInDecimals  decimal.Decimal
	AmountOutDecimals decimal.Decimal
	Route             [][]RouteHop
	GasEstimateUSD    money.USD
}

// FirstPath returns Route[0], or nil when the quote has no route.
func (q *Quote) FirstPath() []RouteHop {
	if q == nil || len(q.Route) == 0 {
		return nil
	}
	return q.Route[0]
}

// HopCount returns the number of pools in the first path.
func (q *Quote) HopCount() int {
	return len(q.FirstPath())
}

// TokenPath returns the tokens visited by the first path, input first.
func (q *Quote) TokenPath() []Token {
	path := q.FirstPath()
	if len(path) == 0 {
		return nil
	}
	tokens := make([]Token, 0, len(path)+1)
	tokens = append(tokens, path[0].TokenIn)
	for _, hop := range path {
		tokens = append(tokens, hop.TokenOut)
	}
	return tokens
}

// --- Routing service wire format ---

// flexString accepts JSON strings and numbers, the routing service mixes both.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

type wireToken struct {
	ChainID  flexString `json:"chainId"`
	Address  string     `json:"address"`
	Decimals flexString `json:"decimals"`
	Symbol   string     `json:"symbol"`
}

type wireHop struct {
	Type         string     `json:"type"`
	Address      string     `json:"address"`
	TokenIn      *wireToken `json:"tokenIn"`
	TokenOut     *wireToken `json:"tokenOut"`
	Fee          flexString `json:"fee"`
	Liquidity    flexString `json:"liquidity"`
	SqrtRatioX96 flexString `json:"sqrtRatioX96"`
	TickCurrent  flexString `json:"tickCurrent"`
	AmountIn     flexString `json:"amountIn"`
	AmountOut    flexString `json:"amountOut"`
}

type wireQuote struct {
	Amount            flexString  `json:"amount"`
	AmountDecimals    flexString  `json:"amountDecimals"`
	Quote             flexString  `json:"quote"`
	QuoteDecimals     flexString  `json:"quoteDecimals"`
	QuoteGasAdjusted  flexString  `json:"quoteGasAdjusted"`
	GasUseEstimateUSD flexString  `json:"gasUseEstimateUSD"`
	Route             [][]wireHop `json:"route"`
}

// ParseQuote decodes a routing service response.
// Malformed JSON or malformed numbers are errors; a missing or empty route is
// not, it yields a quote whose analysis falls back to placeholders.
func ParseQuote(data []byte) (*Quote, error) {
	var w wireQuote
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}

	q := &Quote{}
	var err error

	if q.AmountIn, err = parseUint256(w.Amount, "amount"); err != nil {
		return nil, err
	}
	if q.AmountOut, err = parseUint256(w.Quote, "quote"); err != nil {
		return nil, err
	}
	if q.AmountOutGasAdj, err = parseUint256(w.QuoteGasAdjusted, "quoteGasAdjusted"); err != nil {
		return nil, err
	}
	if q.AmountInDecimals, err = parseDecimal(w.AmountDecimals, "amountDecimals"); err != nil {
		return nil, err
	}
	if q.AmountOutDecimals, err = parseDecimal(w.QuoteDecimals, "quoteDecimals"); err != nil {
		return nil, err
	}
	gasUSD, err := parseDecimal(w.GasUseEstimateUSD, "gasUseEstimateUSD")
	if err != nil {
		return nil, err
	}
	q.GasEstimateUSD = money.NewUSDFromDecimal(gasUSD)

	q.Route = make([][]RouteHop, 0, len(w.Route))
	for i, path := range w.Route {
		hops := make([]RouteHop, 0, len(path))
		for j, wh := range path {
			hop, err := wh.toHop()
			if err != nil {
				return nil, fmt.Errorf("route[%d][%d]: %w", i, j, err)
			}
			hops = append(hops, hop)
		}
		q.Route = append(q.Route, hops)
	}

	return q, nil
}

func (w wireHop) toHop() (RouteHop, error) {
	var hop RouteHop
	var err error

	if w.Address != "" {
		hop.PoolAddress = common.HexToAddress(w.Address)
	}
	if hop.TokenIn, err = w.TokenIn.toToken("tokenIn"); err != nil {
		return hop, err
	}
	if hop.TokenOut, err = w.TokenOut.toToken("tokenOut"); err != nil {
		return hop, err
	}
	if w.Fee != "" {
		fee, err := strconv.ParseUint(string(w.Fee), 10, 32)
		if err != nil {
			return hop, fmt.Errorf("invalid fee %q: %w", w.Fee, err)
		}
		hop.Fee = uniswapv3.FeeTier(fee)
	}
	if hop.SqrtRatioX96, err = parseUint256(w.SqrtRatioX96, "sqrtRatioX96"); err != nil {
		return hop, err
	}
	if w.Liquidity != "" {
		if hop.Liquidity, err = uint128.FromString(string(w.Liquidity)); err != nil {
			return hop, fmt.Errorf("invalid liquidity %q: %w", w.Liquidity, err)
		}
	}
	if w.TickCurrent != "" {
		tick, err := strconv.ParseInt(string(w.TickCurrent), 10, 32)
		if err != nil {
			return hop, fmt.Errorf("invalid tickCurrent %q: %w", w.TickCurrent, err)
		}
		hop.TickCurrent = int32(tick)
	}
	if hop.AmountIn, err = parseUint256(w.AmountIn, "amountIn"); err != nil {
		return hop, err
	}
	if hop.AmountOut, err = parseUint256(w.AmountOut, "amountOut"); err != nil {
		return hop, err
	}
	return hop, nil
}

func (w *wireToken) toToken(field string) (Token, error) {
	if w == nil {
		return Token{}, nil
	}
	tok := Token{Symbol: w.Symbol}
	if w.Address != "" {
		if !common.IsHexAddress(w.Address) {
			return tok, fmt.Errorf("%s: invalid address %q", field, w.Address)
		}
		tok.Address = common.HexToAddress(w.Address)
	}
	if w.Decimals != "" {
		d, err := strconv.ParseUint(string(w.Decimals), 10, 8)
		if err != nil {
			return tok, fmt.Errorf("%s: invalid decimals %q: %w", field, w.Decimals, err)
		}
		tok.Decimals = uint8(d)
	}
	if w.ChainID != "" {
		id, err := strconv.ParseUint(string(w.ChainID), 10, 64)
		if err != nil {
			return tok, fmt.Errorf("%s: invalid chainId %q: %w", field, w.ChainID, err)
		}
		tok.ChainID = id
	}
	return tok, nil
}

// parseUint256 returns nil for an absent field.
func parseUint256(s flexString, field string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := uint256.FromDecimal(string(s))
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return v, nil
}

func parseDecimal(s flexString, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(string(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return d, nil
}
