package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/agatticelli/clmm-kit/internal/pricing"
	"github.com/agatticelli/clmm-kit/internal/pricing/uniswapv3"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// pairOrder maps a BASE-QUOTE pair onto pool order. Prices on the command
// line are QUOTE per BASE; the pool prices token1 per token0.
type pairOrder struct {
	base, quote    pricing.Token
	token0, token1 pricing.Token
	inverted       bool // base is token1
}

func orderPair(base, quote pricing.Token) pairOrder {
	t0, t1 := pricing.SortTokens(base, quote)
	return pairOrder{base: base, quote: quote, token0: t0, token1: t1, inverted: !t0.Equal(base)}
}

// toPool converts a QUOTE-per-BASE price to token1-per-token0
func (p pairOrder) toPool(price decimal.Decimal) decimal.Decimal {
	if p.inverted {
		return pricing.InvertPrice(price)
	}
	return price
}

// fromPool converts a token1-per-token0 price to QUOTE-per-BASE
func (p pairOrder) fromPool(price decimal.Decimal) decimal.Decimal {
	return p.toPool(price)
}

func (p pairOrder) unit() string {
	return p.quote.Symbol + " per " + p.base.Symbol
}

func parseFee(raw uint32) (uniswapv3.FeeTier, error) {
	fee := uniswapv3.FeeTier(raw)
	if _, err := fee.TickSpacing(); err != nil {
		return 0, err
	}
	return fee, nil
}

// poolTick reads the live tick of the pair's pool, used to break snapping
// ties toward the current price
func (a *app) poolTick(ctx context.Context, po pairOrder, fee uniswapv3.FeeTier) (*int32, error) {
	reader, err := a.Reader(ctx)
	if err != nil {
		return nil, err
	}
	addr, err := reader.PoolAddress(ctx, a.chain, po.token0.Address, po.token1.Address, fee)
	if err != nil {
		return nil, err
	}
	state, err := reader.PoolState(ctx, addr)
	if err != nil {
		return nil, err
	}
	tick := state.CurrentTick
	return &tick, nil
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func newTickCmd(opts *rootOptions) *cobra.Command {
	var (
		pair     string
		fee      uint32
		nearPool bool
	)

	cmd := &cobra.Command{
		Use:   "tick PRICE",
		Short: "Snap a price to the nearest usable tick",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			feeTier, err := parseFee(fee)
			if err != nil {
				return err
			}
			base, quote, err := a.resolvePair(ctx, pair)
			if err != nil {
				return err
			}
			po := orderPair(base, quote)

			price, err := decimal.NewFromString(args[0])
			if err != nil || !price.IsPositive() {
				return fmt.Errorf("%w %q", pricing.ErrInvalidPriceInput, args[0])
			}

			poolPrice := po.toPool(price)
			rawTick := pricing.PriceToTick(poolPrice, po.token0.Decimals, po.token1.Decimals)
			tp, ok := pricing.NearestTickAndPrice(poolPrice.String(), &po.token0, &po.token1, feeTier)
			if !ok {
				return fmt.Errorf("cannot convert price %s for %s", args[0], pair)
			}
			if nearPool {
				current, err := a.poolTick(ctx, po, feeTier)
				if err != nil {
					return err
				}
				if tp.Tick, err = pricing.SnapToSpacing(rawTick, feeTier, current); err != nil {
					return err
				}
				tp.Price = pricing.TickToPrice(tp.Tick, po.token0.Decimals, po.token1.Decimals)
			}

			w := newTabWriter(cmd.OutOrStdout())
			fmt.Fprintf(w, "pool\t%s/%s %s\n", po.token0.Symbol, po.token1.Symbol, feeTier.Percent())
			fmt.Fprintf(w, "input price\t%s %s\n", price, po.unit())
			fmt.Fprintf(w, "raw tick\t%d\n", rawTick)
			fmt.Fprintf(w, "tick\t%d\n", tp.Tick)
			fmt.Fprintf(w, "price\t%s %s\n", po.fromPool(tp.Price), po.unit())
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&pair, "pair", "WETH-USDC", "BASE-QUOTE pair (symbols or addresses)")
	cmd.Flags().Uint32Var(&fee, "fee", uint32(uniswapv3.FeeMedium), "fee tier in hundredths of a bip (100, 500, 3000, 10000)")
	cmd.Flags().BoolVar(&nearPool, "near-pool", false, "break snapping ties toward the pool's current tick (reads the chain)")
	return cmd
}

func newRangeCmd(opts *rootOptions) *cobra.Command {
	var (
		pair     string
		fee      uint32
		nearPool bool
	)

	cmd := &cobra.Command{
		Use:   "range MIN MAX",
		Short: "Convert a price range to a spacing-aligned tick range",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			feeTier, err := parseFee(fee)
			if err != nil {
				return err
			}
			base, quote, err := a.resolvePair(ctx, pair)
			if err != nil {
				return err
			}
			po := orderPair(base, quote)

			minPrice, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("%w %q", pricing.ErrInvalidPriceInput, args[0])
			}
			maxPrice, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("%w %q", pricing.ErrInvalidPriceInput, args[1])
			}
			if err := pricing.ValidateRange(minPrice, maxPrice); err != nil {
				return err
			}
			if !minPrice.IsPositive() {
				return fmt.Errorf("%w: min price must be positive", pricing.ErrInvalidPriceInput)
			}

			// inverting swaps the ends
			lo, hi := po.toPool(minPrice), po.toPool(maxPrice)
			if po.inverted {
				lo, hi = hi, lo
			}

			var current *int32
			if nearPool {
				if current, err = a.poolTick(ctx, po, feeTier); err != nil {
					return err
				}
			}
			r, err := pricing.TickRangeForPrices(lo, hi, po.token0, po.token1, feeTier, current)
			if err != nil {
				return err
			}

			lowerPrice, upperPrice := po.fromPool(r.Lower.Price), po.fromPool(r.Upper.Price)
			if po.inverted {
				lowerPrice, upperPrice = upperPrice, lowerPrice
			}

			w := newTabWriter(cmd.OutOrStdout())
			fmt.Fprintf(w, "pool\t%s/%s %s\n", po.token0.Symbol, po.token1.Symbol, feeTier.Percent())
			fmt.Fprintf(w, "tick lower\t%d\n", r.Lower.Tick)
			fmt.Fprintf(w, "tick upper\t%d\n", r.Upper.Tick)
			fmt.Fprintf(w, "tick spacing\t%d\n", r.Spacing)
			fmt.Fprintf(w, "min price\t%s %s\n", lowerPrice, po.unit())
			fmt.Fprintf(w, "max price\t%s %s\n", upperPrice, po.unit())
			fmt.Fprintf(w, "full range\t%s\n", strconv.FormatBool(r.FullRange))
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&pair, "pair", "WETH-USDC", "BASE-QUOTE pair (symbols or addresses)")
	cmd.Flags().Uint32Var(&fee, "fee", uint32(uniswapv3.FeeMedium), "fee tier in hundredths of a bip (100, 500, 3000, 10000)")
	cmd.Flags().BoolVar(&nearPool, "near-pool", false, "break snapping ties toward the pool's current tick (reads the chain)")
	return cmd
}
