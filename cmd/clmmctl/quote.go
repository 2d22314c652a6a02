package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/agatticelli/clmm-kit/internal/platform/observability"
	"github.com/agatticelli/clmm-kit/internal/pricing"
	"github.com/agatticelli/clmm-kit/internal/routing"
	"github.com/agatticelli/clmm-kit/internal/txbuilder"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// parseAmount converts a human amount of tok to raw units
func parseAmount(s string, tok pricing.Token) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsPositive() {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	raw := pricing.DecimalToRaw(d, tok.Decimals)
	if raw.IsZero() {
		return nil, fmt.Errorf("amount %s is below one raw unit of %s", s, tok)
	}
	return raw, nil
}

func printAnalysis(w io.Writer, q *pricing.Quote, an pricing.QuoteAnalysis, tolerance decimal.Decimal) error {
	tw := newTabWriter(w)

	path := make([]string, len(an.Path))
	for i, tok := range an.Path {
		path[i] = tok.String()
	}
	route := "-"
	if len(path) > 0 {
		route = strings.Join(path, " > ")
	}

	fmt.Fprintf(tw, "amount in\t%s\n", q.AmountInDecimals)
	fmt.Fprintf(tw, "amount out\t%s\n", q.AmountOutDecimals)
	fmt.Fprintf(tw, "route\t%s (%d hops)\n", route, an.Hops)
	fmt.Fprintf(tw, "mid price\t%s\n", an.MidPrice)
	fmt.Fprintf(tw, "execution price\t%s\n", an.ExecutionPrice)
	fmt.Fprintf(tw, "price impact\t%s%% (%s, %s)\n", an.PriceImpact.Mul(decimal.NewFromInt(100)).StringFixed(4), an.ImpactBPS, an.Severity)
	fmt.Fprintf(tw, "minimum received\t%s (%s%% slippage)\n", an.MinimumReceived, tolerance)
	fmt.Fprintf(tw, "gas estimate\t%s\n", an.GasEstimateUSD)
	return tw.Flush()
}

func recordAnalysis(ctx context.Context, m *observability.Metrics, an pricing.QuoteAnalysis) {
	m.RecordPriceImpact(ctx, an.ImpactBPS.Int64(), string(an.Severity))
}

func newQuoteCmd(opts *rootOptions) *cobra.Command {
	var (
		pair      string
		amount    string
		recipient string
		calldata  bool
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Fetch a routing quote and analyze its price impact",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			base, quote, err := a.resolvePair(ctx, pair)
			if err != nil {
				return err
			}
			raw, err := parseAmount(amount, base)
			if err != nil {
				return err
			}
			router, err := a.Router()
			if err != nil {
				return err
			}

			q, err := router.Quote(ctx, routing.QuoteRequest{TokenIn: base, TokenOut: quote, Amount: raw, Type: routing.ExactIn})
			if err != nil {
				return err
			}

			an := pricing.Analyze(q, a.slippage)
			recordAnalysis(ctx, a.metrics, an)
			if err := printAnalysis(cmd.OutOrStdout(), q, an, a.slippage); err != nil {
				return err
			}

			if !calldata {
				return nil
			}
			to, err := a.recipient(recipient)
			if err != nil {
				return err
			}
			call, err := txbuilder.ExactInput(a.chain, q, to, a.slippage)
			if err != nil {
				return err
			}
			a.metrics.RecordCalldata(ctx, "exact_input", a.chain.ID)
			return printCall(cmd.OutOrStdout(), call)
		},
	}
	cmd.Flags().StringVar(&pair, "pair", "WETH-USDC", "BASE-QUOTE pair; swaps BASE into QUOTE")
	cmd.Flags().StringVar(&amount, "amount", "1", "amount of BASE to sell")
	cmd.Flags().BoolVar(&calldata, "calldata", false, "also print SwapRouter02 exactInput calldata")
	cmd.Flags().StringVar(&recipient, "recipient", "", "swap recipient (default trading.recipient)")
	return cmd
}

func printCall(w io.Writer, call txbuilder.Call) error {
	tw := newTabWriter(w)
	fmt.Fprintf(tw, "to\t%s\n", call.To.Hex())
	fmt.Fprintf(tw, "value\t%s\n", call.Value)
	fmt.Fprintf(tw, "data\t%s\n", call.DataHex())
	return tw.Flush()
}
