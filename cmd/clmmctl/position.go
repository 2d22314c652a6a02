package main

import (
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/agatticelli/clmm-kit/internal/liquidity"
	"github.com/agatticelli/clmm-kit/internal/pricing"
	"github.com/agatticelli/clmm-kit/internal/txbuilder"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

func parseTokenID(s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(s, 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("invalid position token id %q", s)
	}
	return id, nil
}

func amountString(raw *uint256.Int, tok pricing.Token) string {
	return pricing.RawToDecimal(raw, tok.Decimals).String() + " " + tok.String()
}

func printPosition(w io.Writer, pos *liquidity.Position, pool *liquidity.PoolState) error {
	tw := newTabWriter(w)
	fmt.Fprintf(tw, "position\t#%s %s/%s %s\n", pos.TokenID, pos.Token0, pos.Token1, pos.Fee.Percent())
	fmt.Fprintf(tw, "range\t[%d, %d)\n", pos.TickLower, pos.TickUpper)
	fmt.Fprintf(tw, "price range\t%s - %s %s per %s\n",
		pricing.TickToPrice(pos.TickLower, pos.Token0.Decimals, pos.Token1.Decimals),
		pricing.TickToPrice(pos.TickUpper, pos.Token0.Decimals, pos.Token1.Decimals),
		pos.Token1, pos.Token0,
	)
	fmt.Fprintf(tw, "pool tick\t%d (%s)\n", pool.CurrentTick, pos.Status(pool.CurrentTick))
	fmt.Fprintf(tw, "liquidity\t%s\n", pos.Liquidity)
	return tw.Flush()
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	var (
		percent   uint8
		recipient string
	)

	cmd := &cobra.Command{
		Use:   "remove TOKEN_ID",
		Short: "Compute withdrawal amounts and decreaseLiquidity+collect calldata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tokenID, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			if percent == 0 || percent > 100 {
				return fmt.Errorf("percent must be within [1, 100], got %d", percent)
			}

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			to, err := a.recipient(recipient)
			if err != nil {
				return err
			}
			reader, err := a.Reader(ctx)
			if err != nil {
				return err
			}
			pos, pool, err := reader.Snapshot(ctx, a.chain, tokenID)
			if err != nil {
				return err
			}

			calc := liquidity.NewCalculator()
			r := calc.ComputeRemovalForPercentage(pool, pos, percent, a.slippage)

			call, err := txbuilder.RemoveLiquidity(a.chain, tokenID, to, r)
			if err != nil {
				return err
			}
			a.metrics.RecordCalldata(ctx, "remove_liquidity", a.chain.ID)

			out := cmd.OutOrStdout()
			if err := printPosition(out, pos, pool); err != nil {
				return err
			}
			tw := newTabWriter(out)
			fmt.Fprintf(tw, "removing\t%d%% (%s liquidity)\n", percent, r.Liquidity)
			fmt.Fprintf(tw, "amount0\t%s (min %s)\n", amountString(r.Amount0, pos.Token0), amountString(r.Amount0Min, pos.Token0))
			fmt.Fprintf(tw, "amount1\t%s (min %s)\n", amountString(r.Amount1, pos.Token1), amountString(r.Amount1Min, pos.Token1))
			fmt.Fprintf(tw, "deadline\t%s\n", time.Unix(int64(r.Deadline), 0).UTC().Format(time.RFC3339))
			if err := tw.Flush(); err != nil {
				return err
			}
			return printCall(out, call)
		},
	}
	cmd.Flags().Uint8Var(&percent, "percent", 100, "share of the position's liquidity to remove (1-100)")
	cmd.Flags().StringVar(&recipient, "recipient", "", "recipient of withdrawn tokens (default trading.recipient)")
	return cmd
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var amount0, amount1 string

	cmd := &cobra.Command{
		Use:   "add TOKEN_ID",
		Short: "Compute increaseLiquidity parameters and calldata for an existing position",
		Long: "Give exactly one of --amount0 or --amount1; the other side is derived\n" +
			"from the pool price so the deposit matches the position's range.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tokenID, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			if (amount0 == "") == (amount1 == "") {
				return fmt.Errorf("give exactly one of --amount0 or --amount1")
			}

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			reader, err := a.Reader(ctx)
			if err != nil {
				return err
			}
			pos, pool, err := reader.Snapshot(ctx, a.chain, tokenID)
			if err != nil {
				return err
			}

			side, given, tok := liquidity.Token0, amount0, pos.Token0
			if amount1 != "" {
				side, given, tok = liquidity.Token1, amount1, pos.Token1
			}
			raw, err := parseAmount(given, tok)
			if err != nil {
				return err
			}

			amounts, err := liquidity.ComputeAddAmounts(pool, pos.TickLower, pos.TickUpper, raw, side)
			if err != nil {
				return fmt.Errorf("%s deposit into %s position: %w", tok, pos.Status(pool.CurrentTick), err)
			}

			calc := liquidity.NewCalculator()
			params := calc.ComputeIncreaseLiquidityParams(amounts.Amount0, amounts.Amount1, a.slippage, a.chain)

			call, err := txbuilder.IncreaseLiquidity(tokenID, params)
			if err != nil {
				return err
			}
			a.metrics.RecordCalldata(ctx, "increase_liquidity", a.chain.ID)

			out := cmd.OutOrStdout()
			if err := printPosition(out, pos, pool); err != nil {
				return err
			}
			tw := newTabWriter(out)
			fmt.Fprintf(tw, "amount0 desired\t%s (min %s)\n", amountString(params.Amount0Desired, pos.Token0), amountString(params.Amount0Min, pos.Token0))
			fmt.Fprintf(tw, "amount1 desired\t%s (min %s)\n", amountString(params.Amount1Desired, pos.Token1), amountString(params.Amount1Min, pos.Token1))
			fmt.Fprintf(tw, "liquidity added\t%s\n", amounts.Liquidity)
			fmt.Fprintf(tw, "deadline\t%s\n", time.Unix(int64(params.Deadline), 0).UTC().Format(time.RFC3339))
			if err := tw.Flush(); err != nil {
				return err
			}
			return printCall(out, call)
		},
	}
	cmd.Flags().StringVar(&amount0, "amount0", "", "deposit amount of token0")
	cmd.Flags().StringVar(&amount1, "amount1", "", "deposit amount of token1")
	return cmd
}
