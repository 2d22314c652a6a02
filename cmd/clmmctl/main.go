// Command clmmctl converts prices to ticks, analyzes routing quotes and
// builds Uniswap V3 position transactions.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/agatticelli/clmm-kit/internal/liquidity"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	chain      string
	slippage   string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "clmmctl",
		Short:         "Concentrated liquidity toolkit for Uniswap V3",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (default ./config/config.yaml)")
	root.PersistentFlags().StringVar(&opts.chain, "chain", "", "chain id or name: "+chainNames()+" (default from config)")
	root.PersistentFlags().StringVar(&opts.slippage, "slippage", "", "slippage tolerance in percent (default from config)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newTickCmd(opts),
		newRangeCmd(opts),
		newQuoteCmd(opts),
		newRemoveCmd(opts),
		newAddCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

func chainNames() string {
	var names []string
	for _, c := range liquidity.SupportedChains() {
		names = append(names, c.Name)
	}
	return strings.Join(names, ", ")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
