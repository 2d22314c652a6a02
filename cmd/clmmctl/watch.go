package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/agatticelli/clmm-kit/internal/blockchain"
	"github.com/agatticelli/clmm-kit/internal/liquidity"
	"github.com/agatticelli/clmm-kit/internal/platform/cache"
	"github.com/agatticelli/clmm-kit/internal/platform/config"
	"github.com/agatticelli/clmm-kit/internal/platform/worker"
	"github.com/agatticelli/clmm-kit/internal/pricing"
	"github.com/agatticelli/clmm-kit/internal/routing"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		pair        string
		positionIDs []string
		poll        time.Duration
		serve       bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-quote amounts typed on stdin and follow a position block by block",
		Long: "Each line on stdin is a new BASE amount to quote. Lines typed in quick\n" +
			"succession are debounced and only the latest is quoted. With --position\n" +
			"the position's range status is printed on every new block.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			base, quote, err := a.resolvePair(ctx, pair)
			if err != nil {
				return err
			}

			var (
				tokenIDs []*big.Int
				reader   *blockchain.Reader
			)
			for _, raw := range positionIDs {
				id, err := parseTokenID(raw)
				if err != nil {
					return err
				}
				tokenIDs = append(tokenIDs, id)
			}
			pool := worker.NewPool(4)
			if len(tokenIDs) > 0 {
				if reader, err = a.Reader(ctx); err != nil {
					return err
				}
				warmer := cache.NewWarmer(a.logger, cache.DefaultWarmupConfig())
				warmer.RegisterProvider(blockchain.NewRegistryWarmup(reader, config.RegistryTokens(a.chain.ID)))
				warmer.RegisterProvider(blockchain.NewPositionWarmup(reader, a.chain, tokenIDs, pool))
				warmer.Warmup(ctx)
			}

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			g, gctx := errgroup.WithContext(runCtx)
			out := &syncWriter{w: cmd.OutOrStdout()}

			if serve {
				srv := newHTTPServer(a)
				g.Go(func() error { return runHTTPServer(gctx, srv, a) })
			}

			g.Go(func() error {
				err := watchQuotes(gctx, a, cmd.InOrStdin(), out, base, quote)
				// stdin closed: without a position there is nothing left to follow
				if err == nil && len(tokenIDs) == 0 {
					cancel()
				}
				return err
			})

			if len(tokenIDs) > 0 {
				g.Go(func() error {
					a.pool.RunHealthChecks(gctx)
					return nil
				})
				g.Go(func() error {
					return watchPositions(gctx, a, reader, pool, out, tokenIDs, poll)
				})
			}

			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&pair, "pair", "WETH-USDC", "BASE-QUOTE pair; stdin amounts are BASE")
	cmd.Flags().StringSliceVar(&positionIDs, "position", nil, "position token ids to follow (repeat or comma separate)")
	cmd.Flags().DurationVar(&poll, "poll", 12*time.Second, "block polling interval")
	cmd.Flags().BoolVar(&serve, "serve", true, "serve /metrics, /health and /ready on http.port")
	return cmd
}

// watchQuotes feeds stdin lines into a debounced quote stream. It returns
// when stdin is exhausted and the last quote is printed.
func watchQuotes(ctx context.Context, a *app, in io.Reader, out io.Writer, base, quote pricing.Token) error {
	router, err := a.Router()
	if err != nil {
		return err
	}
	stream := routing.NewQuoteStream(router, routing.StreamConfig{
		Debounce: a.cfg.Routing.Debounce,
		Logger:   a.logger,
		Metrics:  a.metrics,
	})

	inputs := make(chan routing.QuoteRequest)
	results := stream.Run(ctx, inputs)

	go func() {
		defer close(inputs)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			raw, err := parseAmount(line, base)
			if err != nil {
				fmt.Fprintln(out, "skipping:", err)
				continue
			}
			select {
			case inputs <- routing.QuoteRequest{TokenIn: base, TokenOut: quote, Amount: raw, Type: routing.ExactIn}:
			case <-ctx.Done():
				return
			}
		}
	}()

	for res := range results {
		if res.Err != nil {
			fmt.Fprintf(out, "quote #%d failed: %v\n", res.Seq, res.Err)
			continue
		}
		an := pricing.Analyze(res.Quote, a.slippage)
		recordAnalysis(ctx, a.metrics, an)
		fmt.Fprintf(out, "quote #%d\n", res.Seq)
		if err := printAnalysis(out, res.Quote, an, a.slippage); err != nil {
			return err
		}
	}
	return nil
}

type snapshot struct {
	pos  *liquidity.Position
	pool *liquidity.PoolState
}

// watchPositions re-reads every position on each new block and prints its
// range status and what a full withdrawal would return.
func watchPositions(ctx context.Context, a *app, reader *blockchain.Reader, pool *worker.Pool, out io.Writer, tokenIDs []*big.Int, poll time.Duration) error {
	watcher := blockchain.NewBlockWatcher(blockchain.BlockWatcherConfig{
		Source:       a.pool,
		PollInterval: poll,
		Logger:       a.logger,
	})

	calc := liquidity.NewCalculator()
	lastStatus := make(map[string]string, len(tokenIDs))

	for block := range watcher.Watch(ctx) {
		results := worker.Map(ctx, pool, tokenIDs, func(ctx context.Context, id *big.Int) (snapshot, error) {
			pos, state, err := reader.Snapshot(ctx, a.chain, id)
			return snapshot{pos: pos, pool: state}, err
		})

		for _, res := range results {
			id := tokenIDs[res.Index].String()
			if res.Err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.logger.LogWarn(ctx, "position snapshot failed", "block", block, "token_id", id, "error", res.Err)
				continue
			}

			pos, state := res.Value.pos, res.Value.pool
			status := pos.Status(state.CurrentTick).String()
			r := calc.ComputeRemovalAmounts(state, pos, pos.Liquidity, a.slippage)
			fmt.Fprintf(out, "block %d: #%s tick %d %s, withdrawable %s + %s\n",
				block, id, state.CurrentTick, status,
				amountString(r.Amount0, pos.Token0), amountString(r.Amount1, pos.Token1),
			)
			if prev, ok := lastStatus[id]; ok && prev != status {
				a.logger.LogInfo(ctx, "position range status changed", "token_id", id, "from", prev, "to", status)
			}
			lastStatus[id] = status
		}
	}
	return ctx.Err()
}

func newHTTPServer(a *app) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	// ready once at least one RPC endpoint answers, when RPC is in use
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := map[string]any{"status": "ready"}
		code := http.StatusOK
		if a.pool != nil {
			body["rpc_endpoints"] = a.pool.EndpointStatus()
			if a.pool.HealthyCount() == 0 {
				body["status"] = "not ready"
				code = http.StatusServiceUnavailable
			}
		}
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	})

	mux.Handle("/metrics", a.metrics.Handler())

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HTTP.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func runHTTPServer(ctx context.Context, srv *http.Server, a *app) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// syncWriter serializes writes from the quote and position loops
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
