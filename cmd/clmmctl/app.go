package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agatticelli/clmm-kit/internal/blockchain"
	"github.com/agatticelli/clmm-kit/internal/liquidity"
	"github.com/agatticelli/clmm-kit/internal/platform/cache"
	"github.com/agatticelli/clmm-kit/internal/platform/config"
	"github.com/agatticelli/clmm-kit/internal/platform/observability"
	"github.com/agatticelli/clmm-kit/internal/platform/resilience"
	"github.com/agatticelli/clmm-kit/internal/pricing"
	"github.com/agatticelli/clmm-kit/internal/routing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const serviceName = "clmmctl"

// app holds the wired dependencies of one command invocation. Network
// clients are created on first use so offline commands never dial.
type app struct {
	cfg      *config.Config
	chain    liquidity.Chain
	slippage decimal.Decimal
	logger   *observability.Logger
	metrics  *observability.Metrics
	tracer   *observability.TracerProvider
	cache    cache.Cache

	pool   *blockchain.ClientPool
	reader *blockchain.Reader
	router *routing.Client
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Observability.Logging.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	logger := observability.NewLogger(level, cfg.Observability.Logging.Format)

	chain, err := resolveChain(cfg.Ethereum.ChainID, opts.chain)
	if err != nil {
		return nil, err
	}

	slippage := cfg.Trading.Slippage()
	if opts.slippage != "" {
		if slippage, err = parseSlippage(opts.slippage); err != nil {
			return nil, err
		}
	}

	metrics, err := observability.NewMetrics(serviceName, cfg.Observability.Metrics.Enabled,
		observability.WithOTLPEndpoint(cfg.Observability.Metrics.OTLPEndpoint),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	tracer, err := observability.NewTracerProvider(ctx, observability.TracingConfig{
		ServiceName: serviceName,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		Enabled:     cfg.Observability.Tracing.Enabled,
		Sampler:     cfg.Observability.Tracing.Sampler,
		Ratio:       cfg.Observability.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	a := &app{
		cfg:      cfg,
		chain:    chain,
		slippage: slippage,
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
	}
	a.cache = a.newCache(ctx)
	return a, nil
}

// resolveChain picks the --chain value, an id or a network name, over the
// configured chain id
func resolveChain(configured uint64, flag string) (liquidity.Chain, error) {
	flag = strings.ToLower(strings.TrimSpace(flag))
	if flag == "" {
		return liquidity.ChainByID(configured)
	}
	if id, err := strconv.ParseUint(flag, 10, 64); err == nil {
		return liquidity.ChainByID(id)
	}
	return liquidity.ChainByName(flag)
}

func parseSlippage(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid slippage %q: %w", s, err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("slippage must be within [0, 100], got %s", d)
	}
	return d, nil
}

// newCache builds L1 memory plus, when enabled and reachable, L2 Redis.
// An unreachable Redis degrades to memory only.
func (a *app) newCache(ctx context.Context) cache.Cache {
	l1 := cache.NewMemoryCache(a.cfg.Cache.L1MaxSize, a.cfg.Cache.TokenTTL)

	var l2 cache.Cache
	if a.cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Address:  a.cfg.Redis.Address,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
			Prefix:   a.cfg.Redis.Prefix,
		})
		if err != nil {
			a.logger.LogWarn(ctx, "redis unavailable, using memory cache only", "error", err)
		} else {
			l2 = redisCache
		}
	}

	layered := cache.NewLayeredCache(l1, l2, a.metrics)
	layered.SetL1TTL(a.cfg.Cache.L1TTL)
	return layered
}

// Reader dials the RPC pool on first use
func (a *app) Reader(ctx context.Context) (*blockchain.Reader, error) {
	if a.reader != nil {
		return a.reader, nil
	}

	endpoints := make([]blockchain.EndpointConfig, len(a.cfg.Ethereum.RPCEndpoints))
	for i, ep := range a.cfg.Ethereum.RPCEndpoints {
		endpoints[i] = blockchain.EndpointConfig{URL: ep.URL, Weight: ep.Weight}
	}

	pool, err := blockchain.NewClientPool(ctx, blockchain.ClientPoolConfig{
		Endpoints:           endpoints,
		Logger:              a.logger,
		Metrics:             a.metrics,
		HealthCheckInterval: a.cfg.Ethereum.HealthCheckInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client pool: %w", err)
	}

	reader, err := blockchain.NewReader(blockchain.ReaderConfig{
		Caller:      pool,
		Cache:       a.cache,
		TokenTTL:    a.cfg.Cache.TokenTTL,
		CallTimeout: a.cfg.Ethereum.CallTimeout,
		Logger:      a.logger,
		Metrics:     a.metrics,
		Tracer:      a.tracer,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	a.pool, a.reader = pool, reader
	return reader, nil
}

// Router builds the routing client on first use
func (a *app) Router() (*routing.Client, error) {
	if a.router != nil {
		return a.router, nil
	}

	rc := a.cfg.Routing
	router, err := routing.NewClient(routing.ClientConfig{
		BaseURL:        rc.BaseURL,
		Timeout:        rc.Timeout,
		RateLimitRPM:   rc.RateLimit.RequestsPerMinute,
		RateLimitBurst: rc.RateLimit.Burst,
		RetryConfig: resilience.RetryConfig{
			MaxAttempts: rc.Retry.MaxAttempts,
			BaseDelay:   rc.Retry.BaseDelay,
			MaxDelay:    rc.Retry.MaxDelay,
			Jitter:      0.1,
		},
		BreakerConfig: resilience.CircuitBreakerConfig{
			FailureThreshold: rc.Breaker.FailureThreshold,
			Timeout:          rc.Breaker.Timeout,
		},
		Cache:    a.cache,
		QuoteTTL: 2 * time.Second,
		Logger:   a.logger,
		Metrics:  a.metrics,
		Tracer:   a.tracer,
	})
	if err != nil {
		return nil, err
	}
	a.router = router
	return router, nil
}

// resolveToken accepts a registry symbol or a token address
func (a *app) resolveToken(ctx context.Context, ref string) (pricing.Token, error) {
	if common.IsHexAddress(ref) {
		reader, err := a.Reader(ctx)
		if err != nil {
			return pricing.Token{}, err
		}
		return reader.Token(ctx, a.chain.ID, common.HexToAddress(ref))
	}
	return config.LookupToken(a.chain.ID, ref)
}

// resolvePair parses BASE-QUOTE where each side is a symbol or address
func (a *app) resolvePair(ctx context.Context, pair string) (base, quote pricing.Token, err error) {
	parts := strings.Split(pair, "-")
	if len(parts) != 2 {
		return base, quote, fmt.Errorf("invalid pair %q (expected BASE-QUOTE like WETH-USDC)", pair)
	}
	if base, err = a.resolveToken(ctx, parts[0]); err != nil {
		return base, quote, err
	}
	if quote, err = a.resolveToken(ctx, parts[1]); err != nil {
		return base, quote, err
	}
	if base.Equal(quote) {
		return base, quote, fmt.Errorf("base and quote tokens must be different: %s", pair)
	}
	return base, quote, nil
}

// recipient returns the flag value, else the configured default
func (a *app) recipient(flagValue string) (common.Address, error) {
	raw := flagValue
	if raw == "" {
		raw = a.cfg.Trading.Recipient
	}
	if raw == "" {
		return common.Address{}, errors.New("recipient is required (--recipient or trading.recipient)")
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid recipient address %q", raw)
	}
	return common.HexToAddress(raw), nil
}

func (a *app) Close(ctx context.Context) {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.LogWarn(ctx, "cache close failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracer.Shutdown(shutdownCtx); err != nil {
		a.logger.LogWarn(ctx, "tracer shutdown failed", "error", err)
	}
	if err := a.metrics.Shutdown(shutdownCtx); err != nil {
		a.logger.LogWarn(ctx, "metrics shutdown failed", "error", err)
	}
}
