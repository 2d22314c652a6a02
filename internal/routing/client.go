// Package routing fetches swap quotes from a Uniswap-style routing API.
package routing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agatticelli/clmm-kit/internal/platform/cache"
	"github.com/agatticelli/clmm-kit/internal/platform/observability"
	"github.com/agatticelli/clmm-kit/internal/platform/resilience"
	"github.com/agatticelli/clmm-kit/internal/pricing"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrNoRoute is returned when the routing service finds no path
	ErrNoRoute = errors.New("no route found")

	// ErrInvalidRequest is returned for requests rejected before sending
	ErrInvalidRequest = errors.New("invalid quote request")
)

// TradeType selects which side of the swap is fixed
type TradeType string

const (
	ExactIn  TradeType = "exactIn"
	ExactOut TradeType = "exactOut"
)

// QuoteRequest asks for a route swapping Amount of TokenIn into TokenOut
// (or, for ExactOut, for Amount of TokenOut).
type QuoteRequest struct {
	TokenIn  pricing.Token
	TokenOut pricing.Token
	Amount   *uint256.Int
	Type     TradeType
}

// Validate checks the request can be sent
func (r QuoteRequest) Validate() error {
	switch {
	case r.Amount == nil || r.Amount.IsZero():
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	case r.TokenIn.Equal(r.TokenOut):
		return fmt.Errorf("%w: tokenIn and tokenOut are the same", ErrInvalidRequest)
	case r.TokenIn.ChainID != r.TokenOut.ChainID:
		return fmt.Errorf("%w: cross-chain quotes are not supported", ErrInvalidRequest)
	case r.Type != "" && r.Type != ExactIn && r.Type != ExactOut:
		return fmt.Errorf("%w: unknown trade type %q", ErrInvalidRequest, r.Type)
	}
	return nil
}

func (r QuoteRequest) tradeType() TradeType {
	if r.Type == "" {
		return ExactIn
	}
	return r.Type
}

func (r QuoteRequest) cacheKey() string {
	return fmt.Sprintf("quote:%d:%s:%s:%s:%s",
		r.TokenIn.ChainID,
		strings.ToLower(r.TokenIn.Address.Hex()),
		strings.ToLower(r.TokenOut.Address.Hex()),
		r.tradeType(),
		r.Amount.Dec(),
	)
}

// StatusError is a non-200 response from the routing service. 429 and 5xx
// are retryable.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("routing service returned status %d: %s", e.Code, e.Body)
}

// Retryable reports whether another attempt may succeed
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// ClientConfig holds routing client configuration
type ClientConfig struct {
	BaseURL        string
	Timeout        time.Duration
	RateLimitRPM   int
	RateLimitBurst int
	RetryConfig    resilience.RetryConfig
	BreakerConfig  resilience.CircuitBreakerConfig
	Cache          cache.Cache   // optional raw response cache
	QuoteTTL       time.Duration // 0 disables caching
	HTTPClient     *http.Client
	Logger         *observability.Logger
	Metrics        *observability.Metrics
	Tracer         *observability.TracerProvider
}

// Client fetches and parses routing quotes
type Client struct {
	http     *http.Client
	baseURL  string
	limiter  *resilience.AdaptiveLimiter
	retryCfg resilience.RetryConfig
	cb       *resilience.CircuitBreaker
	cache    cache.Cache
	quoteTTL time.Duration
	logger   *observability.Logger
	metrics  *observability.Metrics
	tracer   *observability.TracerProvider
}

// NewClient creates a new routing client
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid routing base url %q", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimitRPM <= 0 {
		cfg.RateLimitRPM = 120
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = resilience.DefaultRetryConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNopTracerProvider()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	metrics := cfg.Metrics
	breakerCfg := cfg.BreakerConfig
	breakerCfg.Name = "routing"
	if breakerCfg.IsFailure == nil {
		breakerCfg.IsFailure = countsAgainstBreaker
	}
	userHook := breakerCfg.OnStateChange
	breakerCfg.OnStateChange = func(from, to resilience.State) {
		metrics.SetCircuitBreakerState(context.Background(), "routing", int64(to))
		cfg.Logger.Warn("routing circuit breaker state changed", "from", from.String(), "to", to.String())
		if userHook != nil {
			userHook(from, to)
		}
	}

	return &Client{
		http:     cfg.HTTPClient,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		limiter:  resilience.NewAdaptiveLimiterFromRPM(cfg.RateLimitRPM, cfg.RateLimitBurst),
		retryCfg: cfg.RetryConfig,
		cb:       resilience.NewCircuitBreaker(breakerCfg),
		cache:    cfg.Cache,
		quoteTTL: cfg.QuoteTTL,
		logger:   cfg.Logger.Component("routing"),
		metrics:  metrics,
		tracer:   cfg.Tracer,
	}, nil
}

// countsAgainstBreaker ignores client-side rejections and cancellations
func countsAgainstBreaker(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrNoRoute) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}

func retryable(err error) bool {
	if errors.Is(err, ErrNoRoute) {
		return false
	}
	return resilience.IsRetryable(err)
}

// Quote fetches a route for req and parses it
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (q *pricing.Quote, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := c.tracer.StartSpan(ctx, "routing.quote",
		attribute.String("token_in", req.TokenIn.Symbol),
		attribute.String("token_out", req.TokenOut.Symbol),
		attribute.String("type", string(req.tradeType())),
	)
	start := time.Now()
	defer func() {
		status := "success"
		switch {
		case errors.Is(err, context.Canceled):
			status = "cancelled"
		case err != nil:
			status = "error"
		}
		c.metrics.RecordQuote(ctx, status, time.Since(start))
		observability.EndSpanWithError(span, err)
	}()

	body, err := c.fetchCached(ctx, req)
	if err != nil {
		return nil, err
	}

	q, err = pricing.ParseQuote(body)
	if err != nil {
		c.metrics.RecordError(ctx, "quote_decode")
		return nil, err
	}

	c.logger.LogDebug(ctx, "quote fetched",
		"token_in", req.TokenIn.String(),
		"token_out", req.TokenOut.String(),
		"amount", req.Amount.Dec(),
		"hops", q.HopCount(),
	)
	return q, nil
}

func (c *Client) fetchCached(ctx context.Context, req QuoteRequest) ([]byte, error) {
	useCache := c.cache != nil && c.quoteTTL > 0
	key := req.cacheKey()

	if useCache {
		if body, err := c.cache.Get(ctx, key); err == nil {
			return body, nil
		}
	}

	body, err := resilience.ExecuteWithResult(c.cb, ctx, func(ctx context.Context) ([]byte, error) {
		return resilience.RetryIfWithResult(ctx, c.retryCfg, retryable, func(ctx context.Context) ([]byte, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter error: %w", err)
			}
			body, err := c.fetch(ctx, req)
			c.observeLimit(ctx, err)
			return body, err
		})
	})
	if err != nil {
		return nil, err
	}

	if useCache {
		if err := c.cache.Set(ctx, key, body, c.quoteTTL); err != nil {
			c.logger.LogWarn(ctx, "quote cache write failed", "key", key, "error", err)
		}
	}
	return body, nil
}

// observeLimit feeds the outcome of one request back into the limiter
func (c *Client) observeLimit(ctx context.Context, err error) {
	var se *StatusError
	switch {
	case err == nil || errors.Is(err, ErrNoRoute):
		c.limiter.RecordSuccess()
	case errors.As(err, &se) && se.Code == http.StatusTooManyRequests:
		c.limiter.RecordRateLimited()
		c.logger.LogWarn(ctx, "routing API rate limited, backing off", "rate_per_sec", c.limiter.CurrentRate())
	default:
		c.limiter.RecordError()
	}
}

func (c *Client) fetch(ctx context.Context, req QuoteRequest) ([]byte, error) {
	params := url.Values{}
	params.Set("tokenInAddress", req.TokenIn.Address.Hex())
	params.Set("tokenInChainId", strconv.FormatUint(req.TokenIn.ChainID, 10))
	params.Set("tokenOutAddress", req.TokenOut.Address.Hex())
	params.Set("tokenOutChainId", strconv.FormatUint(req.TokenOut.ChainID, 10))
	params.Set("amount", req.Amount.Dec())
	params.Set("type", string(req.tradeType()))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoRoute, req.TokenIn, req.TokenOut)
	default:
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 256)}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
