package routing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agatticelli/clmm-kit/internal/platform/cache"
	"github.com/agatticelli/clmm-kit/internal/platform/resilience"
	"github.com/agatticelli/clmm-kit/internal/pricing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const quoteResponse = `{
	"amount": "1000000000",
	"amountDecimals": "1000",
	"quote": "1052266987520000000",
	"quoteDecimals": "1.05226698752",
	"quoteGasAdjusted": "1050000000000000000",
	"gasUseEstimateUSD": "3.25",
	"route": [[{
		"type": "v3-pool",
		"address": "0x8ad599c3A0ff1De082011EFDDc58f1908eb6e6D8",
		"tokenIn": {"chainId": 1, "decimals": "6", "address": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "symbol": "USDC"},
		"tokenOut": {"chainId": 1, "decimals": "18", "address": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "symbol": "WETH"},
		"fee": "3000",
		"liquidity": "17654394087348262389",
		"sqrtRatioX96": "2596148429267413814265248164610048",
		"tickCurrent": "207243",
		"amountIn": "1000000000",
		"amountOut": "1052266987520000000"
	}]]
}`

var (
	usdc = pricing.Token{Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Decimals: 6, Symbol: "USDC", ChainID: 1}
	weth = pricing.Token{Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Decimals: 18, Symbol: "WETH", ChainID: 1}
)

func usdcToWeth(amount uint64) QuoteRequest {
	return QuoteRequest{TokenIn: usdc, TokenOut: weth, Amount: uint256.NewInt(amount)}
}

// scriptedServer answers with the given status codes in order, then 200.
func scriptedServer(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1)) - 1
		if n < len(statuses) && statuses[n] != http.StatusOK {
			w.WriteHeader(statuses[n])
			_, _ = w.Write([]byte(`{"errorCode":"TEST"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(quoteResponse))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestClient(t *testing.T, baseURL string, mutate ...func(*ClientConfig)) *Client {
	t.Helper()
	cfg := ClientConfig{
		BaseURL:        baseURL,
		RateLimitRPM:   60000,
		RateLimitBurst: 100,
		RetryConfig: resilience.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    2 * time.Millisecond,
		},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "/relative/path"} {
		t.Run(raw, func(t *testing.T) {
			if _, err := NewClient(ClientConfig{BaseURL: raw}); err == nil {
				t.Errorf("expected error for %q", raw)
			}
		})
	}
}

func TestClient_Quote(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/quote" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		_, _ = w.Write([]byte(quoteResponse))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/v1/")
	q, err := c.Quote(context.Background(), usdcToWeth(1_000_000_000))
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}

	if q.AmountIn.Uint64() != 1_000_000_000 {
		t.Errorf("amount in: got %s", q.AmountIn.Dec())
	}
	if q.HopCount() != 1 {
		t.Errorf("hops: got %d", q.HopCount())
	}

	want := map[string]string{
		"tokenInAddress":  usdc.Address.Hex(),
		"tokenInChainId":  "1",
		"tokenOutAddress": weth.Address.Hex(),
		"tokenOutChainId": "1",
		"amount":          "1000000000",
		"type":            "exactIn",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s: got %q, want %q", k, gotQuery[k], v)
		}
	}
}

func TestClient_RateLimitedSlowsDown(t *testing.T) {
	srv, _ := scriptedServer(t, http.StatusTooManyRequests)
	c := newTestClient(t, srv.URL)
	before := c.limiter.CurrentRate()

	if _, err := c.Quote(context.Background(), usdcToWeth(1_000_000)); err != nil {
		t.Fatalf("expected success after retry: %v", err)
	}
	if got := c.limiter.CurrentRate(); got >= before {
		t.Errorf("rate after 429 = %v, want below %v", got, before)
	}
	if c.limiter.RateLimitHits() != 1 {
		t.Errorf("hits = %d, want 1", c.limiter.RateLimitHits())
	}
}

func TestClient_QuoteStatusHandling(t *testing.T) {
	tests := []struct {
		name     string
		statuses []int
		wantHits int32
		check    func(t *testing.T, err error)
	}{
		{
			name:     "retries transient failures",
			statuses: []int{http.StatusServiceUnavailable, http.StatusTooManyRequests},
			wantHits: 3,
			check: func(t *testing.T, err error) {
				if err != nil {
					t.Errorf("expected success after retries: %v", err)
				}
			},
		},
		{
			name:     "gives up after max attempts",
			statuses: []int{500, 502, 503, 504},
			wantHits: 3,
			check: func(t *testing.T, err error) {
				var se *StatusError
				if !errors.As(err, &se) || se.Code != 503 {
					t.Errorf("got %v, want last status 503", err)
				}
			},
		},
		{
			name:     "no route is not retried",
			statuses: []int{http.StatusNotFound},
			wantHits: 1,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrNoRoute) {
					t.Errorf("got %v, want ErrNoRoute", err)
				}
			},
		},
		{
			name:     "bad request is not retried",
			statuses: []int{http.StatusBadRequest},
			wantHits: 1,
			check: func(t *testing.T, err error) {
				var se *StatusError
				if !errors.As(err, &se) || se.Code != http.StatusBadRequest || se.Retryable() {
					t.Errorf("got %v, want permanent 400", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := scriptedServer(t, tt.statuses...)
			c := newTestClient(t, srv.URL)

			_, err := c.Quote(context.Background(), usdcToWeth(1_000_000))
			tt.check(t, err)
			if got := hits.Load(); got != tt.wantHits {
				t.Errorf("hits: got %d, want %d", got, tt.wantHits)
			}
		})
	}
}

func TestClient_QuoteInvalidRequest(t *testing.T) {
	srv, hits := scriptedServer(t)
	c := newTestClient(t, srv.URL)

	tests := map[string]QuoteRequest{
		"zero amount": usdcToWeth(0),
		"nil amount":  {TokenIn: usdc, TokenOut: weth},
		"same token":  {TokenIn: usdc, TokenOut: usdc, Amount: uint256.NewInt(1)},
		"cross chain": {TokenIn: usdc, TokenOut: pricing.Token{Address: weth.Address, ChainID: 10}, Amount: uint256.NewInt(1)},
		"bad type":    {TokenIn: usdc, TokenOut: weth, Amount: uint256.NewInt(1), Type: "sideways"},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := c.Quote(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("got %v, want ErrInvalidRequest", err)
			}
		})
	}
	if hits.Load() != 0 {
		t.Errorf("invalid requests reached the server %d times", hits.Load())
	}
}

func TestClient_QuoteMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"amount": `))
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv.URL).Quote(context.Background(), usdcToWeth(1)); err == nil {
		t.Error("expected decode error")
	}
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	srv, hits := scriptedServer(t, 500, 500, 500, 500, 500)
	c := newTestClient(t, srv.URL, func(cfg *ClientConfig) {
		cfg.RetryConfig.MaxAttempts = 1
		cfg.BreakerConfig = resilience.CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Hour}
	})

	for i := 0; i < 2; i++ {
		if _, err := c.Quote(context.Background(), usdcToWeth(1)); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	_, err := c.Quote(context.Background(), usdcToWeth(1))
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("got %v, want ErrCircuitOpen", err)
	}
	if hits.Load() != 2 {
		t.Errorf("open breaker should not reach the server, hits %d", hits.Load())
	}
}

func TestClient_QuoteCache(t *testing.T) {
	srv, hits := scriptedServer(t)
	c := newTestClient(t, srv.URL, func(cfg *ClientConfig) {
		cfg.Cache = cache.NewMemoryCache(10, time.Minute)
		cfg.QuoteTTL = time.Minute
	})

	for i := 0; i < 3; i++ {
		if _, err := c.Quote(context.Background(), usdcToWeth(5)); err != nil {
			t.Fatalf("Quote failed: %v", err)
		}
	}
	if _, err := c.Quote(context.Background(), usdcToWeth(6)); err != nil {
		t.Fatalf("Quote failed: %v", err)
	}

	if hits.Load() != 2 {
		t.Errorf("hits: got %d, want 2 (one per distinct amount)", hits.Load())
	}
}
