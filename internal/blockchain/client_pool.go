// Package blockchain reads pool, position and token state from Uniswap V3
// contracts through a pool of JSON-RPC endpoints.
package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agatticelli/clmm-kit/internal/platform/observability"
	"github.com/agatticelli/clmm-kit/internal/platform/resilience"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrNoHealthyEndpoint is returned when every endpoint is down
var ErrNoHealthyEndpoint = errors.New("no healthy RPC endpoints available")

// ContractCaller executes read-only contract calls
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Backend is one RPC connection
type Backend interface {
	ContractCaller
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// Dialer opens a Backend for an endpoint URL
type Dialer func(ctx context.Context, url string) (Backend, error)

// DialEthclient is the production Dialer
func DialEthclient(ctx context.Context, url string) (Backend, error) {
	return ethclient.DialContext(ctx, url)
}

type rpcEndpoint struct {
	url     string
	weight  int
	mu      sync.Mutex
	backend Backend
	healthy atomic.Bool
}

func (e *rpcEndpoint) client() Backend {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backend
}

// ClientPool spreads calls over endpoints by weight and fails over to the
// next healthy endpoint when one errors at the transport level.
type ClientPool struct {
	endpoints []*rpcEndpoint
	schedule  []int // endpoint indexes repeated by weight
	next      atomic.Uint64
	dial      Dialer
	logger    *observability.Logger
	metrics   *observability.Metrics
	interval  time.Duration
}

// ClientPoolConfig holds client pool configuration
type ClientPoolConfig struct {
	Endpoints           []EndpointConfig
	Logger              *observability.Logger
	Metrics             *observability.Metrics
	HealthCheckInterval time.Duration
	Dial                Dialer
}

// EndpointConfig represents endpoint configuration
type EndpointConfig struct {
	URL    string
	Weight int
}

// NewClientPool dials every endpoint. Endpoints that fail to dial start
// unhealthy and are retried by health checks; at least one must connect.
func NewClientPool(ctx context.Context, cfg ClientPoolConfig) (*ClientPool, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one RPC endpoint is required")
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}
	if cfg.Dial == nil {
		cfg.Dial = DialEthclient
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}

	pool := &ClientPool{
		dial:     cfg.Dial,
		logger:   cfg.Logger.Component("rpc"),
		metrics:  cfg.Metrics,
		interval: cfg.HealthCheckInterval,
	}

	for i, epCfg := range cfg.Endpoints {
		weight := epCfg.Weight
		if weight <= 0 {
			weight = 1
		}
		ep := &rpcEndpoint{url: epCfg.URL, weight: weight}

		backend, err := cfg.Dial(ctx, epCfg.URL)
		if err != nil {
			pool.logger.LogError(ctx, "failed to connect to RPC endpoint", err, "url", epCfg.URL)
		} else {
			ep.backend = backend
			ep.healthy.Store(true)
			pool.logger.LogDebug(ctx, "connected to RPC endpoint", "url", epCfg.URL, "weight", weight)
		}
		pool.metrics.RecordRPCEndpointHealth(ctx, epCfg.URL, err == nil)

		pool.endpoints = append(pool.endpoints, ep)
		for w := 0; w < weight; w++ {
			pool.schedule = append(pool.schedule, i)
		}
	}

	if pool.HealthyCount() == 0 {
		pool.Close()
		return nil, ErrNoHealthyEndpoint
	}

	return pool, nil
}

// pick returns healthy endpoints in try order, starting from the next
// scheduled slot and visiting each endpoint once.
func (cp *ClientPool) pick() []*rpcEndpoint {
	start := int(cp.next.Add(1)-1) % len(cp.schedule)
	seen := make(map[int]bool, len(cp.endpoints))
	order := make([]*rpcEndpoint, 0, len(cp.endpoints))

	for i := 0; i < len(cp.schedule); i++ {
		idx := cp.schedule[(start+i)%len(cp.schedule)]
		if seen[idx] {
			continue
		}
		seen[idx] = true
		if ep := cp.endpoints[idx]; ep.healthy.Load() && ep.client() != nil {
			order = append(order, ep)
		}
	}
	return order
}

// CallContract runs a read-only call, failing over on transport errors.
// Reverts and other non-retryable errors return immediately.
func (cp *ClientPool) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	endpoints := cp.pick()
	if len(endpoints) == 0 {
		return nil, ErrNoHealthyEndpoint
	}

	var lastErr error
	for _, ep := range endpoints {
		out, err := ep.client().CallContract(ctx, msg, blockNumber)
		if err == nil {
			return out, nil
		}
		if !resilience.IsRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		cp.markUnhealthy(ctx, ep, err)
	}

	return nil, fmt.Errorf("all endpoints failed: %w", lastErr)
}

// BlockNumber returns the latest block number from a healthy endpoint
func (cp *ClientPool) BlockNumber(ctx context.Context) (uint64, error) {
	endpoints := cp.pick()
	if len(endpoints) == 0 {
		return 0, ErrNoHealthyEndpoint
	}
	return endpoints[0].client().BlockNumber(ctx)
}

func (cp *ClientPool) markUnhealthy(ctx context.Context, ep *rpcEndpoint, err error) {
	if ep.healthy.Swap(false) {
		cp.logger.LogWarn(ctx, "marking RPC endpoint as unhealthy", "url", ep.url, "error", err)
		cp.metrics.RecordRPCEndpointHealth(ctx, ep.url, false)
	}
}

// RunHealthChecks probes endpoints every interval until ctx ends.
func (cp *ClientPool) RunHealthChecks(ctx context.Context) {
	ticker := time.NewTicker(cp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cp.CheckNow(ctx)
		}
	}
}

// CheckNow probes every endpoint once, redialing those without a connection.
func (cp *ClientPool) CheckNow(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for _, ep := range cp.endpoints {
		wg.Add(1)
		go func(ep *rpcEndpoint) {
			defer wg.Done()
			cp.checkEndpoint(checkCtx, ep)
		}(ep)
	}
	wg.Wait()
}

func (cp *ClientPool) checkEndpoint(ctx context.Context, ep *rpcEndpoint) {
	ep.mu.Lock()
	if ep.backend == nil {
		backend, err := cp.dial(ctx, ep.url)
		if err != nil {
			ep.mu.Unlock()
			ep.healthy.Store(false)
			cp.metrics.RecordRPCEndpointHealth(ctx, ep.url, false)
			return
		}
		ep.backend = backend
	}
	backend := ep.backend
	ep.mu.Unlock()

	if _, err := backend.BlockNumber(ctx); err != nil {
		if ctx.Err() != nil {
			// our own timeout, not the endpoint's fault
			return
		}
		cp.markUnhealthy(ctx, ep, err)
		return
	}

	if !ep.healthy.Swap(true) {
		cp.logger.LogInfo(ctx, "RPC endpoint is healthy again", "url", ep.url)
	}
	cp.metrics.RecordRPCEndpointHealth(ctx, ep.url, true)
}

// HealthyCount returns the number of healthy endpoints
func (cp *ClientPool) HealthyCount() int {
	count := 0
	for _, ep := range cp.endpoints {
		if ep.healthy.Load() {
			count++
		}
	}
	return count
}

// EndpointStatus returns health per endpoint URL
func (cp *ClientPool) EndpointStatus() map[string]bool {
	status := make(map[string]bool, len(cp.endpoints))
	for _, ep := range cp.endpoints {
		status[ep.url] = ep.healthy.Load()
	}
	return status
}

// Close closes all client connections
func (cp *ClientPool) Close() {
	for _, ep := range cp.endpoints {
		ep.mu.Lock()
		if ep.backend != nil {
			ep.backend.Close()
			ep.backend = nil
		}
		ep.healthy.Store(false)
		ep.mu.Unlock()
	}
}
