package cache

import (
	"context"
	"sync"
	"time"

	"github.com/agatticelli/clmm-kit/internal/platform/observability"
)

// WarmupProvider pre-populates the cache with data it knows will be read.
// Warmup must be idempotent.
type WarmupProvider interface {
	Name() string
	Warmup(ctx context.Context) error
}

// WarmupConfig configures a Warmer
type WarmupConfig struct {
	Timeout         time.Duration // bound on the whole warmup
	Parallel        bool
	ContinueOnError bool // sequential mode only
}

// DefaultWarmupConfig returns sensible defaults for cache warming
func DefaultWarmupConfig() WarmupConfig {
	return WarmupConfig{
		Timeout:         15 * time.Second,
		Parallel:        true,
		ContinueOnError: true,
	}
}

// WarmupResult is the outcome of one provider
type WarmupResult struct {
	Provider string
	Duration time.Duration
	Err      error
}

// WarmupResults aggregates one Warmup run
type WarmupResults struct {
	Results   []WarmupResult
	TotalTime time.Duration
	Errors    int
}

// HasErrors reports whether any provider failed
func (wr *WarmupResults) HasErrors() bool {
	return wr.Errors > 0
}

// Warmer runs registered providers before a long-running command starts.
// Warmup failures are logged, never fatal: a cold cache only costs reads.
type Warmer struct {
	providers []WarmupProvider
	logger    *observability.Logger
	config    WarmupConfig
}

// NewWarmer creates a new cache warmer
func NewWarmer(logger *observability.Logger, config WarmupConfig) *Warmer {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultWarmupConfig().Timeout
	}
	return &Warmer{logger: logger.Component("cache_warmer"), config: config}
}

// RegisterProvider adds a provider
func (w *Warmer) RegisterProvider(provider WarmupProvider) {
	w.providers = append(w.providers, provider)
}

// Warmup runs every provider. In parallel mode results are in registration
// order.
func (w *Warmer) Warmup(ctx context.Context) *WarmupResults {
	start := time.Now()
	results := &WarmupResults{}
	if len(w.providers) == 0 {
		return results
	}

	warmupCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	if w.config.Parallel {
		results.Results = w.warmupParallel(warmupCtx)
	} else {
		results.Results = w.warmupSequential(warmupCtx)
	}

	for _, r := range results.Results {
		if r.Err != nil {
			results.Errors++
		}
	}
	results.TotalTime = time.Since(start)

	if results.Errors > 0 {
		w.logger.LogWarn(ctx, "cache warmup completed with errors",
			"failed", results.Errors, "providers", len(w.providers), "duration", results.TotalTime)
	} else {
		w.logger.LogInfo(ctx, "cache warmup completed",
			"providers", len(w.providers), "duration", results.TotalTime)
	}
	return results
}

func (w *Warmer) warmupParallel(ctx context.Context) []WarmupResult {
	results := make([]WarmupResult, len(w.providers))
	var wg sync.WaitGroup
	for i, provider := range w.providers {
		wg.Add(1)
		go func(i int, p WarmupProvider) {
			defer wg.Done()
			results[i] = w.warmupProvider(ctx, p)
		}(i, provider)
	}
	wg.Wait()
	return results
}

func (w *Warmer) warmupSequential(ctx context.Context) []WarmupResult {
	results := make([]WarmupResult, 0, len(w.providers))
	for _, provider := range w.providers {
		result := w.warmupProvider(ctx, provider)
		results = append(results, result)
		if result.Err != nil && !w.config.ContinueOnError {
			break
		}
	}
	return results
}

func (w *Warmer) warmupProvider(ctx context.Context, provider WarmupProvider) WarmupResult {
	start := time.Now()
	err := provider.Warmup(ctx)
	duration := time.Since(start)

	if err != nil {
		w.logger.LogWarn(ctx, "cache warmup failed", "provider", provider.Name(), "duration", duration, "error", err)
	} else {
		w.logger.LogDebug(ctx, "cache warmed", "provider", provider.Name(), "duration", duration)
	}
	return WarmupResult{Provider: provider.Name(), Duration: duration, Err: err}
}
