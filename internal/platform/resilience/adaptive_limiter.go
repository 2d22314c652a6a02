package resilience

import (
	"context"
	"sync"
	"time"
)

// AdaptiveLimiter is a RateLimiter that slows down when the upstream
// answers 429 and climbs back after a run of successes.
//
// On each rate-limit hit the rate is multiplied by BackoffFactor, raised to
// the number of consecutive hits (capped at 5). After RecoveryWindow
// consecutive successes, and at most once per RecoveryInterval, the rate is
// multiplied by RecoveryFactor. The rate stays within [MinRate, MaxRate].
type AdaptiveLimiter struct {
	limiter *RateLimiter
	cfg     AdaptiveLimiterConfig
	now     func() time.Time

	mu            sync.Mutex
	rate          float64
	successes     int
	failures      int
	lastAdjust    time.Time
	rateLimitHits int64
}

// AdaptiveLimiterConfig configures an AdaptiveLimiter. Rates are per second.
type AdaptiveLimiterConfig struct {
	BaseRate         float64
	MinRate          float64
	MaxRate          float64
	Burst            int
	BackoffFactor    float64 // (0, 1), default 0.5
	RecoveryFactor   float64 // > 1, default 1.1
	RecoveryWindow   int     // default 10
	RecoveryInterval time.Duration
}

// NewAdaptiveLimiter creates a new adaptive rate limiter
func NewAdaptiveLimiter(cfg AdaptiveLimiterConfig) *AdaptiveLimiter {
	if cfg.BaseRate <= 0 {
		cfg.BaseRate = 1
	}
	if cfg.MinRate <= 0 || cfg.MinRate > cfg.BaseRate {
		cfg.MinRate = cfg.BaseRate / 10
	}
	if cfg.MaxRate < cfg.BaseRate {
		cfg.MaxRate = cfg.BaseRate
	}
	if cfg.BackoffFactor <= 0 || cfg.BackoffFactor >= 1 {
		cfg.BackoffFactor = 0.5
	}
	if cfg.RecoveryFactor <= 1 {
		cfg.RecoveryFactor = 1.1
	}
	if cfg.RecoveryWindow <= 0 {
		cfg.RecoveryWindow = 10
	}
	if cfg.RecoveryInterval <= 0 {
		cfg.RecoveryInterval = time.Second
	}

	return &AdaptiveLimiter{
		limiter:    NewRateLimiter(cfg.BaseRate, cfg.Burst),
		cfg:        cfg,
		now:        time.Now,
		rate:       cfg.BaseRate,
		lastAdjust: time.Now(),
	}
}

// NewAdaptiveLimiterFromRPM starts at rpm and never exceeds it; it may
// back off to a tenth of it.
func NewAdaptiveLimiterFromRPM(rpm, burst int) *AdaptiveLimiter {
	base := float64(rpm) / 60.0
	return NewAdaptiveLimiter(AdaptiveLimiterConfig{
		BaseRate: base,
		MinRate:  base / 10,
		MaxRate:  base,
		Burst:    burst,
	})
}

// Wait blocks until a token is available or ctx ends
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// RecordSuccess counts towards recovering the rate
func (a *AdaptiveLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.failures = 0
	a.successes++
	if a.successes < a.cfg.RecoveryWindow {
		return
	}
	a.successes = 0

	if a.rate >= a.cfg.MaxRate || a.now().Sub(a.lastAdjust) < a.cfg.RecoveryInterval {
		return
	}
	a.setRate(min(a.rate*a.cfg.RecoveryFactor, a.cfg.MaxRate))
}

// RecordRateLimited backs off immediately
func (a *AdaptiveLimiter) RecordRateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.rateLimitHits++
	a.successes = 0
	if a.failures < 5 {
		a.failures++
	}

	next := a.rate
	for i := 0; i < a.failures; i++ {
		next *= a.cfg.BackoffFactor
	}
	a.setRate(max(next, a.cfg.MinRate))
}

// RecordError resets the success streak without slowing down
func (a *AdaptiveLimiter) RecordError() {
	a.mu.Lock()
	a.successes = 0
	a.mu.Unlock()
}

func (a *AdaptiveLimiter) setRate(r float64) {
	if r == a.rate {
		return
	}
	a.rate = r
	a.limiter.SetRate(r)
	a.lastAdjust = a.now()
}

// CurrentRate returns the current rate in requests per second
func (a *AdaptiveLimiter) CurrentRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rate
}

// IsThrottled reports whether the rate is below its base
func (a *AdaptiveLimiter) IsThrottled() bool {
	return a.CurrentRate() < a.cfg.BaseRate
}

// RateLimitHits returns how many 429s were recorded
func (a *AdaptiveLimiter) RateLimitHits() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rateLimitHits
}
