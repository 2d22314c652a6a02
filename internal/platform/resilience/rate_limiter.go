package resilience

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// ErrRateLimitExceeded is returned when a non-blocking acquire finds no token
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RateLimiter is a token bucket shared by all calls to one upstream.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows perSecond requests per second with the given burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 10
	}
	if burst <= 0 {
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// NewRateLimiterFromRPM creates a rate limiter from requests per minute
func NewRateLimiterFromRPM(requestsPerMinute int, burst int) *RateLimiter {
	return NewRateLimiter(float64(requestsPerMinute)/60.0, burst)
}

// Allow takes a token if one is available without blocking
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Acquire is Allow as an error, for callers that fail fast
func (rl *RateLimiter) Acquire() error {
	if !rl.limiter.Allow() {
		return ErrRateLimitExceeded
	}
	return nil
}

// Wait blocks until a token is available or ctx ends
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// Burst returns the bucket size
func (rl *RateLimiter) Burst() int {
	return rl.limiter.Burst()
}

// SetRate changes the refill rate; the bucket size is unchanged
func (rl *RateLimiter) SetRate(perSecond float64) {
	rl.limiter.SetLimit(rate.Limit(perSecond))
}

// Rate returns the refill rate in requests per second
func (rl *RateLimiter) Rate() float64 {
	return float64(rl.limiter.Limit())
}
