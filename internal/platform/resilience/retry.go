package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64 // 0.0 to 1.0
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      0.1,
	}
}

// RetryableError lets an error decide whether another attempt can help.
type RetryableError interface {
	error
	Retryable() bool
}

// IsRetryable reports whether err is worth another attempt. Cancellation,
// an open breaker, contract reverts and errors that declare themselves
// permanent are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}

	var re RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "execution reverted") || strings.Contains(msg, "invalid argument") {
		return false
	}
	return true
}

// Retry runs fn until it succeeds, attempts run out, or ctx ends.
func Retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	_, err := RetryIfWithResult(ctx, cfg, func(error) bool { return true }, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryIfWithResult runs fn with exponential backoff while isRetryable
// accepts the error, returning the first successful result.
func RetryIfWithResult[T any](ctx context.Context, cfg RetryConfig, isRetryable func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return zero, fmt.Errorf("non-retryable error: %w", err)
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(backoff(attempt, cfg))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry cancelled during backoff: %w", ctx.Err())
		}
	}

	return zero, fmt.Errorf("max retry attempts reached: %w", lastErr)
}

// backoff is BaseDelay * 2^attempt capped at MaxDelay, randomized by ±Jitter.
func backoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.Jitter > 0 {
		spread := delay * cfg.Jitter
		delay = delay - spread + rand.Float64()*2*spread
	}

	return time.Duration(delay)
}
