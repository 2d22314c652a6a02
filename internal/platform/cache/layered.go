package cache

import (
	"context"
	"errors"
	"time"

	"github.com/agatticelli/clmm-kit/internal/platform/observability"
)

// DefaultL1TTL caps how long the memory layer keeps an entry
const DefaultL1TTL = time.Minute

// LayeredCache implements a two-tier cache (L1: memory, L2: Redis).
// Either layer may be nil.
type LayeredCache struct {
	l1      Cache
	l2      Cache
	l1TTL   time.Duration
	metrics *observability.Metrics
}

// NewLayeredCache creates a new layered cache
func NewLayeredCache(l1, l2 Cache, metrics *observability.Metrics) *LayeredCache {
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &LayeredCache{l1: l1, l2: l2, l1TTL: DefaultL1TTL, metrics: metrics}
}

// SetL1TTL changes the memory layer cap; non-positive values are ignored.
func (lc *LayeredCache) SetL1TTL(ttl time.Duration) {
	if ttl > 0 {
		lc.l1TTL = ttl
	}
}

// Get retrieves a value from cache (L1 → L2 → miss). An L2 hit backfills L1.
func (lc *LayeredCache) Get(ctx context.Context, key string) ([]byte, error) {
	if lc.l1 != nil {
		val, err := lc.l1.Get(ctx, key)
		lc.metrics.RecordCacheRequest(ctx, "l1", err == nil)
		if err == nil {
			return val, nil
		}
	}

	if lc.l2 != nil {
		val, err := lc.l2.Get(ctx, key)
		lc.metrics.RecordCacheRequest(ctx, "l2", err == nil)
		if err == nil {
			if lc.l1 != nil {
				_ = lc.l1.Set(ctx, key, val, lc.l1TTL)
			}
			return val, nil
		}
	}

	return nil, ErrNotFound
}

// Set writes through both layers. It fails only when every present layer fails.
func (lc *LayeredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var l1Err, l2Err error

	if lc.l1 != nil {
		l1TTL := ttl
		if ttl <= 0 || ttl > lc.l1TTL {
			l1TTL = lc.l1TTL
		}
		l1Err = lc.l1.Set(ctx, key, value, l1TTL)
	}
	if lc.l2 != nil {
		l2Err = lc.l2.Set(ctx, key, value, ttl)
	}

	switch {
	case lc.l1 != nil && lc.l2 != nil:
		if l1Err != nil && l2Err != nil {
			return errors.Join(l1Err, l2Err)
		}
		return nil
	case lc.l1 != nil:
		return l1Err
	default:
		return l2Err
	}
}

// Delete removes a key from both cache layers
func (lc *LayeredCache) Delete(ctx context.Context, key string) error {
	var errs []error
	if lc.l1 != nil {
		errs = append(errs, lc.l1.Delete(ctx, key))
	}
	if lc.l2 != nil {
		errs = append(errs, lc.l2.Delete(ctx, key))
	}
	return errors.Join(errs...)
}

// Close closes both cache layers
func (lc *LayeredCache) Close() error {
	var errs []error
	if lc.l1 != nil {
		errs = append(errs, lc.l1.Close())
	}
	if lc.l2 != nil {
		errs = append(errs, lc.l2.Close())
	}
	return errors.Join(errs...)
}
