// Package cache stores token metadata and other slow-changing chain reads
// in memory (L1) and optionally Redis (L2).
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a key is not found in cache
	ErrNotFound = errors.New("cache: key not found")

	// ErrInvalidValue is returned when a cached value cannot be decoded
	ErrInvalidValue = errors.New("cache: invalid value")
)

// Cache defines the interface for cache operations. Values are opaque bytes;
// GetJSON and SetJSON handle encoding.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// GetJSON reads key and decodes it into a T.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, error) {
	var out T
	raw, err := c.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
	}
	return out, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON[T any](ctx context.Context, c Cache, key string, v T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.Set(ctx, key, raw, ttl)
}
