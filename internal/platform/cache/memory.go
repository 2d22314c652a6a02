package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryCache is a bounded LRU. Entries expire after their own TTL, and
// never later than maxTTL.
type MemoryCache struct {
	lru    *expirable.LRU[string, memoryEntry]
	maxTTL time.Duration
	now    func() time.Time
}

// NewMemoryCache creates an in-memory cache of at most maxSize entries.
func NewMemoryCache(maxSize int, maxTTL time.Duration) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if maxTTL <= 0 {
		maxTTL = time.Hour
	}
	return &MemoryCache{
		lru:    expirable.NewLRU[string, memoryEntry](maxSize, nil, maxTTL),
		maxTTL: maxTTL,
		now:    time.Now,
	}
}

// Get retrieves a value from cache
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	if !c.now().Before(entry.expires) {
		c.lru.Remove(key)
		return nil, ErrNotFound
	}
	return entry.value, nil
}

// Set stores a copy of value. A ttl of zero or above maxTTL uses maxTTL.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 || ttl > c.maxTTL {
		ttl = c.maxTTL
	}
	c.lru.Add(key, memoryEntry{
		value:   append([]byte(nil), value...),
		expires: c.now().Add(ttl),
	})
	return nil
}

// Delete removes a key from cache
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Close drops every entry
func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}

// Len returns the number of stored entries, expired or not
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}
