package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockCache is a map-backed cache that can be told to fail
type mockCache struct {
	mu       sync.Mutex
	data     map[string][]byte
	ttls     map[string]time.Duration
	getErr   error
	setErr   error
	delErr   error
	getCalls int
	closed   bool
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.data, key)
	return nil
}

func (m *mockCache) Close() error {
	m.closed = true
	return nil
}

func TestLayeredCache_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("l1 hit skips l2", func(t *testing.T) {
		l1, l2 := newMockCache(), newMockCache()
		l1.data["k"] = []byte("one")
		lc := NewLayeredCache(l1, l2, nil)

		got, err := lc.Get(ctx, "k")
		if err != nil || string(got) != "one" {
			t.Fatalf("got %q, %v", got, err)
		}
		if l2.getCalls != 0 {
			t.Errorf("l2 consulted on l1 hit")
		}
	})

	t.Run("l2 hit backfills l1", func(t *testing.T) {
		l1, l2 := newMockCache(), newMockCache()
		l2.data["k"] = []byte("two")
		lc := NewLayeredCache(l1, l2, nil)

		got, err := lc.Get(ctx, "k")
		if err != nil || string(got) != "two" {
			t.Fatalf("got %q, %v", got, err)
		}
		if string(l1.data["k"]) != "two" {
			t.Errorf("l1 not backfilled")
		}
		if l1.ttls["k"] != DefaultL1TTL {
			t.Errorf("backfill ttl: got %v", l1.ttls["k"])
		}
	})

	t.Run("l2 error is a miss", func(t *testing.T) {
		l2 := newMockCache()
		l2.getErr = errors.New("connection refused")
		lc := NewLayeredCache(newMockCache(), l2, nil)

		if _, err := lc.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("memory only", func(t *testing.T) {
		l1 := newMockCache()
		lc := NewLayeredCache(l1, nil, nil)
		if _, err := lc.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestLayeredCache_Set(t *testing.T) {
	ctx := context.Background()

	t.Run("writes both layers with capped l1 ttl", func(t *testing.T) {
		l1, l2 := newMockCache(), newMockCache()
		lc := NewLayeredCache(l1, l2, nil)

		if err := lc.Set(ctx, "k", []byte("v"), time.Hour); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if l1.ttls["k"] != DefaultL1TTL || l2.ttls["k"] != time.Hour {
			t.Errorf("ttls: l1 %v, l2 %v", l1.ttls["k"], l2.ttls["k"])
		}
	})

	t.Run("one failing layer is tolerated", func(t *testing.T) {
		l1, l2 := newMockCache(), newMockCache()
		l2.setErr = errors.New("down")
		lc := NewLayeredCache(l1, l2, nil)

		if err := lc.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("both failing is an error", func(t *testing.T) {
		l1, l2 := newMockCache(), newMockCache()
		l1.setErr = errors.New("full")
		l2.setErr = errors.New("down")
		lc := NewLayeredCache(l1, l2, nil)

		if err := lc.Set(ctx, "k", []byte("v"), time.Minute); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("single layer failure surfaces", func(t *testing.T) {
		l2 := newMockCache()
		l2.setErr = errors.New("down")
		lc := NewLayeredCache(nil, l2, nil)

		if err := lc.Set(ctx, "k", []byte("v"), time.Minute); err == nil {
			t.Error("expected error")
		}
	})
}

func TestLayeredCache_DeleteAndClose(t *testing.T) {
	ctx := context.Background()
	l1, l2 := newMockCache(), newMockCache()
	l1.data["k"], l2.data["k"] = []byte("a"), []byte("b")
	lc := NewLayeredCache(l1, l2, nil)

	if err := lc.Delete(ctx, "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := l1.data["k"]; ok {
		t.Error("l1 entry survived delete")
	}
	if _, ok := l2.data["k"]; ok {
		t.Error("l2 entry survived delete")
	}

	l2.delErr = errors.New("down")
	if err := lc.Delete(ctx, "k"); err == nil {
		t.Error("expected l2 delete error")
	}

	if err := lc.Close(); err != nil || !l1.closed || !l2.closed {
		t.Errorf("close: %v (l1 %v, l2 %v)", err, l1.closed, l2.closed)
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	c := NewMemoryCache(2, time.Hour)
	c.now = func() time.Time { return now }

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	buf := []byte("usdc")
	_ = c.Set(ctx, "a", buf, 10*time.Second)
	buf[0] = 'X'
	if got, _ := c.Get(ctx, "a"); string(got) != "usdc" {
		t.Errorf("stored value aliased caller buffer: %q", got)
	}

	now = now.Add(11 * time.Second)
	if _, err := c.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected per-entry expiry, got %v", err)
	}

	_ = c.Set(ctx, "b", []byte("1"), 0)
	_ = c.Set(ctx, "c", []byte("2"), 0)
	_ = c.Set(ctx, "d", []byte("3"), 0)
	if c.Len() != 2 {
		t.Errorf("capacity: got %d entries", c.Len())
	}
	if _, err := c.Get(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Error("least recently used entry not evicted")
	}

	_ = c.Delete(ctx, "d")
	if _, err := c.Get(ctx, "d"); !errors.Is(err, ErrNotFound) {
		t.Error("deleted entry still present")
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, time.Hour)

	type token struct {
		Symbol   string `json:"symbol"`
		Decimals uint8  `json:"decimals"`
	}

	if err := SetJSON(ctx, c, "t", token{Symbol: "WETH", Decimals: 18}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := GetJSON[token](ctx, c, "t")
	if err != nil || got.Symbol != "WETH" || got.Decimals != 18 {
		t.Errorf("got %+v, %v", got, err)
	}

	_ = c.Set(ctx, "bad", []byte("{"), time.Minute)
	if _, err := GetJSON[token](ctx, c, "bad"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
}
