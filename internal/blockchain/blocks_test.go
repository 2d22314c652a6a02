package blockchain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type scriptedBlocks struct {
	mu     sync.Mutex
	script []uint64
	errAt  map[int]bool
	calls  int
}

func (s *scriptedBlocks) BlockNumber(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if s.errAt[i] {
		return 0, errors.New("503 service unavailable")
	}
	if i >= len(s.script) {
		return s.script[len(s.script)-1], nil
	}
	return s.script[i], nil
}

func TestBlockWatcher_EmitsNewHeadsOnce(t *testing.T) {
	src := &scriptedBlocks{
		script: []uint64{100, 100, 0, 101, 101, 105},
		errAt:  map[int]bool{2: true},
	}
	w := NewBlockWatcher(BlockWatcherConfig{Source: src, PollInterval: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []uint64
	for n := range w.Watch(ctx) {
		got = append(got, n)
		if len(got) == 3 {
			cancel()
		}
	}

	want := []uint64{100, 101, 105}
	if len(got) < len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i, n := range want {
		if got[i] != n {
			t.Errorf("block %d: got %d, want %d", i, got[i], n)
		}
	}
}

func TestBlockWatcher_ClosesOnCancel(t *testing.T) {
	src := &scriptedBlocks{script: []uint64{1}}
	w := NewBlockWatcher(BlockWatcherConfig{Source: src, PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	ch := w.Watch(ctx)
	if n := <-ch; n != 1 {
		t.Errorf("first block: got %d", n)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("unexpected extra block")
		}
	case <-time.After(time.Second):
		t.Error("channel not closed after cancel")
	}
}
