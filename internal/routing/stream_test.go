package routing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agatticelli/clmm-kit/internal/pricing"
	"github.com/holiman/uint256"
)

// fakeQuoter records requests and answers after an optional per-amount gate.
type fakeQuoter struct {
	mu        sync.Mutex
	requests  []QuoteRequest
	cancelled []uint64
	started   chan uint64
	block     map[uint64]bool
	fail      map[uint64]error
}

func newFakeQuoter() *fakeQuoter {
	return &fakeQuoter{
		started: make(chan uint64, 16),
		block:   map[uint64]bool{},
		fail:    map[uint64]error{},
	}
}

func (f *fakeQuoter) Quote(ctx context.Context, req QuoteRequest) (*pricing.Quote, error) {
	amount := req.Amount.Uint64()

	f.mu.Lock()
	f.requests = append(f.requests, req)
	blocked := f.block[amount]
	err := f.fail[amount]
	f.mu.Unlock()

	f.started <- amount

	if blocked {
		<-ctx.Done()
		f.mu.Lock()
		f.cancelled = append(f.cancelled, amount)
		f.mu.Unlock()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &pricing.Quote{AmountIn: req.Amount, AmountOut: new(uint256.Int).Mul(req.Amount, uint256.NewInt(2))}, nil
}

func (f *fakeQuoter) requestedAmounts() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint64, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Amount.Uint64()
	}
	return out
}

func collect(t *testing.T, results <-chan QuoteResult) []QuoteResult {
	t.Helper()
	var out []QuoteResult
	timeout := time.After(5 * time.Second)
	for {
		select {
		case r, ok := <-results:
			if !ok {
				return out
			}
			out = append(out, r)
		case <-timeout:
			t.Fatal("stream did not finish")
			return out
		}
	}
}

func TestQuoteStream_DebouncesBurst(t *testing.T) {
	fq := newFakeQuoter()
	stream := NewQuoteStream(fq, StreamConfig{Debounce: 50 * time.Millisecond})

	inputs := make(chan QuoteRequest)
	results := stream.Run(context.Background(), inputs)

	for _, amount := range []uint64{1, 12, 123} {
		inputs <- usdcToWeth(amount)
	}
	close(inputs)

	got := collect(t, results)
	if len(got) != 1 {
		t.Fatalf("results: got %d, want 1", len(got))
	}
	if got[0].Seq != 3 || got[0].Quote.AmountIn.Uint64() != 123 {
		t.Errorf("got seq %d amount %s, want latest input", got[0].Seq, got[0].Quote.AmountIn.Dec())
	}
	if amounts := fq.requestedAmounts(); len(amounts) != 1 || amounts[0] != 123 {
		t.Errorf("quoter called with %v, want only [123]", amounts)
	}
}

func TestQuoteStream_NewInputCancelsInFlight(t *testing.T) {
	fq := newFakeQuoter()
	fq.block[1] = true
	stream := NewQuoteStream(fq, StreamConfig{Debounce: 10 * time.Millisecond})

	inputs := make(chan QuoteRequest)
	results := stream.Run(context.Background(), inputs)

	inputs <- usdcToWeth(1)
	if started := <-fq.started; started != 1 {
		t.Fatalf("first fetch: got amount %d", started)
	}

	inputs <- usdcToWeth(2)
	close(inputs)

	got := collect(t, results)
	if len(got) != 1 {
		t.Fatalf("results: got %d, want 1", len(got))
	}
	if got[0].Err != nil || got[0].Seq != 2 || got[0].Request.Amount.Uint64() != 2 {
		t.Errorf("got %+v, want result for second input", got[0])
	}

	deadline := time.Now().Add(time.Second)
	for {
		fq.mu.Lock()
		cancelled := append([]uint64(nil), fq.cancelled...)
		fq.mu.Unlock()
		if len(cancelled) == 1 && cancelled[0] == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("cancelled fetches: got %v, want [1]", cancelled)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestQuoteStream_DeliversErrors(t *testing.T) {
	fq := newFakeQuoter()
	fq.fail[7] = ErrNoRoute
	stream := NewQuoteStream(fq, StreamConfig{Debounce: time.Millisecond})

	inputs := make(chan QuoteRequest, 1)
	inputs <- usdcToWeth(7)
	close(inputs)

	got := collect(t, stream.Run(context.Background(), inputs))
	if len(got) != 1 || !errors.Is(got[0].Err, ErrNoRoute) {
		t.Fatalf("got %+v, want one ErrNoRoute result", got)
	}
	if got[0].Quote != nil {
		t.Error("failed result should carry no quote")
	}
}

func TestQuoteStream_SpacedInputsEachAnswered(t *testing.T) {
	fq := newFakeQuoter()
	stream := NewQuoteStream(fq, StreamConfig{Debounce: 5 * time.Millisecond})

	inputs := make(chan QuoteRequest)
	results := stream.Run(context.Background(), inputs)

	for seq, amount := range []uint64{10, 20} {
		inputs <- usdcToWeth(amount)
		r := <-results
		if r.Seq != uint64(seq+1) || r.Quote.AmountIn.Uint64() != amount {
			t.Errorf("result %d: got seq %d amount %s", seq, r.Seq, r.Quote.AmountIn.Dec())
		}
	}
	close(inputs)

	if rest := collect(t, results); len(rest) != 0 {
		t.Errorf("unexpected extra results: %+v", rest)
	}
}

func TestQuoteStream_StopsOnCancel(t *testing.T) {
	fq := newFakeQuoter()
	fq.block[1] = true
	stream := NewQuoteStream(fq, StreamConfig{Debounce: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	inputs := make(chan QuoteRequest)
	results := stream.Run(ctx, inputs)

	inputs <- usdcToWeth(1)
	<-fq.started
	cancel()

	if got := collect(t, results); len(got) != 0 {
		t.Errorf("cancelled stream delivered %d results", len(got))
	}
}

func TestNewQuoteStream_DefaultDebounce(t *testing.T) {
	s := NewQuoteStream(newFakeQuoter(), StreamConfig{})
	if s.debounce != DefaultDebounce {
		t.Errorf("debounce: got %v, want %v", s.debounce, DefaultDebounce)
	}
}
