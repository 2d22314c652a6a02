package routing

import (
	"context"
	"time"

	"github.com/agatticelli/clmm-kit/internal/platform/observability"
	"github.com/agatticelli/clmm-kit/internal/pricing"
)

// DefaultDebounce is how long input must be quiet before a quote is fetched
const DefaultDebounce = 500 * time.Millisecond

// Quoter fetches one quote
type Quoter interface {
	Quote(ctx context.Context, req QuoteRequest) (*pricing.Quote, error)
}

// QuoteResult is the outcome for the input generation Seq
type QuoteResult struct {
	Seq     uint64
	Request QuoteRequest
	Quote   *pricing.Quote
	Err     error
}

// StreamConfig holds quote stream configuration
type StreamConfig struct {
	Debounce time.Duration
	Logger   *observability.Logger
	Metrics  *observability.Metrics
}

// QuoteStream turns a stream of edited requests into quotes. Input is
// debounced; a new input cancels any in-flight fetch, and a result is
// delivered only if no newer input arrived while it was being fetched.
type QuoteStream struct {
	quoter   Quoter
	debounce time.Duration
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewQuoteStream creates a new quote stream
func NewQuoteStream(quoter Quoter, cfg StreamConfig) *QuoteStream {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}
	return &QuoteStream{
		quoter:   quoter,
		debounce: cfg.Debounce,
		logger:   cfg.Logger.Component("quote_stream"),
		metrics:  cfg.Metrics,
	}
}

type fetchResult struct {
	seq   uint64
	req   QuoteRequest
	quote *pricing.Quote
	err   error
}

// Run consumes inputs until ctx ends or inputs is closed and the last
// pending request has been answered. The returned channel is closed on exit.
func (s *QuoteStream) Run(ctx context.Context, inputs <-chan QuoteRequest) <-chan QuoteResult {
	out := make(chan QuoteResult, 1)
	go s.loop(ctx, inputs, out)
	return out
}

func (s *QuoteStream) loop(ctx context.Context, inputs <-chan QuoteRequest, out chan<- QuoteResult) {
	defer close(out)

	var (
		seq      uint64
		pending  *QuoteRequest
		inflight uint64 // seq being fetched, 0 when idle
		cancel   context.CancelFunc
		timer    *time.Timer
		timerC   <-chan time.Time
	)
	results := make(chan fetchResult)

	stopFetch := func() {
		if cancel != nil {
			cancel()
			cancel = nil
		}
		inflight = 0
	}
	defer stopFetch()
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case req, ok := <-inputs:
			if !ok {
				inputs = nil
				if pending == nil && inflight == 0 {
					return
				}
				continue
			}

			seq++
			pending = &req
			if inflight != 0 {
				s.logger.LogDebug(ctx, "quote superseded", "seq", inflight, "by", seq)
				s.metrics.RecordQuoteSuperseded(ctx)
				stopFetch()
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(s.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if pending == nil {
				continue
			}

			var fetchCtx context.Context
			fetchCtx, cancel = context.WithCancel(ctx)
			inflight = seq
			go s.fetch(fetchCtx, seq, *pending, results)
			pending = nil

		case r := <-results:
			if ctx.Err() != nil {
				return
			}
			if r.seq != inflight {
				continue
			}
			stopFetch()

			select {
			case out <- QuoteResult{Seq: r.seq, Request: r.req, Quote: r.quote, Err: r.err}:
			case <-ctx.Done():
				return
			}

			if inputs == nil && pending == nil {
				return
			}
		}
	}
}

// fetch runs one quote and hands the result back to the loop. A superseded
// fetch has its ctx cancelled and gives up on the hand-off.
func (s *QuoteStream) fetch(ctx context.Context, seq uint64, req QuoteRequest, results chan<- fetchResult) {
	q, err := s.quoter.Quote(ctx, req)
	select {
	case results <- fetchResult{seq: seq, req: req, quote: q, err: err}:
	case <-ctx.Done():
	}
}
