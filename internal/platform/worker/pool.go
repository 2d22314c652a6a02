// Package worker provides a bounded worker pool for fan-out reads.
package worker

import (
	"context"
	"sync"
)

// Result is the outcome of one item. Index is the item's position in the
// input slice.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Pool bounds how many jobs run at once. A Pool holds no goroutines between
// calls, so it needs no Close and may be shared.
type Pool struct {
	workers int
}

// NewPool creates a pool running at most workers jobs concurrently
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Workers returns the concurrency bound
func (p *Pool) Workers() int {
	return p.workers
}

// Map runs fn over items on p's workers and returns one result per item in
// input order. Items not started before ctx ends get ctx.Err().
func Map[In, Out any](ctx context.Context, p *Pool, items []In, fn func(context.Context, In) (Out, error)) []Result[Out] {
	results := make([]Result[Out], len(items))
	if len(items) == 0 {
		return results
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	n := min(p.workers, len(items))
	for w := 0; w < n; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				v, err := fn(ctx, items[i])
				results[i] = Result[Out]{Index: i, Value: v, Err: err}
			}
		}()
	}

	next := 0
feed:
	for ; next < len(items); next++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- next:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(items); i++ {
		results[i] = Result[Out]{Index: i, Err: ctx.Err()}
	}
	return results
}
