// Package worker provides a bounded fan-out/fan-in pool. The engine uses it
// to evaluate users in parallel and the snapshot builder uses it to fetch
// item metadata.
package worker

import (
	"context"
	"runtime"
	"sync"
)

// Result pairs a processed value with its original index to preserve ordering.
type Result[T any] struct {
	Index int
	Key   string
	Value T
	Err   error
}

// Pool fans out work items to a fixed number of goroutine workers
// and collects results preserving the original input order.
type Pool[T any] struct {
	concurrency int
}

// NewPool creates a worker pool with the given concurrency.
// If concurrency <= 0, defaults to runtime.NumCPU().
func NewPool[T any](concurrency int) *Pool[T] {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Pool[T]{concurrency: concurrency}
}

// Process distributes keys across workers, applies fn to each, and returns
// results in input order. Errors are captured per result rather than
// aborting the batch. Keys not yet started when ctx is cancelled get
// ctx.Err() as their error.
func (p *Pool[T]) Process(ctx context.Context, keys []string, fn func(context.Context, string) (T, error)) []Result[T] {
	if len(keys) == 0 {
		return nil
	}

	workers := p.concurrency
	if workers > len(keys) {
		workers = len(keys)
	}

	jobs := make(chan int, len(keys))
	results := make([]Result[T], len(keys))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				r := Result[T]{Index: i, Key: keys[i]}
				if err := ctx.Err(); err != nil {
					r.Err = err
				} else {
					r.Value, r.Err = fn(ctx, keys[i])
				}
				results[i] = r
			}
		}()
	}

	for i := range keys {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return results
}
