package async

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned by AwaitWithTimeout when the future is still pending.
var ErrTimeout = errors.New("async: future still pending after timeout")

// Future represents the result of an asynchronous computation.
type Future[U any] struct {
	result U
	err    error
	done   chan struct{}
}

// Await blocks until the computation completes.
func (f *Future[U]) Await() (U, error) {
	<-f.done
	return f.result, f.err
}

// AwaitWithTimeout returns ErrTimeout if the computation does not finish in time.
// The computation itself keeps running.
func (f *Future[U]) AwaitWithTimeout(timeout time.Duration) (U, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-f.done:
		return f.result, f.err
	case <-timer.C:
		var zero U
		return zero, ErrTimeout
	}
}

// IsComplete reports completion without blocking.
func (f *Future[U]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Async runs fn in its own goroutine and returns a Future for its result.
// A context canceled before start completes the Future with ctx.Err().
func Async[T any, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	f := &Future[U]{done: make(chan struct{})}

	go func() {
		defer close(f.done)
		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}
		f.result, f.err = fn(ctx, param)
	}()

	return f
}

// WaitAll waits for every future and returns the results in order along with
// the first error encountered.
func WaitAll[U any](futures ...*Future[U]) ([]U, error) {
	results := make([]U, len(futures))
	var firstErr error
	for i, future := range futures {
		result, err := future.Await()
		results[i] = result
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return results, firstErr
}

// Outcome pairs a result with its error for callers that need every error.
type Outcome[U any] struct {
	Value U
	Err   error
}

// Map applies fn to every item with at most limit calls in flight and returns
// the outcomes in input order. A limit <= 0 means len(items).
// Items not yet started when ctx is canceled get ctx.Err().
func Map[T any, U any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (U, error)) []Outcome[U] {
	outcomes := make([]Outcome[U], len(items))
	if len(items) == 0 {
		return outcomes
	}
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i, item := range items {
		acquired := false
		if ctx.Err() == nil {
			select {
			case sem <- struct{}{}:
				acquired = true
			case <-ctx.Done():
			}
		}
		if !acquired {
			for j := i; j < len(items); j++ {
				outcomes[j].Err = ctx.Err()
			}
			wg.Wait()
			return outcomes
		}

		wg.Add(1)
		go func(i int, item T) {
			defer func() {
				<-sem
				wg.Done()
			}()
			v, err := fn(ctx, item)
			outcomes[i] = Outcome[U]{Value: v, Err: err}
		}(i, item)
	}
	wg.Wait()
	return outcomes
}
