// Package async provides generic helpers for running computations
// concurrently and collecting their results.
//
// Async starts a function in its own goroutine and returns a Future. Map fans
// a function out over a slice with a concurrency limit and returns one Outcome
// per item in input order:
//
//	outcomes := async.Map(ctx, channels, 4, func(ctx context.Context, ch Channel) (Attempt, error) {
//		return deliver(ctx, ch)
//	})
//
// Functions receive the caller's context and are expected to honor it.
package async
