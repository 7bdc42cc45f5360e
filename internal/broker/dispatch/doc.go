// Package dispatch delivers samples to subscriber handlers.
//
// Two dispatchers are provided:
//
//   - SyncDispatcher: runs the handler on the publishing goroutine. Errors are
//     returned to the publisher and panics are not recovered, so a failing
//     inline handler (including runaway recursion through re-publishing) is
//     loud by construction.
//
//   - AsyncDispatcher: hands the invocation to a fixed worker pool. Errors and
//     panics are recovered at the worker, logged, counted, and never reach the
//     publisher.
//
// # Usage
//
//	pool := dispatch.NewAsyncDispatcher(
//	    dispatch.WithWorkerCount(4),
//	    dispatch.WithQueueSize(1024),
//	)
//	if err := pool.Start(); err != nil {
//	    return err
//	}
//	defer pool.Stop(ctx)
//
//	err := pool.Enqueue(ctx, sample, handler)
//
// # Result Handling
//
// The Executor used by the pool captures the outcome of a handler in a Result,
// including duration, returned error and panic value with stack.
package dispatch
