package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dshills/topicstore/internal/vault"
)

// SyncDispatcher executes handlers in the caller's goroutine.
// Panics are not recovered: they unwind into the publisher.
type SyncDispatcher struct {
	dispatched  atomic.Uint64
	succeeded   atomic.Uint64
	failed      atomic.Uint64
	skipped     atomic.Uint64
	totalTimeNs atomic.Int64
}

// NewSyncDispatcher creates a new synchronous dispatcher.
func NewSyncDispatcher() *SyncDispatcher {
	return &SyncDispatcher{}
}

// Dispatch runs handler with s and returns its error.
func (d *SyncDispatcher) Dispatch(ctx context.Context, s vault.Sample, handler Handler) error {
	d.dispatched.Add(1)

	if err := ctx.Err(); err != nil {
		d.skipped.Add(1)
		return err
	}

	start := time.Now()
	err := handler.Handle(ctx, s)
	d.totalTimeNs.Add(time.Since(start).Nanoseconds())

	if err != nil {
		d.failed.Add(1)
		return err
	}
	d.succeeded.Add(1)
	return nil
}

// Stats returns dispatch statistics.
// Stats are read without a mutex, so values may be slightly inconsistent
// if stats are being updated concurrently.
func (d *SyncDispatcher) Stats() SyncDispatcherStats {
	dispatched := d.dispatched.Load()
	totalNs := d.totalTimeNs.Load()

	var avgNs int64
	if dispatched > 0 {
		avgNs = totalNs / int64(dispatched)
	}

	return SyncDispatcherStats{
		Dispatched:    dispatched,
		Succeeded:     d.succeeded.Load(),
		Failed:        d.failed.Load(),
		Skipped:       d.skipped.Load(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// SyncDispatcherStats contains statistics for a sync dispatcher.
type SyncDispatcherStats struct {
	// Dispatched is the total number of dispatch calls.
	Dispatched uint64

	// Succeeded is the number of successful handler executions.
	Succeeded uint64

	// Failed is the number of handlers that returned errors.
	Failed uint64

	// Skipped is the number of handlers skipped because the context was done.
	Skipped uint64

	// TotalDuration is the cumulative time spent in handlers.
	TotalDuration time.Duration

	// AvgDuration is the average handler execution time.
	AvgDuration time.Duration
}
