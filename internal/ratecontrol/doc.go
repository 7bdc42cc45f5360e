// Package ratecontrol shapes the cadence at which a function is invoked.
//
// A Controller wraps a single-argument function and delivers the arguments
// passed to Call from its own goroutine, applying two independent bounds:
//
//   - AtMostEvery(d): consecutive deliveries are spaced at least d apart.
//     Arguments that arrive faster are queued (FIFO), never dropped.
//   - AtLeastEvery(d): if no new argument arrives within d of the previous
//     delivery, the last delivered argument is delivered again.
//
// Call never blocks. All controllers belong to a Scheduler, which owns the
// clock and joins every controller goroutine on Stop.
//
//	sched := ratecontrol.NewScheduler()
//	defer sched.Stop(ctx)
//
//	c, err := ratecontrol.Wrap(sched, send,
//	    ratecontrol.AtMostEvery(100*time.Millisecond),
//	    ratecontrol.AtLeastEvery(time.Second),
//	)
//	c.Call(reading)
//
// When the wrapped function returns an error or panics the controller stops
// delivering and records the failure. RestartOnFailure resumes delivery after
// a backoff instead.
package ratecontrol
