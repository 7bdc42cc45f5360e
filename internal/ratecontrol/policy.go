package ratecontrol

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// FailurePolicy decides what a controller does after its function fails.
type FailurePolicy interface {
	// next returns how long to wait before resuming, or false to stop for good.
	next() (time.Duration, bool)
	// reset is called after every successful delivery.
	reset()
}

type stopPolicy struct{}

func (stopPolicy) next() (time.Duration, bool) { return 0, false }
func (stopPolicy) reset()                      {}

// StopOnFailure makes the first failure permanent. This is the default.
func StopOnFailure() FailurePolicy {
	return stopPolicy{}
}

type restartPolicy struct {
	b backoff.BackOff
}

func (p *restartPolicy) next() (time.Duration, bool) {
	d := p.b.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	return d, true
}

func (p *restartPolicy) reset() {
	p.b.Reset()
}

// RestartOnFailure resumes delivery after waiting b.NextBackOff(). Pending
// arguments are kept. When b returns backoff.Stop the failure is permanent.
func RestartOnFailure(b backoff.BackOff) FailurePolicy {
	if b == nil {
		b = backoff.NewExponentialBackOff()
	}
	return &restartPolicy{b: b}
}
