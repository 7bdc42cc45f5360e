package ratecontrol

import (
	"context"
	"sync"
	"time"

	"github.com/filecoin-project/go-clock"
)

// Scheduler owns the goroutines of a set of controllers.
type Scheduler struct {
	clock clock.Clock

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) SchedulerOption {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewScheduler creates a running scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		clock: clock.New(),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clock returns the scheduler's clock.
func (s *Scheduler) Clock() clock.Clock {
	return s.clock
}

// Done is closed when Stop is called.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) spawn(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
	return nil
}

// Stop signals every controller and waits for their goroutines to exit.
// Pending arguments are discarded. Stop is idempotent; it returns ctx.Err()
// if ctx ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.done)
	}
	s.mu.Unlock()

	joined := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(joined)
	}()

	select {
	case <-joined:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sleep waits d on the scheduler clock. It returns false if the scheduler
// stopped first.
func (s *Scheduler) sleep(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-s.done:
			return false
		default:
			return true
		}
	}
	t := s.clock.Timer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-s.done:
		return false
	}
}
