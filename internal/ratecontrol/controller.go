package ratecontrol

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/filecoin-project/go-clock"
)

// Option configures a Controller.
type Option func(*options)

type options struct {
	name    string
	atMost  time.Duration
	atLeast time.Duration
	policy  FailurePolicy
}

// AtMostEvery spaces consecutive deliveries at least d apart.
func AtMostEvery(d time.Duration) Option {
	return func(o *options) { o.atMost = d }
}

// AtLeastEvery redelivers the last argument when nothing new arrived within d.
func AtLeastEvery(d time.Duration) Option {
	return func(o *options) { o.atLeast = d }
}

// WithFailurePolicy sets what happens after the wrapped function fails.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(o *options) {
		if p != nil {
			o.policy = p
		}
	}
}

// WithName labels the controller in logs.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// Controller delivers arguments to a function under rate bounds.
type Controller[T any] struct {
	opts  options
	fn    func(T) error
	sched *Scheduler
	clock clock.Clock

	mu      sync.Mutex
	pending *queue.Queue
	state   State
	err     error

	notify chan struct{}
	done   chan struct{}
}

// Wrap starts a controller for fn on s.
func Wrap[T any](s *Scheduler, fn func(T) error, opts ...Option) (*Controller[T], error) {
	if fn == nil {
		return nil, ErrNilFunc
	}

	o := options{policy: StopOnFailure()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.atMost < 0 || o.atLeast < 0 {
		return nil, fmt.Errorf("%w: at most %v, at least %v", ErrInvalidInterval, o.atMost, o.atLeast)
	}
	if o.name == "" {
		o.name = fmt.Sprintf("%T", fn)
	}

	c := &Controller[T]{
		opts:    o,
		fn:      fn,
		sched:   s,
		clock:   s.clock,
		pending: queue.New(),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if err := s.spawn(c.run); err != nil {
		return nil, err
	}
	return c, nil
}

// Call queues v for delivery and returns immediately.
func (c *Controller[T]) Call(v T) error {
	c.mu.Lock()
	if c.state == StateFailed || c.state == StateStopped {
		c.mu.Unlock()
		return ErrControllerStopped
	}
	c.pending.Add(v)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

// Name returns the controller's label.
func (c *Controller[T]) Name() string {
	return c.opts.name
}

// State returns the current lifecycle state.
func (c *Controller[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the most recent failure of the wrapped function, if any.
func (c *Controller[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Pending returns the number of queued arguments.
func (c *Controller[T]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Length()
}

// Done is closed when the delivery goroutine exits.
func (c *Controller[T]) Done() <-chan struct{} {
	return c.done
}

func (c *Controller[T]) pop() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending.Length() == 0 {
		var zero T
		return zero, false
	}
	// comma-ok keeps a nil interface argument from panicking
	v, _ := c.pending.Remove().(T)
	return v, true
}

func (c *Controller[T]) setState(s State, err error) {
	c.mu.Lock()
	c.state = s
	if err != nil {
		c.err = err
	}
	c.mu.Unlock()
}

type waitResult int

const (
	gotItem waitResult = iota
	timedOut
	shutdown
)

// wait blocks for the next argument. The heartbeat timer is armed once per
// wait, so the redelivery deadline does not move on spurious wakeups.
func (c *Controller[T]) wait() (T, waitResult) {
	var zero T

	if v, ok := c.pop(); ok {
		return v, gotItem
	}

	var timeout <-chan time.Time
	if c.opts.atLeast > 0 {
		t := c.clock.Timer(c.opts.atLeast)
		defer t.Stop()
		timeout = t.C
	}

	for {
		select {
		case <-c.notify:
			if v, ok := c.pop(); ok {
				return v, gotItem
			}
		case <-timeout:
			return zero, timedOut
		case <-c.sched.done:
			return zero, shutdown
		}
	}
}

func (c *Controller[T]) run() {
	defer close(c.done)

	var (
		last      T
		delivered bool
		lastEmit  time.Time
	)

	for {
		v, res := c.wait()

		switch res {
		case shutdown:
			c.setState(StateStopped, nil)
			return
		case timedOut:
			if !delivered {
				continue
			}
			v = last
		case gotItem:
			if delivered {
				if elapsed := c.clock.Since(lastEmit); elapsed < c.opts.atMost {
					if !c.sched.sleep(c.opts.atMost - elapsed) {
						c.setState(StateStopped, nil)
						return
					}
				}
			}
		}

		lastEmit = c.clock.Now()
		last = v
		delivered = true

		err := c.invoke(v)
		if err == nil {
			c.opts.policy.reset()
			continue
		}

		log.Errorw("rate-controlled delivery failed", "controller", c.opts.name, "error", err)

		delay, ok := c.opts.policy.next()
		if !ok {
			c.setState(StateFailed, err)
			return
		}

		c.setState(StateRestarting, err)
		log.Infow("restarting rate-controlled delivery", "controller", c.opts.name, "after", delay)
		if !c.sched.sleep(delay) {
			c.setState(StateStopped, nil)
			return
		}
		c.setState(StateRunning, nil)
	}
}

func (c *Controller[T]) invoke(v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return c.fn(v)
}
