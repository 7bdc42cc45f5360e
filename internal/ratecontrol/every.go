package ratecontrol

import (
	"fmt"
	"sync"
	"time"
)

// EveryOption configures Every.
type EveryOption func(*everyOptions)

type everyOptions struct {
	waitFirst bool
	name      string
}

// WaitFirst delays the first call by one interval.
func WaitFirst() EveryOption {
	return func(o *everyOptions) { o.waitFirst = true }
}

// EveryName labels the periodic caller in logs.
func EveryName(name string) EveryOption {
	return func(o *everyOptions) { o.name = name }
}

// Periodic is a handle on a function called by Every.
type Periodic struct {
	done chan struct{}

	mu  sync.Mutex
	err error
}

// Done is closed when the periodic caller exits.
func (p *Periodic) Done() <-chan struct{} {
	return p.done
}

// Err returns the failure that ended the periodic caller, if any.
func (p *Periodic) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Every calls fn once per interval until the scheduler stops or fn fails.
// The first call happens immediately unless WaitFirst is given.
func Every(s *Scheduler, interval time.Duration, fn func() error, opts ...EveryOption) (*Periodic, error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInterval, interval)
	}

	var o everyOptions
	for _, opt := range opts {
		opt(&o)
	}

	p := &Periodic{done: make(chan struct{})}

	call := func() bool {
		err := safeCall(fn)
		if err == nil {
			return true
		}
		log.Errorw("periodic call failed", "name", o.name, "error", err)
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		return false
	}

	err := s.spawn(func() {
		defer close(p.done)

		ticker := s.clock.Ticker(interval)
		defer ticker.Stop()

		if !o.waitFirst && !call() {
			return
		}
		for {
			select {
			case <-ticker.C:
				if !call() {
					return
				}
			case <-s.done:
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn()
}
