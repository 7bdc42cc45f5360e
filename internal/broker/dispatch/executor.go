package dispatch

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/dshills/topicstore/internal/vault"
)

// Executor runs handlers with panic recovery and timing.
type Executor struct {
	panicHandler PanicHandler
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorPanicHandler sets the panic handler for the executor.
func WithExecutorPanicHandler(h PanicHandler) ExecutorOption {
	return func(e *Executor) {
		e.panicHandler = h
	}
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		panicHandler: defaultPanicHandler,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs handler with s and returns the result.
// Panics are recovered and reported to the panic handler.
func (e *Executor) Execute(ctx context.Context, s vault.Sample, handler Handler) (result Result) {
	select {
	case <-ctx.Done():
		return Result{Error: ctx.Err(), Skipped: true}
	default:
	}

	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)

		if r := recover(); r != nil {
			stack := debug.Stack()

			result.Success = false
			result.Panicked = true
			result.PanicValue = r
			result.PanicStack = stack

			if e.panicHandler != nil {
				func() {
					// A panicking panic handler must not take the worker down.
					defer func() { _ = recover() }()
					e.panicHandler(s, r, stack)
				}()
			}
		}
	}()

	if err := handler.Handle(ctx, s); err != nil {
		result.Error = err
		return result
	}
	result.Success = true
	return result
}

// ExecuteWithTimeout runs a handler under a derived context with a deadline.
// The handler must respect context cancellation for this to be effective.
func (e *Executor) ExecuteWithTimeout(ctx context.Context, s vault.Sample, handler Handler, timeout time.Duration) Result {
	if timeout <= 0 {
		return e.Execute(ctx, s, handler)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return e.Execute(ctx, s, handler)
}
