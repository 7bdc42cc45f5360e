package dispatch

import (
	"context"
	"time"

	"github.com/dshills/topicstore/internal/vault"
)

// Handler receives samples from the broker.
type Handler interface {
	Handle(ctx context.Context, s vault.Sample) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, s vault.Sample) error

// Handle calls f(ctx, s).
func (f HandlerFunc) Handle(ctx context.Context, s vault.Sample) error {
	return f(ctx, s)
}

// Result represents the outcome of a handler execution.
type Result struct {
	// Success is true if the handler completed without error or panic.
	Success bool

	// Error is the error returned by the handler, if any.
	Error error

	// Panicked is true if the handler panicked.
	Panicked bool

	// PanicValue is the value passed to panic(), if Panicked is true.
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// Duration is how long the handler took to execute.
	Duration time.Duration

	// Skipped is true if the handler was not executed (context cancelled).
	Skipped bool
}

// IsSuccess returns true if the result indicates successful execution.
func (r Result) IsSuccess() bool {
	return r.Success && !r.Panicked && r.Error == nil
}

// PanicHandler is called when an offloaded handler panics.
type PanicHandler func(s vault.Sample, panicValue any, stack []byte)

// ErrorHandler is called when an offloaded handler returns an error.
type ErrorHandler func(s vault.Sample, err error)

func defaultPanicHandler(s vault.Sample, panicValue any, stack []byte) {
	log.Errorw("offloaded handler panicked",
		"topic", s.Topic.String(),
		"panic", panicValue,
		"stack", string(stack),
	)
}

func defaultErrorHandler(s vault.Sample, err error) {
	log.Errorw("offloaded handler failed", "topic", s.Topic.String(), "error", err)
}
