package ratecontrol

import (
	"errors"
	"fmt"
)

var (
	// ErrControllerStopped is returned by Call once the controller has failed
	// or its scheduler has stopped.
	ErrControllerStopped = errors.New("ratecontrol: controller stopped")

	// ErrSchedulerStopped is returned when work is added to a stopped scheduler.
	ErrSchedulerStopped = errors.New("ratecontrol: scheduler stopped")

	// ErrInvalidInterval is returned for negative intervals.
	ErrInvalidInterval = errors.New("ratecontrol: invalid interval")

	// ErrNilFunc is returned when Wrap or Every is given a nil function.
	ErrNilFunc = errors.New("ratecontrol: nil function")
)

// PanicError records a panic raised by a wrapped function.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("ratecontrol: panic: %v", e.Value)
}
