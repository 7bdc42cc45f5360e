package broker

import (
	"errors"
	"fmt"

	"github.com/dshills/topicstore/internal/topic"
	"github.com/dshills/topicstore/internal/vault"
)

// Sentinel errors for the broker.
var (
	// ErrDrop is returned by a TransformFunc to veto a publish. It is never
	// returned from Put.
	ErrDrop = errors.New("drop")

	// ErrNotLiteral is returned when a pattern is used where a literal topic is required.
	ErrNotLiteral = vault.ErrNotLiteral

	// ErrBrokerNotRunning is returned by Put before Start or after Stop.
	ErrBrokerNotRunning = errors.New("broker is not running")

	// ErrBrokerAlreadyRunning is returned when Start is called on a running broker.
	ErrBrokerAlreadyRunning = errors.New("broker is already running")

	// ErrBrokerClosed is returned when Start is called after Stop.
	ErrBrokerClosed = errors.New("broker is closed")

	// ErrNilHandler is returned when a nil handler or transform is provided.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrNoPatterns is returned when Subscribe is called without patterns.
	ErrNoPatterns = errors.New("at least one pattern is required")
)

// TransformError reports a middleware failure that aborted a publish.
type TransformError struct {
	// Topic is the literal topic being published.
	Topic topic.Topic

	// Pattern is the pattern the failing middleware was registered under.
	Pattern topic.Topic

	// Err is the underlying error.
	Err error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("middleware %s failed on %s: %v", e.Pattern, e.Topic, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransformError) Unwrap() error {
	return e.Err
}

// HandlerError wraps an error from an inline handler.
type HandlerError struct {
	// SubscriptionID is the ID of the registration whose handler failed.
	SubscriptionID string

	// Pattern is the pattern the handler was subscribed under.
	Pattern topic.Topic

	// Topic is the literal topic being published.
	Topic topic.Topic

	// Err is the underlying error.
	Err error
}

func (e *HandlerError) Error() string {
	return "handler error for subscription " + e.SubscriptionID + " on topic " + e.Topic.String() + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}
