package broker

import (
	"context"
	"time"

	"github.com/dshills/topicstore/internal/ratecontrol"
	"github.com/dshills/topicstore/internal/topic"
)

// DispatchMode selects where a subscriber's handler runs.
type DispatchMode int

const (
	// DispatchInline runs the handler on the publishing goroutine.
	DispatchInline DispatchMode = iota

	// DispatchOffloaded runs the handler on the broker's worker pool.
	DispatchOffloaded
)

// String returns a human-readable mode name.
func (m DispatchMode) String() string {
	switch m {
	case DispatchInline:
		return "inline"
	case DispatchOffloaded:
		return "offloaded"
	default:
		return "unknown"
	}
}

// SubscriptionOption configures a subscription.
type SubscriptionOption func(*subscriptionConfig)

type subscriptionConfig struct {
	name     string
	mode     DispatchMode
	rate     bool
	atMost   time.Duration
	atLeast  time.Duration
	rateOpts []ratecontrol.Option
}

// WithDispatch sets the dispatch mode. The default is DispatchInline.
func WithDispatch(m DispatchMode) SubscriptionOption {
	return func(c *subscriptionConfig) {
		c.mode = m
	}
}

// WithName labels the subscription in logs.
func WithName(name string) SubscriptionOption {
	return func(c *subscriptionConfig) {
		c.name = name
	}
}

// WithRateControl delivers samples through a rate controller: deliveries are
// spaced at least atMostEvery apart, and the last sample is redelivered when
// nothing new arrives within atLeastEvery. Zero disables either bound. Put
// only queues the sample; the dispatch mode is ignored.
func WithRateControl(atMostEvery, atLeastEvery time.Duration, opts ...ratecontrol.Option) SubscriptionOption {
	return func(c *subscriptionConfig) {
		c.rate = true
		c.atMost = atMostEvery
		c.atLeast = atLeastEvery
		c.rateOpts = opts
	}
}

// Registration is the handle returned by Subscribe. One registration covers
// every pattern passed to Subscribe; each pattern is an independent record.
type Registration struct {
	id       string
	name     string
	patterns []topic.Topic
	mode     DispatchMode
	handler  Handler
	rate     *ratecontrol.Controller[Sample]
}

// ID returns the unique registration identifier.
func (r *Registration) ID() string {
	return r.id
}

// Name returns the registration label, or the ID if none was given.
func (r *Registration) Name() string {
	if r.name == "" {
		return r.id
	}
	return r.name
}

// Patterns returns the canonical patterns of the registration.
func (r *Registration) Patterns() []topic.Topic {
	out := make([]topic.Topic, len(r.patterns))
	copy(out, r.patterns)
	return out
}

// Mode returns the dispatch mode.
func (r *Registration) Mode() DispatchMode {
	return r.mode
}

// RateController returns the controller of a rate-controlled registration,
// or nil.
func (r *Registration) RateController() *ratecontrol.Controller[Sample] {
	return r.rate
}

func (r *Registration) deliverRateControlled(s Sample) error {
	return r.handler.Handle(context.Background(), s)
}

// subscriber is one (pattern, registration) record.
type subscriber struct {
	pattern topic.Topic
	reg     *Registration
}
