// Package vault provides the in-memory literal-topic store.
//
// The Vault keeps, for every literal topic ever written, a short history of
// its most recent values. Reads take a single consistent snapshot across all
// topics matching a pattern.
package vault

import (
	"errors"
	"sync"

	"github.com/dshills/topicstore/internal/topic"
)

// ErrNotLiteral is returned when a write targets a topic containing wildcards.
var ErrNotLiteral = errors.New("vault: topic is not literal")

// DefaultHistory is the number of values retained per topic by default.
const DefaultHistory = 1

// Sample is an immutable (topic, value) pair.
type Sample struct {
	Topic topic.Topic
	Value any
}

// Vault maps literal topics to a bounded history of values.
// It is safe for concurrent use; one mutex serializes writes and snapshots.
type Vault struct {
	mu      sync.Mutex
	history int
	entries map[topic.Topic]*ring
	order   []topic.Topic // first-insertion order
}

// Option configures a Vault.
type Option func(*Vault)

// WithHistory sets how many values are kept per topic.
// Values below 1 are ignored.
func WithHistory(k int) Option {
	return func(v *Vault) {
		if k > 0 {
			v.history = k
		}
	}
}

// New creates an empty Vault.
func New(opts ...Option) *Vault {
	v := &Vault{
		history: DefaultHistory,
		entries: make(map[topic.Topic]*ring),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Put records value as the newest entry for t, evicting the oldest value
// when the topic's history is full.
func (v *Vault) Put(t topic.Topic, value any) error {
	if !t.IsLiteral() {
		return ErrNotLiteral
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	r, ok := v.entries[t]
	if !ok {
		r = newRing(v.history)
		v.entries[t] = r
		v.order = append(v.order, t)
	}
	r.push(value)
	return nil
}

// Get returns the newest value of every stored topic intersecting pattern.
// Each topic appears once, in the order it was first written.
func (v *Vault) Get(pattern topic.Topic) []Sample {
	v.mu.Lock()
	defer v.mu.Unlock()

	var samples []Sample
	for _, t := range v.order {
		if !topic.Intersects(pattern, t) {
			continue
		}
		samples = append(samples, Sample{Topic: t, Value: v.entries[t].newest()})
	}
	return samples
}

// History returns the retained values for the literal topic t,
// oldest first. It returns nil for unknown topics.
func (v *Vault) History(t topic.Topic) []any {
	v.mu.Lock()
	defer v.mu.Unlock()

	r, ok := v.entries[t]
	if !ok {
		return nil
	}
	return r.values()
}

// Len returns the number of stored topics.
func (v *Vault) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.order)
}
