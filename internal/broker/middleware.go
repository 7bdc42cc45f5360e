package broker

import (
	"errors"

	"github.com/dshills/topicstore/internal/topic"
)

// TransformFunc rewrites a value on its way into the store. Returning ErrDrop
// discards the publish; any other error aborts it.
type TransformFunc func(value any) (any, error)

type middleware struct {
	pattern topic.Topic
	fn      TransformFunc
}

// RegisterMiddleware appends fn to the pipeline for topics matching pattern.
// Transforms run in registration order.
func (b *Broker) RegisterMiddleware(pattern string, fn TransformFunc) error {
	if fn == nil {
		return ErrNilHandler
	}
	p, err := topic.Canonicalize(pattern)
	if err != nil {
		return err
	}

	seq := b.middleware.add(p, middleware{pattern: p, fn: fn})
	log.Debugw("middleware registered", "pattern", p.String(), "seq", seq)
	return nil
}

// transform threads value through the middleware matching t. It returns
// dropped=true when a transform vetoed the publish.
func (b *Broker) transform(t topic.Topic, value any) (result any, dropped bool, err error) {
	for _, mw := range b.middleware.match(t) {
		value, err = mw.fn(value)
		if errors.Is(err, ErrDrop) {
			return nil, true, nil
		}
		if err != nil {
			return nil, false, &TransformError{Topic: t, Pattern: mw.pattern, Err: err}
		}
	}
	return value, false, nil
}
