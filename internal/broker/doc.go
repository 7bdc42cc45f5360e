// Package broker is an in-process, topic-addressed publish/subscribe state
// store.
//
// Producers write values under literal topics ("sensors/kitchen/temp"),
// consumers subscribe with patterns ("sensors/*/temp", "sensors/**"), and a
// middleware pipeline may rewrite or veto values before they are stored and
// fanned out.
//
// # Publishing
//
// Put runs the value through every middleware whose pattern matches the topic,
// in registration order. A transform returning ErrDrop ends the publish
// without error: nothing is stored and no subscriber fires. Otherwise the
// final value is written to the vault and delivered to every subscriber
// record matching the topic.
//
//	b := broker.New(broker.WithHistory(8))
//	if err := b.Start(); err != nil {
//	    return err
//	}
//	defer b.Stop(ctx)
//
//	b.RegisterMiddleware("sensors/**", func(v any) (any, error) {
//	    if v == nil {
//	        return nil, broker.ErrDrop
//	    }
//	    return v, nil
//	})
//	err := b.Put(ctx, "sensors/kitchen/temp", 21.5)
//
// # Dispatch
//
// Inline subscribers run on the publishing goroutine. Their errors abort the
// publish and their panics are not recovered. An inline handler that
// re-publishes to a topic it is subscribed to recurses until the goroutine
// stack limit terminates the process.
//
// Offloaded subscribers run on a worker pool. Their errors and panics are
// logged and counted and never reach the publisher.
//
// Rate-controlled subscribers (WithRateControl) are fed through a
// ratecontrol.Controller; Put only queues the sample.
//
// # Matching
//
// Middleware and subscriber registries are append-only. Lookups by literal
// topic are memoized in a bounded cache whose entries are tagged with the
// registry generation they were computed at; a registration bumps the
// generation, so a lookup never serves a list that misses an earlier
// registration.
package broker
