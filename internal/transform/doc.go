// Package transform provides reusable middleware for the broker pipeline.
//
//   - Throttle drops values that arrive faster than an interval.
//   - Script runs a Lua function over each value.
//   - JSONField and JSONSet extract or rewrite fields of JSON payloads.
//
// Every constructor returns a broker.TransformFunc that can be passed to
// (*broker.Broker).RegisterMiddleware.
package transform
