package main

import (
	"fmt"
	"io"

	"github.com/dshills/topicstore/internal/broker"
	"github.com/dshills/topicstore/internal/config"
	"github.com/dshills/topicstore/internal/transform"
)

type scriptCloser struct{ s *transform.Script }

func (c scriptCloser) Close() error {
	c.s.Close()
	return nil
}

// registerMiddleware builds and registers every configured middleware in
// order. The returned closers release Lua states and must be closed after
// the broker stops.
func registerMiddleware(b *broker.Broker, entries []config.MiddlewareConfig) ([]io.Closer, error) {
	var closers []io.Closer

	for i, m := range entries {
		var fn broker.TransformFunc

		var scriptOpts []transform.ScriptOption
		if m.Timeout > 0 {
			scriptOpts = append(scriptOpts, transform.WithScriptTimeout(m.Timeout.Std()))
		}

		switch m.Kind() {
		case "script":
			s, err := transform.NewScript(m.Script,
				append(scriptOpts, transform.WithScriptName(fmt.Sprintf("middleware[%d]", i)))...)
			if err != nil {
				return closers, err
			}
			closers = append(closers, scriptCloser{s})
			fn = s.Transform()
		case "script_file":
			s, err := transform.NewScriptFile(m.ScriptFile, scriptOpts...)
			if err != nil {
				return closers, err
			}
			closers = append(closers, scriptCloser{s})
			fn = s.Transform()
		case "throttle":
			fn = transform.Throttle(m.Throttle.Std())
		case "json_field":
			fn = transform.JSONField(m.JSONField)
		case "json_set":
			fn = transform.JSONSet(m.JSONSet, m.Value)
		default:
			return closers, fmt.Errorf("middleware[%d]: no transform declared", i)
		}

		if err := b.RegisterMiddleware(m.Pattern, fn); err != nil {
			return closers, fmt.Errorf("middleware[%d]: %w", i, err)
		}
		log.Debugw("middleware configured", "index", i, "pattern", m.Pattern, "kind", m.Kind())
	}
	return closers, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
