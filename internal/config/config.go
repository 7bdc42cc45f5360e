package config

import (
	"errors"
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/dshills/topicstore/internal/broker"
	"github.com/dshills/topicstore/internal/topic"
)

var log = logging.Logger("config")

// Config is the complete topicstore configuration.
type Config struct {
	Vault      VaultConfig        `toml:"vault" yaml:"vault" json:"vault"`
	Dispatch   DispatchConfig     `toml:"dispatch" yaml:"dispatch" json:"dispatch"`
	MatchCache MatchCacheConfig   `toml:"match_cache" yaml:"match_cache" json:"match_cache"`
	Logging    LoggingConfig      `toml:"logging" yaml:"logging" json:"logging"`
	Metrics    MetricsConfig      `toml:"metrics" yaml:"metrics" json:"metrics"`
	Middleware []MiddlewareConfig `toml:"middleware" yaml:"middleware" json:"middleware"`
}

// VaultConfig configures value retention.
type VaultConfig struct {
	// History is the number of values kept per topic.
	History int `toml:"history" yaml:"history" json:"history"`
}

// DispatchConfig configures the offloaded worker pool.
type DispatchConfig struct {
	Workers   int      `toml:"workers" yaml:"workers" json:"workers"`
	QueueSize int      `toml:"queue_size" yaml:"queue_size" json:"queue_size"`
	Timeout   Duration `toml:"timeout" yaml:"timeout" json:"timeout"`
}

// MatchCacheConfig bounds the memoized topic lookups.
type MatchCacheConfig struct {
	Size int `toml:"size" yaml:"size" json:"size"`
}

// LoggingConfig sets the level of every logger.
type LoggingConfig struct {
	Level string `toml:"level" yaml:"level" json:"level"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address of /metrics. Empty disables the endpoint.
	Addr string `toml:"addr" yaml:"addr" json:"addr"`
}

// MiddlewareConfig declares one middleware. Exactly one of Script,
// ScriptFile, Throttle, JSONField and JSONSet must be set. Value is the
// replacement written by JSONSet and is required with it. Timeout bounds each
// call of a Script or ScriptFile transform.
type MiddlewareConfig struct {
	Pattern    string   `toml:"pattern" yaml:"pattern" json:"pattern"`
	Script     string   `toml:"script" yaml:"script" json:"script"`
	ScriptFile string   `toml:"script_file" yaml:"script_file" json:"script_file"`
	Throttle   Duration `toml:"throttle" yaml:"throttle" json:"throttle"`
	JSONField  string   `toml:"json_field" yaml:"json_field" json:"json_field"`
	JSONSet    string   `toml:"json_set" yaml:"json_set" json:"json_set"`
	Value      any      `toml:"value" yaml:"value" json:"value"`
	Timeout    Duration `toml:"timeout" yaml:"timeout" json:"timeout"`
}

// Kind returns which transform the entry declares, or "" if none.
func (m MiddlewareConfig) Kind() string {
	switch {
	case m.Script != "":
		return "script"
	case m.ScriptFile != "":
		return "script_file"
	case m.Throttle > 0:
		return "throttle"
	case m.JSONField != "":
		return "json_field"
	case m.JSONSet != "":
		return "json_set"
	default:
		return ""
	}
}

func (m MiddlewareConfig) kinds() int {
	n := 0
	for _, set := range []bool{m.Script != "", m.ScriptFile != "", m.Throttle != 0, m.JSONField != "", m.JSONSet != ""} {
		if set {
			n++
		}
	}
	return n
}

// Duration is a time.Duration that decodes from strings like "250ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Vault:      VaultConfig{History: 1},
		Dispatch:   DispatchConfig{Workers: 4, QueueSize: 1024},
		MatchCache: MatchCacheConfig{Size: broker.DefaultMatchCacheSize},
		Logging:    LoggingConfig{Level: "info"},
	}
}

// Validate reports every invalid setting, joined.
func (c Config) Validate() error {
	var errs []error
	invalid := func(field string, value any, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
	}

	if c.Vault.History < 1 {
		invalid("vault.history", c.Vault.History, "must be at least 1")
	}
	if c.Dispatch.Workers < 1 {
		invalid("dispatch.workers", c.Dispatch.Workers, "must be at least 1")
	}
	if c.Dispatch.QueueSize < 1 {
		invalid("dispatch.queue_size", c.Dispatch.QueueSize, "must be at least 1")
	}
	if c.Dispatch.Timeout < 0 {
		invalid("dispatch.timeout", c.Dispatch.Timeout.Std(), "must not be negative")
	}
	if c.MatchCache.Size < 1 {
		invalid("match_cache.size", c.MatchCache.Size, "must be at least 1")
	}
	if _, err := logging.LevelFromString(c.Logging.Level); err != nil {
		invalid("logging.level", c.Logging.Level, "unknown level")
	}

	for i, m := range c.Middleware {
		field := fmt.Sprintf("middleware[%d]", i)
		if _, err := topic.Canonicalize(m.Pattern); err != nil {
			invalid(field+".pattern", m.Pattern, "%v", err)
		}
		switch n := m.kinds(); {
		case n == 0:
			invalid(field, m.Pattern, "no transform declared")
		case n > 1:
			invalid(field, m.Pattern, "declares %d transforms, want exactly one", n)
		}
		if m.Throttle < 0 {
			invalid(field+".throttle", m.Throttle.Std(), "must not be negative")
		}
		switch {
		case m.JSONSet != "" && m.Value == nil:
			invalid(field+".value", nil, "required with json_set")
		case m.JSONSet == "" && m.Value != nil:
			invalid(field+".value", m.Value, "only used with json_set")
		}
		switch kind := m.Kind(); {
		case m.Timeout < 0:
			invalid(field+".timeout", m.Timeout.Std(), "must not be negative")
		case m.Timeout > 0 && kind != "script" && kind != "script_file":
			invalid(field+".timeout", m.Timeout.Std(), "only used with script and script_file")
		}
	}

	return errors.Join(errs...)
}

// BrokerOptions translates the configuration into broker options.
func (c Config) BrokerOptions() []broker.Option {
	return []broker.Option{
		broker.WithHistory(c.Vault.History),
		broker.WithWorkers(c.Dispatch.Workers),
		broker.WithQueueSize(c.Dispatch.QueueSize),
		broker.WithOffloadTimeout(c.Dispatch.Timeout.Std()),
		broker.WithMatchCacheSize(c.MatchCache.Size),
	}
}

// ApplyLogging sets the level of every go-log logger.
func (c Config) ApplyLogging() error {
	lvl, err := logging.LevelFromString(c.Logging.Level)
	if err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	logging.SetAllLoggers(lvl)
	return nil
}
