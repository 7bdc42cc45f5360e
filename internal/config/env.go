package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "TOPICSTORE_"

// envSetter applies one environment value to a config.
type envSetter func(c *Config, value string) error

// envMapping maps environment variables to settings.
var envMapping = map[string]envSetter{
	"TOPICSTORE_VAULT_HISTORY":       intSetter(func(c *Config) *int { return &c.Vault.History }),
	"TOPICSTORE_DISPATCH_WORKERS":    intSetter(func(c *Config) *int { return &c.Dispatch.Workers }),
	"TOPICSTORE_DISPATCH_QUEUE_SIZE": intSetter(func(c *Config) *int { return &c.Dispatch.QueueSize }),
	"TOPICSTORE_DISPATCH_TIMEOUT":    durationSetter(func(c *Config) *Duration { return &c.Dispatch.Timeout }),
	"TOPICSTORE_MATCH_CACHE_SIZE":    intSetter(func(c *Config) *int { return &c.MatchCache.Size }),
	"TOPICSTORE_LOG_LEVEL":           stringSetter(func(c *Config) *string { return &c.Logging.Level }),
	"TOPICSTORE_METRICS_ADDR":        stringSetter(func(c *Config) *string { return &c.Metrics.Addr }),
}

func intSetter(field func(*Config) *int) envSetter {
	return func(c *Config, value string) error {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func durationSetter(field func(*Config) *Duration) envSetter {
	return func(c *Config, value string) error {
		return field(c).UnmarshalText([]byte(strings.TrimSpace(value)))
	}
}

func stringSetter(field func(*Config) *string) envSetter {
	return func(c *Config, value string) error {
		*field(c) = value
		return nil
	}
}

// ApplyEnv applies TOPICSTORE_* overrides from environ (in os.Environ form).
// Unknown prefixed variables are logged and ignored. Empty values are
// treated as set.
func ApplyEnv(c *Config, environ []string) error {
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}

		set, known := envMapping[name]
		if !known {
			log.Warnw("ignoring unknown environment override", "name", name)
			continue
		}
		if err := set(c, value); err != nil {
			return &ParseError{Path: name, Format: "env", Err: fmt.Errorf("%q: %w", value, err)}
		}
	}
	return nil
}
