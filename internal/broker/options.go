package broker

import (
	"time"

	"github.com/filecoin-project/go-clock"

	"github.com/dshills/topicstore/internal/broker/dispatch"
	"github.com/dshills/topicstore/internal/vault"
)

// Option configures a Broker.
type Option func(*brokerConfig)

type brokerConfig struct {
	history        int
	workers        int
	queueSize      int
	offloadTimeout time.Duration
	cacheSize      int
	clock          clock.Clock
}

func defaultBrokerConfig() brokerConfig {
	return brokerConfig{
		history:   vault.DefaultHistory,
		workers:   dispatch.DefaultWorkerCount,
		queueSize: dispatch.DefaultQueueSize,
		cacheSize: DefaultMatchCacheSize,
	}
}

// WithHistory keeps the k newest values per topic.
func WithHistory(k int) Option {
	return func(c *brokerConfig) {
		if k > 0 {
			c.history = k
		}
	}
}

// WithWorkers sets the size of the offloaded worker pool.
func WithWorkers(n int) Option {
	return func(c *brokerConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithQueueSize sets the capacity of the offloaded task queue.
func WithQueueSize(n int) Option {
	return func(c *brokerConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithOffloadTimeout bounds each offloaded handler execution.
func WithOffloadTimeout(d time.Duration) Option {
	return func(c *brokerConfig) {
		c.offloadTimeout = d
	}
}

// WithMatchCacheSize bounds the number of memoized literal topics per registry.
func WithMatchCacheSize(n int) Option {
	return func(c *brokerConfig) {
		if n > 0 {
			c.cacheSize = n
		}
	}
}

// WithClock sets the clock used by rate-controlled subscriptions.
func WithClock(clk clock.Clock) Option {
	return func(c *brokerConfig) {
		c.clock = clk
	}
}
