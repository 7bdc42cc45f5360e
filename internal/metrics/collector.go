// Package metrics exports broker statistics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/topicstore/internal/broker"
)

const namespace = "topicstore"

// StatsSource is implemented by *broker.Broker.
type StatsSource interface {
	Stats() broker.Stats
}

type metric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(broker.Stats) float64
}

// Collector is a prometheus.Collector reading a StatsSource on every scrape.
type Collector struct {
	source  StatsSource
	metrics []metric
}

// NewCollector creates a collector over source.
func NewCollector(source StatsSource) *Collector {
	counter := func(name, help string, labels prometheus.Labels, fn func(broker.Stats) uint64) metric {
		return metric{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, labels),
			kind:  prometheus.CounterValue,
			value: func(s broker.Stats) float64 { return float64(fn(s)) },
		}
	}
	gauge := func(name, help string, labels prometheus.Labels, fn func(broker.Stats) int) metric {
		return metric{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, labels),
			kind:  prometheus.GaugeValue,
			value: func(s broker.Stats) float64 { return float64(fn(s)) },
		}
	}
	mw := prometheus.Labels{"registry": "middleware"}
	sub := prometheus.Labels{"registry": "subscriber"}

	return &Collector{
		source: source,
		metrics: []metric{
			counter("published_total", "Put calls with a valid topic.", nil, func(s broker.Stats) uint64 { return s.Published }),
			counter("dropped_total", "Publishes vetoed by middleware.", nil, func(s broker.Stats) uint64 { return s.Dropped }),
			counter("transform_errors_total", "Publishes aborted by a failing transform.", nil, func(s broker.Stats) uint64 { return s.TransformErrors }),
			counter("stored_total", "Values written to the vault.", nil, func(s broker.Stats) uint64 { return s.Stored }),
			counter("inline_delivered_total", "Successful inline handler calls.", nil, func(s broker.Stats) uint64 { return s.InlineDelivered }),
			counter("inline_failed_total", "Inline handler calls that returned an error.", nil, func(s broker.Stats) uint64 { return s.InlineFailed }),
			counter("offloaded_total", "Samples handed to the worker pool.", nil, func(s broker.Stats) uint64 { return s.Offloaded }),
			counter("offload_rejected_total", "Samples that could not be enqueued.", nil, func(s broker.Stats) uint64 { return s.OffloadRejected }),
			counter("offload_failed_total", "Offloaded handler calls that returned an error.", nil, func(s broker.Stats) uint64 { return s.OffloadFailed }),
			counter("offload_panicked_total", "Offloaded handler calls that panicked.", nil, func(s broker.Stats) uint64 { return s.OffloadPanicked }),
			counter("offload_spilled_total", "Samples published from offloaded handlers that overflowed the queue.", nil, func(s broker.Stats) uint64 { return s.OffloadSpilled }),
			counter("rate_queued_total", "Samples queued on rate controllers.", nil, func(s broker.Stats) uint64 { return s.RateQueued }),
			counter("rate_rejected_total", "Samples refused by stopped rate controllers.", nil, func(s broker.Stats) uint64 { return s.RateRejected }),
			counter("match_cache_hits_total", "Match cache hits.", mw, func(s broker.Stats) uint64 { return s.MiddlewareCacheHits }),
			counter("match_cache_misses_total", "Match cache misses.", mw, func(s broker.Stats) uint64 { return s.MiddlewareCacheMisses }),
			counter("match_cache_hits_total", "Match cache hits.", sub, func(s broker.Stats) uint64 { return s.SubscriberCacheHits }),
			counter("match_cache_misses_total", "Match cache misses.", sub, func(s broker.Stats) uint64 { return s.SubscriberCacheMisses }),
			gauge("offload_queue_depth", "Tasks waiting in the worker pool queue and overflow.", nil, func(s broker.Stats) int { return s.QueueDepth }),
			gauge("rate_pending", "Samples waiting in rate controllers.", nil, func(s broker.Stats) int { return s.RatePending }),
			gauge("topics", "Literal topics held by the vault.", nil, func(s broker.Stats) int { return s.Topics }),
			gauge("registrations", "Registry records.", mw, func(s broker.Stats) int { return s.Middlewares }),
			gauge("registrations", "Registry records.", sub, func(s broker.Stats) int { return s.Subscribers }),
			gauge("patterns", "Distinct registered patterns.", mw, func(s broker.Stats) int { return s.MiddlewarePatterns }),
			gauge("patterns", "Distinct registered patterns.", sub, func(s broker.Stats) int { return s.SubscriberPatterns }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(s))
	}
}
