package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dshills/topicstore/internal/broker"
)

type fixedStats broker.Stats

func (f fixedStats) Stats() broker.Stats { return broker.Stats(f) }

func TestCollector_Values(t *testing.T) {
	c := NewCollector(fixedStats{
		Published:           5,
		Dropped:             2,
		Stored:              3,
		Topics:              3,
		SubscriberCacheHits: 7,
		Subscribers:         4,
		Middlewares:         1,
		SubscriberPatterns:  2,
	})

	if n := testutil.CollectAndCount(c); n != 24 {
		t.Errorf("CollectAndCount = %d, want 24", n)
	}

	want := `
# HELP topicstore_published_total Put calls with a valid topic.
# TYPE topicstore_published_total counter
topicstore_published_total 5
# HELP topicstore_registrations Registry records.
# TYPE topicstore_registrations gauge
topicstore_registrations{registry="middleware"} 1
topicstore_registrations{registry="subscriber"} 4
# HELP topicstore_match_cache_hits_total Match cache hits.
# TYPE topicstore_match_cache_hits_total counter
topicstore_match_cache_hits_total{registry="middleware"} 0
topicstore_match_cache_hits_total{registry="subscriber"} 7
# HELP topicstore_patterns Distinct registered patterns.
# TYPE topicstore_patterns gauge
topicstore_patterns{registry="middleware"} 0
topicstore_patterns{registry="subscriber"} 2
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(want),
		"topicstore_published_total", "topicstore_registrations", "topicstore_match_cache_hits_total", "topicstore_patterns"); err != nil {
		t.Error(err)
	}
}

func TestCollector_Registers(t *testing.T) {
	b := broker.New()
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(NewCollector(b)); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected metric families")
	}
}
