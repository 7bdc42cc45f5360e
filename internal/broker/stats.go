package broker

// Stats is a point-in-time view of broker activity.
type Stats struct {
	// Published counts Put calls that passed topic validation.
	Published uint64

	// Dropped counts publishes vetoed by middleware.
	Dropped uint64

	// TransformErrors counts publishes aborted by a failing transform.
	TransformErrors uint64

	// Stored counts vault writes.
	Stored uint64

	// InlineDelivered and InlineFailed count inline handler outcomes.
	InlineDelivered uint64
	InlineFailed    uint64

	// Offloaded counts samples handed to the worker pool; the remaining
	// fields count their outcomes.
	Offloaded        uint64
	OffloadRejected  uint64
	OffloadSucceeded uint64
	OffloadFailed    uint64
	OffloadPanicked  uint64
	QueueDepth       int

	// OffloadSpilled counts samples published by offloaded handlers that
	// went to the pool's overflow because the queue was full.
	OffloadSpilled uint64

	// RateQueued counts samples queued on rate controllers; RateRejected
	// counts samples refused by stopped or failed controllers. RatePending
	// is the number of samples currently waiting in controllers.
	RateQueued   uint64
	RateRejected uint64
	RatePending  int

	Topics      int
	Middlewares int
	Subscribers int

	// MiddlewarePatterns and SubscriberPatterns count distinct patterns.
	MiddlewarePatterns int
	SubscriberPatterns int

	MiddlewareCacheHits   uint64
	MiddlewareCacheMisses uint64
	SubscriberCacheHits   uint64
	SubscriberCacheMisses uint64
}

// Stats returns current broker statistics.
func (b *Broker) Stats() Stats {
	syncStats := b.syncDispatcher.Stats()
	asyncStats := b.asyncDispatcher.Stats()
	mwHits, mwMisses := b.middleware.cacheStats()
	subHits, subMisses := b.subscribers.cacheStats()

	return Stats{
		Published:             b.published.Load(),
		Dropped:               b.dropped.Load(),
		TransformErrors:       b.transformErrors.Load(),
		Stored:                b.stored.Load(),
		InlineDelivered:       syncStats.Succeeded,
		InlineFailed:          syncStats.Failed,
		Offloaded:             asyncStats.Enqueued,
		OffloadRejected:       b.offloadRejected.Load(),
		OffloadSucceeded:      asyncStats.Succeeded,
		OffloadFailed:         asyncStats.Failed,
		OffloadPanicked:       asyncStats.Panicked,
		QueueDepth:            asyncStats.QueueDepth,
		OffloadSpilled:        asyncStats.Spilled,
		RateQueued:            b.rateQueued.Load(),
		RateRejected:          b.rateRejected.Load(),
		RatePending:           b.ratePending(),
		Topics:                b.vault.Len(),
		Middlewares:           b.middleware.len(),
		Subscribers:           b.subscribers.len(),
		MiddlewarePatterns:    b.middleware.patterns(),
		SubscriberPatterns:    b.subscribers.patterns(),
		MiddlewareCacheHits:   mwHits,
		MiddlewareCacheMisses: mwMisses,
		SubscriberCacheHits:   subHits,
		SubscriberCacheMisses: subMisses,
	}
}

func (b *Broker) ratePending() int {
	seen := make(map[*Registration]struct{})
	n := 0
	b.subscribers.each(func(s subscriber) {
		if s.reg.rate == nil {
			return
		}
		if _, ok := seen[s.reg]; ok {
			return
		}
		seen[s.reg] = struct{}{}
		n += s.reg.rate.Pending()
	})
	return n
}
