package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/topicstore/internal/broker/dispatch"
	"github.com/dshills/topicstore/internal/ratecontrol"
	"github.com/dshills/topicstore/internal/topic"
	"github.com/dshills/topicstore/internal/vault"
)

// Sample is a (topic, value) pair delivered to subscribers.
type Sample = vault.Sample

// Handler receives samples from the broker.
type Handler = dispatch.Handler

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc = dispatch.HandlerFunc

// Broker owns a vault, the middleware and subscriber registries, the
// offloaded worker pool and the rate-control scheduler.
type Broker struct {
	vault       *vault.Vault
	middleware  *registry[middleware]
	subscribers *registry[subscriber]

	syncDispatcher  *dispatch.SyncDispatcher
	asyncDispatcher *dispatch.AsyncDispatcher
	scheduler       *ratecontrol.Scheduler

	lifecycle sync.Mutex
	running   atomic.Bool
	closed    bool

	published       atomic.Uint64
	dropped         atomic.Uint64
	transformErrors atomic.Uint64
	stored          atomic.Uint64
	offloadRejected atomic.Uint64
	rateQueued      atomic.Uint64
	rateRejected    atomic.Uint64
}

// New creates a broker. Call Start before publishing.
func New(opts ...Option) *Broker {
	cfg := defaultBrokerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var schedOpts []ratecontrol.SchedulerOption
	if cfg.clock != nil {
		schedOpts = append(schedOpts, ratecontrol.WithClock(cfg.clock))
	}

	return &Broker{
		vault:          vault.New(vault.WithHistory(cfg.history)),
		middleware:     newRegistry[middleware](cfg.cacheSize),
		subscribers:    newRegistry[subscriber](cfg.cacheSize),
		syncDispatcher: dispatch.NewSyncDispatcher(),
		asyncDispatcher: dispatch.NewAsyncDispatcher(
			dispatch.WithWorkerCount(cfg.workers),
			dispatch.WithQueueSize(cfg.queueSize),
			dispatch.WithAsyncTimeout(cfg.offloadTimeout),
		),
		scheduler: ratecontrol.NewScheduler(schedOpts...),
	}
}

// Start launches the offloaded worker pool.
func (b *Broker) Start() error {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}
	if b.running.Load() {
		return ErrBrokerAlreadyRunning
	}
	if err := b.asyncDispatcher.Start(); err != nil {
		return err
	}
	b.running.Store(true)
	log.Debug("broker started")
	return nil
}

// Stop stops the rate-control scheduler and drains the worker pool, joining
// both within ctx. Pending rate-controlled samples are discarded. Stop on a
// broker that was never started still stops the scheduler, so controllers
// created by Subscribe or Every do not outlive it. A stopped broker cannot
// be restarted.
func (b *Broker) Stop(ctx context.Context) error {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	if b.closed {
		return ErrBrokerNotRunning
	}
	b.closed = true
	wasRunning := b.running.Swap(false)

	errs := []error{b.scheduler.Stop(ctx)}
	if wasRunning {
		errs = append(errs, b.asyncDispatcher.Stop(ctx))
	}
	err := errors.Join(errs...)
	log.Debugw("broker stopped", "started", wasRunning, "error", err)
	return err
}

// IsRunning returns true between Start and Stop.
func (b *Broker) IsRunning() bool {
	return b.running.Load()
}

// Put publishes value under the literal topic name.
//
// The value passes through matching middleware in registration order, is
// stored, then delivered to every matching subscriber record. A transform
// returning ErrDrop ends the publish silently. The first inline handler error
// aborts delivery to the remaining subscribers and is returned as a
// *HandlerError. Inline handlers run without panic recovery.
//
// A sample that cannot be handed to an offloaded or rate-controlled
// subscriber does not stop delivery to the others. Those failures are logged,
// counted and returned joined once every subscriber has been tried.
func (b *Broker) Put(ctx context.Context, name string, value any) error {
	if !b.running.Load() {
		return ErrBrokerNotRunning
	}

	t, err := topic.Canonicalize(name)
	if err != nil {
		return err
	}
	if t.IsPattern() {
		return fmt.Errorf("put %s: %w", t, ErrNotLiteral)
	}
	b.published.Add(1)

	value, dropped, err := b.transform(t, value)
	if err != nil {
		b.transformErrors.Add(1)
		return err
	}
	if dropped {
		b.dropped.Add(1)
		return nil
	}

	if err := b.vault.Put(t, value); err != nil {
		return err
	}
	b.stored.Add(1)

	return b.fanOut(ctx, Sample{Topic: t, Value: value})
}

func (b *Broker) fanOut(ctx context.Context, s Sample) error {
	var failures []error

	for _, sub := range b.subscribers.match(s.Topic) {
		reg := sub.reg

		switch {
		case reg.rate != nil:
			if err := reg.rate.Call(s); err != nil {
				b.rateRejected.Add(1)
				log.Warnw("rate-controlled subscriber no longer accepts samples",
					"subscription", reg.Name(), "topic", s.Topic.String(), "error", err)
				failures = append(failures, fmt.Errorf("rate control for subscription %s: %w", reg.id, err))
				continue
			}
			b.rateQueued.Add(1)

		case reg.mode == DispatchOffloaded:
			if err := b.asyncDispatcher.Enqueue(ctx, s, reg.handler); err != nil {
				b.offloadRejected.Add(1)
				log.Warnw("offloaded delivery not enqueued",
					"subscription", reg.Name(), "topic", s.Topic.String(), "error", err)
				failures = append(failures, fmt.Errorf("enqueue for subscription %s: %w", reg.id, err))
			}

		default:
			if err := b.syncDispatcher.Dispatch(ctx, s, reg.handler); err != nil {
				herr := &HandlerError{
					SubscriptionID: reg.id,
					Pattern:        sub.pattern,
					Topic:          s.Topic,
					Err:            err,
				}
				if len(failures) == 0 {
					return herr
				}
				return errors.Join(append(failures, herr)...)
			}
		}
	}
	return errors.Join(failures...)
}

// Get returns the newest stored sample of every literal topic intersecting
// pattern, ordered by when each topic was first stored.
func (b *Broker) Get(pattern string) ([]Sample, error) {
	p, err := topic.Canonicalize(pattern)
	if err != nil {
		return nil, err
	}
	return b.vault.Get(p), nil
}

// History returns the retained values of a literal topic, oldest first.
func (b *Broker) History(name string) ([]any, error) {
	t, err := topic.Canonicalize(name)
	if err != nil {
		return nil, err
	}
	if t.IsPattern() {
		return nil, fmt.Errorf("history %s: %w", t, ErrNotLiteral)
	}
	return b.vault.History(t), nil
}

// Subscribe registers h under every pattern. Each pattern is an independent
// record, so a topic matching two of them delivers twice. Only samples
// published after Subscribe returns are delivered.
func (b *Broker) Subscribe(patterns []string, h Handler, opts ...SubscriptionOption) (*Registration, error) {
	if h == nil {
		return nil, ErrNilHandler
	}
	if len(patterns) == 0 {
		return nil, ErrNoPatterns
	}

	canonical := make([]topic.Topic, 0, len(patterns))
	for _, p := range patterns {
		t, err := topic.Canonicalize(p)
		if err != nil {
			return nil, err
		}
		canonical = append(canonical, t)
	}

	var cfg subscriptionConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	reg := &Registration{
		id:       uuid.NewString(),
		name:     cfg.name,
		patterns: canonical,
		mode:     cfg.mode,
		handler:  h,
	}

	if cfg.rate {
		rateOpts := append([]ratecontrol.Option{
			ratecontrol.AtMostEvery(cfg.atMost),
			ratecontrol.AtLeastEvery(cfg.atLeast),
			ratecontrol.WithName(reg.Name()),
		}, cfg.rateOpts...)
		c, err := ratecontrol.Wrap(b.scheduler, reg.deliverRateControlled, rateOpts...)
		if err != nil {
			return nil, err
		}
		reg.rate = c
	}

	for _, p := range canonical {
		b.subscribers.add(p, subscriber{pattern: p, reg: reg})
	}
	log.Debugw("subscribed", "subscription", reg.Name(), "patterns", len(canonical), "mode", reg.mode.String(), "rate", cfg.rate)
	return reg, nil
}

// SubscribeFunc is a convenience wrapper around Subscribe.
func (b *Broker) SubscribeFunc(patterns []string, fn func(ctx context.Context, s Sample) error, opts ...SubscriptionOption) (*Registration, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return b.Subscribe(patterns, HandlerFunc(fn), opts...)
}

// Every calls fn on the broker's scheduler once per interval until Stop.
func (b *Broker) Every(interval time.Duration, fn func() error, opts ...ratecontrol.EveryOption) (*ratecontrol.Periodic, error) {
	return ratecontrol.Every(b.scheduler, interval, fn, opts...)
}
