package dispatch

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/dshills/topicstore/internal/vault"
)

// AsyncDispatcher executes handlers on a fixed worker pool.
//
// Enqueue from outside the pool blocks while the queue is full. Enqueue from
// a handler running on the pool (detected through the context the handler
// was given) never blocks: when the queue is full the task goes to an
// unbounded overflow that workers drain before taking new queue items.
type AsyncDispatcher struct {
	queueSize   int
	workerCount int
	timeout     time.Duration

	mu       sync.RWMutex // guards queue, stopping and the running transition
	queue    chan asyncTask
	stopping chan struct{}
	running  atomic.Bool
	wg       sync.WaitGroup // workers
	senders  sync.WaitGroup // Enqueue calls past the running check

	overflowMu sync.Mutex
	overflow   *queue.Queue
	spill      chan struct{}

	panicHandler PanicHandler
	errorHandler ErrorHandler

	enqueued    atomic.Uint64
	processed   atomic.Uint64
	succeeded   atomic.Uint64
	failed      atomic.Uint64
	panicked    atomic.Uint64
	timedOut    atomic.Uint64
	spilled     atomic.Uint64
	totalTimeNs atomic.Int64
}

// workerKey marks the context handed to handlers running on a pool.
type workerKey struct{}

type asyncTask struct {
	ctx     context.Context
	sample  vault.Sample
	handler Handler
}

// Defaults for the worker pool.
const (
	DefaultQueueSize   = 1024
	DefaultWorkerCount = 4
)

// NewAsyncDispatcher creates a new asynchronous dispatcher.
func NewAsyncDispatcher(opts ...AsyncOption) *AsyncDispatcher {
	d := &AsyncDispatcher{
		queueSize:    DefaultQueueSize,
		workerCount:  DefaultWorkerCount,
		overflow:     queue.New(),
		spill:        make(chan struct{}, 1),
		panicHandler: defaultPanicHandler,
		errorHandler: defaultErrorHandler,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AsyncOption configures an AsyncDispatcher.
type AsyncOption func(*AsyncDispatcher)

// WithQueueSize sets the task queue size.
func WithQueueSize(size int) AsyncOption {
	return func(d *AsyncDispatcher) {
		if size > 0 {
			d.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) AsyncOption {
	return func(d *AsyncDispatcher) {
		if count > 0 {
			d.workerCount = count
		}
	}
}

// WithAsyncTimeout bounds each handler execution. Zero means no bound.
func WithAsyncTimeout(timeout time.Duration) AsyncOption {
	return func(d *AsyncDispatcher) {
		d.timeout = timeout
	}
}

// WithAsyncPanicHandler replaces the default panic logger.
func WithAsyncPanicHandler(h PanicHandler) AsyncOption {
	return func(d *AsyncDispatcher) {
		d.panicHandler = h
	}
}

// WithAsyncErrorHandler replaces the default error logger.
func WithAsyncErrorHandler(h ErrorHandler) AsyncOption {
	return func(d *AsyncDispatcher) {
		d.errorHandler = h
	}
}

// Start starts the worker pool.
func (d *AsyncDispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return ErrAlreadyRunning
	}

	d.queue = make(chan asyncTask, d.queueSize)
	d.stopping = make(chan struct{})
	d.running.Store(true)

	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(d.queue)
	}

	log.Debugw("worker pool started", "workers", d.workerCount, "queue", d.queueSize)
	return nil
}

// Stop stops the worker pool. Enqueue calls waiting for queue space fail
// with ErrNotRunning, then queued and overflowed tasks are drained before
// the workers exit. It returns ctx.Err() if ctx ends before the drain
// completes; the drain continues in the background.
func (d *AsyncDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running.Load() {
		d.mu.Unlock()
		return ErrNotRunning
	}
	d.running.Store(false)
	close(d.stopping)
	tasks := d.queue
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		// No sender can pass the running check any more, so once the
		// in-flight ones leave nothing sends on tasks.
		d.senders.Wait()
		close(tasks)
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug("worker pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue schedules handler to run with s on a worker. The task runs with
// a context detached from ctx's cancellation; ctx only bounds how long
// Enqueue waits for queue space. Callers on the pool's own workers never
// wait.
func (d *AsyncDispatcher) Enqueue(ctx context.Context, s vault.Sample, handler Handler) error {
	d.mu.RLock()
	if !d.running.Load() {
		d.mu.RUnlock()
		return ErrNotRunning
	}
	tasks, stopping := d.queue, d.stopping
	d.senders.Add(1)
	d.mu.RUnlock()
	defer d.senders.Done()

	task := asyncTask{
		ctx:     context.WithoutCancel(ctx),
		sample:  s,
		handler: handler,
	}

	if d.onWorker(ctx) {
		select {
		case tasks <- task:
		default:
			d.pushOverflow(task)
		}
		d.enqueued.Add(1)
		return nil
	}

	select {
	case tasks <- task:
		d.enqueued.Add(1)
		return nil
	case <-stopping:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onWorker reports whether ctx belongs to a handler running on d.
func (d *AsyncDispatcher) onWorker(ctx context.Context) bool {
	w, _ := ctx.Value(workerKey{}).(*AsyncDispatcher)
	return w == d
}

func (d *AsyncDispatcher) pushOverflow(task asyncTask) {
	d.overflowMu.Lock()
	d.overflow.Add(task)
	d.overflowMu.Unlock()
	d.spilled.Add(1)

	select {
	case d.spill <- struct{}{}:
	default:
	}
}

func (d *AsyncDispatcher) popOverflow() (asyncTask, bool) {
	d.overflowMu.Lock()
	defer d.overflowMu.Unlock()

	if d.overflow.Length() == 0 {
		return asyncTask{}, false
	}
	task, _ := d.overflow.Remove().(asyncTask)
	return task, true
}

func (d *AsyncDispatcher) overflowLen() int {
	d.overflowMu.Lock()
	defer d.overflowMu.Unlock()
	return d.overflow.Length()
}

func (d *AsyncDispatcher) worker(tasks <-chan asyncTask) {
	defer d.wg.Done()

	executor := NewExecutor(WithExecutorPanicHandler(d.panicHandler))

	for {
		// Overflow first: it only holds tasks published by handlers, which
		// are older than anything they could be waiting behind.
		if task, ok := d.popOverflow(); ok {
			d.executeTask(executor, task)
			continue
		}

		select {
		case task, ok := <-tasks:
			if !ok {
				for {
					task, ok := d.popOverflow()
					if !ok {
						return
					}
					d.executeTask(executor, task)
				}
			}
			d.executeTask(executor, task)
		case <-d.spill:
		}
	}
}

func (d *AsyncDispatcher) executeTask(executor *Executor, task asyncTask) {
	d.processed.Add(1)
	start := time.Now()

	var executorHandled bool

	// Fallback for panics that escape the executor.
	defer func() {
		if r := recover(); r != nil {
			if !executorHandled {
				d.panicked.Add(1)
			}
			if d.panicHandler != nil {
				stack := debug.Stack()
				func() {
					defer func() { _ = recover() }()
					d.panicHandler(task.sample, r, stack)
				}()
			}
		}
		d.totalTimeNs.Add(time.Since(start).Nanoseconds())
	}()

	ctx := context.WithValue(task.ctx, workerKey{}, d)
	result := executor.ExecuteWithTimeout(ctx, task.sample, task.handler, d.timeout)
	executorHandled = true

	switch {
	case result.Panicked:
		d.panicked.Add(1)
	case result.Error != nil:
		if errors.Is(result.Error, context.DeadlineExceeded) {
			d.timedOut.Add(1)
		}
		d.failed.Add(1)
		if d.errorHandler != nil {
			d.errorHandler(task.sample, result.Error)
		}
	case result.IsSuccess():
		d.succeeded.Add(1)
	}
}

// QueueDepth returns the number of tasks waiting in the queue and the
// overflow.
func (d *AsyncDispatcher) QueueDepth() int {
	d.mu.RLock()
	tasks := d.queue
	d.mu.RUnlock()
	return len(tasks) + d.overflowLen()
}

// Stats returns dispatcher statistics.
func (d *AsyncDispatcher) Stats() AsyncDispatcherStats {
	processed := d.processed.Load()
	totalNs := d.totalTimeNs.Load()

	var avgNs int64
	if processed > 0 {
		avgNs = totalNs / int64(processed)
	}

	return AsyncDispatcherStats{
		Enqueued:      d.enqueued.Load(),
		Processed:     processed,
		Succeeded:     d.succeeded.Load(),
		Failed:        d.failed.Load(),
		Panicked:      d.panicked.Load(),
		TimedOut:      d.timedOut.Load(),
		Spilled:       d.spilled.Load(),
		QueueDepth:    d.QueueDepth(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// AsyncDispatcherStats contains statistics for an async dispatcher.
type AsyncDispatcherStats struct {
	// Enqueued is the total number of tasks added to the queue.
	Enqueued uint64

	// Processed is the number of tasks that have been processed.
	Processed uint64

	// Succeeded is the number of successful handler executions.
	Succeeded uint64

	// Failed is the number of handlers that returned errors.
	Failed uint64

	// Panicked is the number of handlers that panicked.
	Panicked uint64

	// TimedOut is the number of handlers that exceeded the execution timeout.
	TimedOut uint64

	// Spilled is the number of tasks published from a worker that went to
	// the overflow because the queue was full.
	Spilled uint64

	// QueueDepth is the current number of tasks waiting in the queue and
	// the overflow.
	QueueDepth int

	// TotalDuration is the cumulative time spent processing tasks.
	TotalDuration time.Duration

	// AvgDuration is the average task processing time.
	AvgDuration time.Duration
}
