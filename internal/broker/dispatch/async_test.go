package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/topicstore/internal/vault"
)

func TestAsyncDispatcher_StartStop(t *testing.T) {
	d := NewAsyncDispatcher()

	if err := d.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := d.Start(); err != ErrAlreadyRunning {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if err := d.Enqueue(ctx, sample("a", 1), HandlerFunc(func(context.Context, vault.Sample) error { return nil })); err != ErrNotRunning {
		t.Errorf("Enqueue after Stop() = %v, want ErrNotRunning", err)
	}
	if err := d.Stop(ctx); err != ErrNotRunning {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}

func TestAsyncDispatcher_Enqueue_NotRunning(t *testing.T) {
	d := NewAsyncDispatcher()

	err := d.Enqueue(context.Background(), sample("a", 1), HandlerFunc(func(ctx context.Context, s vault.Sample) error {
		return nil
	}))
	if err != ErrNotRunning {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}

func TestAsyncDispatcher_HandlerExecution(t *testing.T) {
	d := NewAsyncDispatcher(WithQueueSize(100), WithWorkerCount(4))
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	defer d.Stop(context.Background())

	const count = 100
	var executed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(count)

	handler := HandlerFunc(func(ctx context.Context, s vault.Sample) error {
		executed.Add(1)
		wg.Done()
		return nil
	})

	for i := 0; i < count; i++ {
		if err := d.Enqueue(context.Background(), sample("n", i), handler); err != nil {
			t.Fatalf("Enqueue() failed: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for handlers, executed: %d", executed.Load())
	}
}

func TestAsyncDispatcher_QueueFullBlocks(t *testing.T) {
	d := NewAsyncDispatcher(WithQueueSize(1), WithWorkerCount(1))
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}

	blocker := make(chan struct{})
	started := make(chan struct{}, 1)
	slow := HandlerFunc(func(ctx context.Context, s vault.Sample) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-blocker
		return nil
	})

	if err := d.Enqueue(context.Background(), sample("a", 0), slow); err != nil {
		t.Fatalf("Enqueue() 0 failed: %v", err)
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("worker did not start processing within timeout")
	}
	if err := d.Enqueue(context.Background(), sample("a", 1), slow); err != nil {
		t.Fatalf("Enqueue() 1 failed: %v", err)
	}

	// Queue is full: the next enqueue waits until its context ends.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := d.Enqueue(ctx, sample("a", 2), slow); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}

	// Once space frees up the blocked enqueue succeeds.
	result := make(chan error, 1)
	go func() {
		result <- d.Enqueue(context.Background(), sample("a", 3), slow)
	}()
	close(blocker)
	select {
	case err := <-result:
		if err != nil {
			t.Errorf("Enqueue() after drain failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked enqueue never completed")
	}

	stop, cancelStop := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelStop()
	if err := d.Stop(stop); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if got := d.Stats().Succeeded; got != 3 {
		t.Errorf("expected 3 succeeded, got %d", got)
	}
}

func TestAsyncDispatcher_HandlerErrorLogged(t *testing.T) {
	var mu sync.Mutex
	var reported []error
	d := NewAsyncDispatcher(
		WithWorkerCount(1),
		WithAsyncErrorHandler(func(s vault.Sample, err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		}),
	)
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}

	want := errors.New("handler error")
	if err := d.Enqueue(context.Background(), sample("a", 1), HandlerFunc(func(ctx context.Context, s vault.Sample) error {
		return want
	})); err != nil {
		t.Fatalf("Enqueue() returned %v", err)
	}

	if err := d.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reported) != 1 || !errors.Is(reported[0], want) {
		t.Errorf("expected error handler to see %v, got %v", want, reported)
	}
	if got := d.Stats().Failed; got != 1 {
		t.Errorf("expected 1 failed, got %d", got)
	}
}

func TestAsyncDispatcher_HandlerPanic(t *testing.T) {
	var panicValue atomic.Value
	d := NewAsyncDispatcher(
		WithWorkerCount(1),
		WithAsyncPanicHandler(func(s vault.Sample, v any, stack []byte) {
			panicValue.Store(v)
		}),
	)
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}

	if err := d.Enqueue(context.Background(), sample("a", 1), HandlerFunc(func(ctx context.Context, s vault.Sample) error {
		panic("test panic")
	})); err != nil {
		t.Fatalf("Enqueue() returned %v", err)
	}

	// The worker survives and keeps serving.
	ran := make(chan struct{})
	if err := d.Enqueue(context.Background(), sample("a", 2), HandlerFunc(func(ctx context.Context, s vault.Sample) error {
		close(ran)
		return nil
	})); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive the panic")
	}

	if err := d.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if panicValue.Load() != "test panic" {
		t.Errorf("expected panic value 'test panic', got %v", panicValue.Load())
	}
	if got := d.Stats().Panicked; got != 1 {
		t.Errorf("expected 1 panicked, got %d", got)
	}
}

func TestAsyncDispatcher_DetachedFromCallerContext(t *testing.T) {
	d := NewAsyncDispatcher(WithWorkerCount(1))
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	defer d.Stop(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	gate := make(chan struct{})
	seen := make(chan error, 1)
	if err := d.Enqueue(ctx, sample("a", 1), HandlerFunc(func(ctx context.Context, s vault.Sample) error {
		<-gate
		seen <- ctx.Err()
		return nil
	})); err != nil {
		t.Fatal(err)
	}
	cancel()
	close(gate)

	select {
	case err := <-seen:
		if err != nil {
			t.Errorf("offloaded handler saw cancelled context: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("handler did not run")
	}
}

func TestAsyncDispatcher_Timeout(t *testing.T) {
	d := NewAsyncDispatcher(
		WithWorkerCount(1),
		WithAsyncTimeout(20*time.Millisecond),
		WithAsyncErrorHandler(func(vault.Sample, error) {}),
	)
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}

	if err := d.Enqueue(context.Background(), sample("a", 1), HandlerFunc(func(ctx context.Context, s vault.Sample) error {
		<-ctx.Done()
		return ctx.Err()
	})); err != nil {
		t.Fatal(err)
	}

	if err := d.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := d.Stats().TimedOut; got != 1 {
		t.Errorf("expected 1 timed out, got %d", got)
	}
}

func TestAsyncDispatcher_ShutdownTimeout(t *testing.T) {
	d := NewAsyncDispatcher(WithWorkerCount(1))
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}

	blocker := make(chan struct{})
	defer close(blocker)
	_ = d.Enqueue(context.Background(), sample("a", 1), HandlerFunc(func(ctx context.Context, s vault.Sample) error {
		<-blocker
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := d.Stop(ctx); err != context.DeadlineExceeded {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestAsyncDispatcher_StopReleasesBlockedEnqueue(t *testing.T) {
	d := NewAsyncDispatcher(WithQueueSize(1), WithWorkerCount(1))
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}

	blocker := make(chan struct{})
	defer close(blocker)
	started := make(chan struct{}, 1)
	slow := HandlerFunc(func(ctx context.Context, s vault.Sample) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-blocker
		return nil
	})

	if err := d.Enqueue(context.Background(), sample("a", 0), slow); err != nil {
		t.Fatal(err)
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("worker did not start processing within timeout")
	}
	if err := d.Enqueue(context.Background(), sample("a", 1), slow); err != nil {
		t.Fatal(err)
	}

	enqueued := make(chan error, 1)
	go func() {
		enqueued <- d.Enqueue(context.Background(), sample("a", 2), slow)
	}()
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		stopped <- d.Stop(ctx)
	}()

	select {
	case err := <-stopped:
		if err != context.DeadlineExceeded {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not honour its deadline with a blocked sender")
	}

	select {
	case err := <-enqueued:
		if err != ErrNotRunning {
			t.Errorf("blocked Enqueue = %v, want ErrNotRunning", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked Enqueue was not released by Stop")
	}
}

func TestAsyncDispatcher_WorkerEnqueueOverflows(t *testing.T) {
	d := NewAsyncDispatcher(WithQueueSize(1), WithWorkerCount(1))
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}

	const fanout = 5
	var leaves atomic.Int32
	leaf := HandlerFunc(func(ctx context.Context, s vault.Sample) error {
		leaves.Add(1)
		return nil
	})
	root := HandlerFunc(func(ctx context.Context, s vault.Sample) error {
		// The queue holds one task, so all but the first go to the overflow.
		for i := 0; i < fanout; i++ {
			if err := d.Enqueue(ctx, sample("leaf", i), leaf); err != nil {
				return err
			}
		}
		return nil
	})

	if err := d.Enqueue(context.Background(), sample("root", 0), root); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for leaves.Load() < fanout {
		select {
		case <-deadline:
			t.Fatalf("only %d of %d tasks ran; stats %+v", leaves.Load(), fanout, d.Stats())
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := d.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	stats := d.Stats()
	if stats.Spilled < fanout-1 {
		t.Errorf("Spilled = %d, want at least %d", stats.Spilled, fanout-1)
	}
	if stats.Succeeded != fanout+1 || stats.QueueDepth != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestAsyncDispatcher_ExternalEnqueueDoesNotOverflow(t *testing.T) {
	d := NewAsyncDispatcher(WithQueueSize(1), WithWorkerCount(1))
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	defer d.Stop(context.Background())

	// A context carrying another pool's marker is not this pool's worker.
	other := NewAsyncDispatcher()
	ctx := context.WithValue(context.Background(), workerKey{}, other)
	if d.onWorker(ctx) {
		t.Fatal("context from another dispatcher treated as own worker")
	}
	if d.onWorker(context.Background()) {
		t.Fatal("background context treated as a worker")
	}
}
