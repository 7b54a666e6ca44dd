package concurrency

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medlinkio/medlink/pkg/core"
)

func newTestPool(workers int) *Pool {
	return NewPool(PoolConfig{Workers: workers, Logger: core.NewNopLogger()})
}

func TestPool_SubmitBeforeStart(t *testing.T) {
	t.Parallel()
	p := newTestPool(2)
	err := p.Submit(NewJob("early", func() {}))
	if err != ErrPoolNotRunning {
		t.Errorf("Submit() before Start() error = %v, want ErrPoolNotRunning", err)
	}
}

func TestPool_StartTwice(t *testing.T) {
	t.Parallel()
	p := newTestPool(1)
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Start(); err != ErrPoolRunning {
		t.Errorf("second Start() error = %v, want ErrPoolRunning", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = p.Terminate(ctx)
}

func TestPool_ExecutesJobs(t *testing.T) {
	t.Parallel()
	p := newTestPool(3)
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var ran int64
	done := NewFlag()
	const jobs = 50
	for i := 0; i < jobs; i++ {
		err := p.Submit(NewJob("count", func() {
			if atomic.AddInt64(&ran, 1) == jobs {
				done.Set()
			}
		}))
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	if !done.WaitTimeout(5 * time.Second) {
		t.Fatalf("ran %d of %d jobs before timeout", atomic.LoadInt64(&ran), jobs)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Terminate(ctx); err != nil {
		t.Errorf("Terminate() error = %v", err)
	}
}

func TestPool_SubmitAfterTerminate(t *testing.T) {
	t.Parallel()
	p := newTestPool(1)
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Terminate(ctx); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}

	// Must fail immediately, never hang.
	errCh := make(chan error, 1)
	go func() { errCh <- p.Submit(NewJob("late", func() {})) }()
	select {
	case err := <-errCh:
		if err != ErrPoolNotRunning {
			t.Errorf("Submit() after Terminate() error = %v, want ErrPoolNotRunning", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Submit() after Terminate() hung")
	}

	if p.IsRunning() {
		t.Error("IsRunning() = true after Terminate()")
	}
}

func TestPool_TerminateRunsQueuedJobs(t *testing.T) {
	t.Parallel()
	p := newTestPool(1)
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// One slow job holds the single worker while the rest queue up.
	var ran int64
	gate := NewFlag()
	_ = p.Submit(NewJob("gate", func() {
		gate.Wait()
		atomic.AddInt64(&ran, 1)
	}))
	const queued = 10
	for i := 0; i < queued; i++ {
		_ = p.Submit(NewJob("queued", func() { atomic.AddInt64(&ran, 1) }))
	}

	gate.Set()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Terminate(ctx); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}

	if got := atomic.LoadInt64(&ran); got != queued+1 {
		t.Errorf("Terminate() completed %d jobs, want %d (queued jobs must finish)", got, queued+1)
	}
}

func TestPool_PanicDoesNotKillWorker(t *testing.T) {
	t.Parallel()
	p := newTestPool(1)
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	_ = p.Submit(NewJob("boom", func() { panic("job failure") }))

	done := NewFlag()
	_ = p.Submit(NewJob("after", func() { done.Set() }))
	if !done.WaitTimeout(5 * time.Second) {
		t.Fatal("worker did not survive a panicking job")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = p.Terminate(ctx)
}

func TestPool_ConcurrencyBoundedByWorkers(t *testing.T) {
	t.Parallel()
	const workers = 4
	p := newTestPool(workers)
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var inFlight, peak int64
	done := NewFlag()
	var finished int64
	const jobs = 40
	for i := 0; i < jobs; i++ {
		_ = p.Submit(NewJob("bounded", func() {
			cur := atomic.AddInt64(&inFlight, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
			if atomic.AddInt64(&finished, 1) == jobs {
				done.Set()
			}
		}))
	}

	if !done.WaitTimeout(10 * time.Second) {
		t.Fatal("jobs did not finish")
	}
	if got := atomic.LoadInt64(&peak); got > workers {
		t.Errorf("observed %d concurrent jobs, want at most %d", got, workers)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = p.Terminate(ctx)
}

// 100 jobs of 10ms on 4 workers should take about 250ms of wall time:
// parallel but bounded. Generous slack for scheduling noise.
func TestPool_Throughput(t *testing.T) {
	p := newTestPool(4)
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	const jobs = 100
	var finished int64
	done := NewFlag()
	start := time.Now()
	for i := 0; i < jobs; i++ {
		_ = p.Submit(NewJob("sleep", func() {
			time.Sleep(10 * time.Millisecond)
			if atomic.AddInt64(&finished, 1) == jobs {
				done.Set()
			}
		}))
	}
	if !done.WaitTimeout(10 * time.Second) {
		t.Fatal("jobs did not finish")
	}
	elapsed := time.Since(start)

	if elapsed < 200*time.Millisecond {
		t.Errorf("elapsed %v, faster than 4 workers could run 100x10ms jobs", elapsed)
	}
	if elapsed > 900*time.Millisecond {
		t.Errorf("elapsed %v, not parallel enough for 4 workers", elapsed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = p.Terminate(ctx)
}
