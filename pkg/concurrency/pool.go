package concurrency

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/medlinkio/medlink/pkg/core"
)

const (
	poolCreated int32 = iota
	poolRunning
	poolTerminated
)

// Pool runs jobs on a fixed set of worker goroutines fed from an internal
// Queue. The lifecycle is explicit: Start before the first Submit, Terminate
// after the last; Submit outside that window returns ErrPoolNotRunning.
//
// Termination policy: Terminate closes the job queue, already-queued jobs run
// to completion, then workers exit. New submissions are refused.
type Pool struct {
	workers int
	jobs    *Queue[Job]
	logger  core.Logger

	mu    sync.Mutex
	state int32 // atomic; mu serializes transitions
	wg    sync.WaitGroup

	// Metrics (atomic for thread-safety)
	submitted int64
	completed int64
	failed    int64
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	Workers int // number of worker goroutines; defaults to GOMAXPROCS
	Logger  core.Logger
}

// DefaultPoolConfig returns the default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Workers: runtime.GOMAXPROCS(0)}
}

// NewPool creates a Pool. The pool does not run jobs until Start is called.
func NewPool(config PoolConfig) *Pool {
	if config.Workers < 1 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	if config.Logger == nil {
		config.Logger = core.NewDefaultLogger()
	}
	return &Pool{
		workers: config.Workers,
		jobs:    NewQueue[Job](),
		logger:  config.Logger,
	}
}

// Start launches the worker goroutines. A pool starts at most once;
// starting an already-started or terminated pool returns ErrPoolRunning.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if atomic.LoadInt32(&p.state) != poolCreated {
		return ErrPoolRunning
	}
	atomic.StoreInt32(&p.state, poolRunning)

	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.worker(i)
	}
	return nil
}

// Submit enqueues a job for execution. Returns ErrPoolNotRunning before
// Start or after Terminate, ErrNilJob when the job has no Run function.
// Submit never blocks and never silently drops a job.
func (p *Pool) Submit(job Job) error {
	if job.Run == nil {
		return ErrNilJob
	}
	if atomic.LoadInt32(&p.state) != poolRunning {
		return ErrPoolNotRunning
	}
	if err := p.jobs.Push(job); err != nil {
		// Terminate closed the queue between the state check and the push.
		return ErrPoolNotRunning
	}
	atomic.AddInt64(&p.submitted, 1)
	return nil
}

// Terminate closes the job queue, lets queued jobs finish, and joins all
// workers. Returns when the workers have exited or ctx expires. Terminating
// a pool that never started or already terminated is a no-op.
func (p *Pool) Terminate(ctx context.Context) error {
	p.mu.Lock()
	if atomic.LoadInt32(&p.state) != poolRunning {
		p.mu.Unlock()
		return nil
	}
	atomic.StoreInt32(&p.state, poolTerminated)
	p.jobs.Close()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pool terminate: %w", ctx.Err())
	}
}

// Workers returns the fixed worker count.
func (p *Pool) Workers() int { return p.workers }

// IsRunning reports whether the pool accepts submissions.
func (p *Pool) IsRunning() bool {
	return atomic.LoadInt32(&p.state) == poolRunning
}

// QueueLen returns the number of jobs waiting for a worker.
func (p *Pool) QueueLen() int { return p.jobs.Len() }

// Stats returns cumulative job counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Submitted: atomic.LoadInt64(&p.submitted),
		Completed: atomic.LoadInt64(&p.completed),
		Failed:    atomic.LoadInt64(&p.failed),
		Queued:    p.jobs.Len(),
		Workers:   p.workers,
	}
}

// PoolStats provides pool job counters.
type PoolStats struct {
	Submitted int64
	Completed int64
	Failed    int64
	Queued    int
	Workers   int
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		job, ok := p.jobs.Pop()
		if !ok {
			return // queue closed and drained
		}
		p.runJob(id, job)
	}
}

// runJob executes one job with panic containment so a failing job cannot
// kill its worker.
func (p *Pool) runJob(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&p.failed, 1)
			p.logger.Errorf("worker %d: job %q panicked (isolated): %v", id, job.Description, r)
		}
	}()
	job.Run()
	atomic.AddInt64(&p.completed, 1)
}
