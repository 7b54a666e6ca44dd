// Package reactor provides a single-goroutine event loop. Completion
// callbacks posted to a reactor run one at a time in submission order, so
// state owned by the loop needs no further locking. Callbacks must not
// block; blocking work belongs on a worker pool.
package reactor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/medlinkio/medlink/pkg/core"
)

// Reactor is an event loop driven by exactly one goroutine. Several clients
// or servers may share one reactor, or each may own a private instance.
type Reactor struct {
	name    string
	mailbox chan func()
	logger  core.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stopped   int32
	quit      chan struct{}
	done      chan struct{}
}

// Config configures a Reactor.
type Config struct {
	Name        string
	MailboxSize int // pending completion capacity; defaults to 256
	Logger      core.Logger
}

// New creates a Reactor. The loop does not run until Start is called.
func New(config Config) *Reactor {
	if config.Name == "" {
		config.Name = "reactor"
	}
	if config.MailboxSize < 1 {
		config.MailboxSize = 256
	}
	if config.Logger == nil {
		config.Logger = core.NewDefaultLogger()
	}
	return &Reactor{
		name:    config.Name,
		mailbox: make(chan func(), config.MailboxSize),
		logger:  config.Logger,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Name returns the reactor's name.
func (r *Reactor) Name() string { return r.name }

// Start launches the loop goroutine. Subsequent calls are no-ops.
func (r *Reactor) Start() {
	r.startOnce.Do(func() {
		go r.loop()
	})
}

// Post submits a completion callback for execution on the loop goroutine.
// Returns ErrBackpressure when the mailbox is full and ErrStopped after Stop.
func (r *Reactor) Post(fn func()) error {
	if fn == nil {
		return nil
	}
	if atomic.LoadInt32(&r.stopped) == 1 {
		return ErrStopped
	}
	select {
	case r.mailbox <- fn:
		return nil
	default:
		return ErrBackpressure
	}
}

// Stop shuts the loop down. Callbacks already in the mailbox are drained
// before the loop goroutine exits; new posts are refused. Stop waits for the
// drain to finish or ctx to expire.
func (r *Reactor) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() {
		atomic.StoreInt32(&r.stopped, 1)
		close(r.quit)
	})
	r.Start() // a never-started reactor still needs the loop to observe quit
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reactor) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.quit:
			// Posts are already refused; drain what was accepted.
			for {
				select {
				case fn := <-r.mailbox:
					r.safeExecute(fn)
				default:
					return
				}
			}
		case fn := <-r.mailbox:
			r.safeExecute(fn)
		}
	}
}

// safeExecute isolates callback panics so one bad completion cannot bring
// down the loop.
func (r *Reactor) safeExecute(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Errorf("reactor %s: panic in callback (isolated): %v", r.name, rec)
		}
	}()
	fn()
}
