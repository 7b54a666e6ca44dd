package link

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/medlinkio/medlink/pkg/concurrency"
	"github.com/medlinkio/medlink/pkg/core"
	"github.com/medlinkio/medlink/pkg/link/transport"
	"github.com/medlinkio/medlink/pkg/observability"
	"github.com/medlinkio/medlink/pkg/protocol"
	"github.com/medlinkio/medlink/pkg/reactor"
)

// DefaultServerAddr is the conventional device-link listening address.
const DefaultServerAddr = ":18944"

// ServerConfig configures a Server. NewProtocol and Handler are required;
// every accepted session gets its own protocol instance from the factory.
type ServerConfig struct {
	Addr        string
	NewProtocol func() protocol.Protocol
	Handler     Handler

	// OnSession runs on a pool worker when an accepted session is up. Optional.
	OnSession func(*Session)

	// Transport defaults to plain TCP.
	Transport transport.Transport

	// Workers sizes the private pool; ignored when Pool is set.
	Workers int

	// MaxConns bounds concurrent sessions; 0 means unlimited. Connections
	// beyond the bound are rejected at accept.
	MaxConns int

	// Reactor and Pool allow sharing across servers/clients; private
	// instances are created and owned otherwise.
	Reactor *reactor.Reactor
	Pool    *concurrency.Pool

	Logger  core.Logger
	Metrics *observability.Metrics
}

// DefaultServerConfig returns a server configuration for addr.
func DefaultServerConfig(addr string) *ServerConfig {
	if addr == "" {
		addr = DefaultServerAddr
	}
	return &ServerConfig{Addr: addr}
}

// Server accepts device connections and runs an independent session per
// accepted socket, tracked in a bookkeeping set and removed on close/error.
type Server struct {
	addr        string
	newProtocol func() protocol.Protocol
	handler     Handler
	onSession   func(*Session)
	tr          transport.Transport
	maxConns    int
	logger      core.Logger
	metrics     *observability.Metrics

	loop    *reactor.Reactor
	ownLoop bool
	pool    *concurrency.Pool
	ownPool bool

	mu       sync.RWMutex
	listener net.Listener
	sessions map[string]*Session

	started    int32
	stopping   int32
	acceptDone chan struct{}

	// Metrics (atomic for thread-safety)
	totalAccepted int64
	rejected      int64
}

// NewServer creates a Server (fail-fast on a nil handler or protocol
// factory). The private reactor and pool, when used, start immediately.
func NewServer(config *ServerConfig) *Server {
	if config == nil {
		panic("link: server config cannot be nil")
	}
	if config.NewProtocol == nil {
		panic("link: server protocol factory cannot be nil")
	}
	if config.Handler == nil {
		panic("link: server handler cannot be nil")
	}

	addr := config.Addr
	if addr == "" {
		addr = DefaultServerAddr
	}
	logger := config.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	tr := config.Transport
	if tr == nil {
		tr = &transport.TCP{}
	}
	maxConns := config.MaxConns
	if maxConns < 0 {
		maxConns = 0
	}

	s := &Server{
		addr:        addr,
		newProtocol: config.NewProtocol,
		handler:     config.Handler,
		onSession:   config.OnSession,
		tr:          tr,
		maxConns:    maxConns,
		logger:      logger,
		metrics:     config.Metrics,
		sessions:    make(map[string]*Session),
		acceptDone:  make(chan struct{}),
	}

	if config.Reactor != nil {
		s.loop = config.Reactor
	} else {
		s.loop = reactor.New(reactor.Config{Name: "server-loop", Logger: logger})
		s.ownLoop = true
	}
	s.loop.Start()

	if config.Pool != nil {
		s.pool = config.Pool
	} else {
		s.pool = concurrency.NewPool(concurrency.PoolConfig{Workers: config.Workers, Logger: logger})
		s.ownPool = true
		if err := s.pool.Start(); err != nil {
			panic("link: server pool failed to start: " + err.Error())
		}
	}

	return s
}

// Start listens and runs the accept loop. It blocks until Stop or a fatal
// accept error; run it on its own goroutine.
func (s *Server) Start() error {
	ln, err := s.tr.Listen(s.addr)
	if err != nil {
		return &TransportError{Op: "accept", Addr: s.addr, Err: err}
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	atomic.StoreInt32(&s.started, 1)
	defer close(s.acceptDone)

	for {
		conn, err := ln.Accept()
		if err != nil {
			// A closed listener during Stop is a clean shutdown.
			if atomic.LoadInt32(&s.stopping) == 1 {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return &TransportError{Op: "accept", Addr: s.addr, Err: err}
		}

		atomic.AddInt64(&s.totalAccepted, 1)
		if s.maxConns > 0 && s.SessionCount() >= s.maxConns {
			atomic.AddInt64(&s.rejected, 1)
			_ = conn.Close()
			continue
		}
		s.register(conn)
	}
}

// register creates a session for an accepted socket and starts its loops.
// A connection that raced Stop past the accept loop is refused here.
func (s *Server) register(conn net.Conn) {
	if atomic.LoadInt32(&s.stopping) == 1 {
		_ = conn.Close()
		return
	}

	sess := newSession(sessionConfig{
		role:     "server",
		proto:    s.newProtocol(),
		handler:  s.handler,
		logger:   s.logger,
		pool:     s.pool,
		loop:     s.loop,
		metrics:  s.metrics,
		onClosed: s.removeSession,
	})

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()

	sess.attach(conn)

	if s.onSession != nil {
		cb := s.onSession
		job := concurrency.NewJob("server session up", func() { cb(sess) })
		if err := s.pool.Submit(job); err != nil {
			s.logger.Warnf("server: session callback dropped: %v", err)
		}
	}
}

func (s *Server) removeSession(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ID())
	s.mu.Unlock()
}

// ListeningAddr returns the actual listening address (useful when Addr is
// ":0"). Empty when not listening.
func (s *Server) ListeningAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SessionCount returns the number of tracked sessions.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sessions returns a snapshot of the tracked sessions.
func (s *Server) Sessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Stats returns cumulative accept counters.
func (s *Server) Stats() ServerStats {
	return ServerStats{
		Accepted: atomic.LoadInt64(&s.totalAccepted),
		Rejected: atomic.LoadInt64(&s.rejected),
		Active:   s.SessionCount(),
	}
}

// ServerStats provides accept-loop counters.
type ServerStats struct {
	Accepted int64
	Rejected int64
	Active   int
}

// Stop closes the listener, cancels every session's pending I/O, and waits
// for the accept loop. Privately owned reactor/pool shut down last so queued
// handler work drains first.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.stopping, 0, 1) {
		return nil
	}

	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}

	for _, sess := range s.Sessions() {
		_ = sess.Close()
	}

	if atomic.LoadInt32(&s.started) == 1 {
		select {
		case <-s.acceptDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// A connection accepted concurrently with Stop may have registered after
	// the first sweep; the accept loop has joined now, so this one is final.
	for _, sess := range s.Sessions() {
		_ = sess.Close()
	}

	var firstErr error
	if s.ownPool {
		if err := s.pool.Terminate(ctx); err != nil {
			firstErr = err
		}
	}
	if s.ownLoop {
		if err := s.loop.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
