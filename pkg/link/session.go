package link

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/medlinkio/medlink/pkg/concurrency"
	"github.com/medlinkio/medlink/pkg/core"
	"github.com/medlinkio/medlink/pkg/observability"
	"github.com/medlinkio/medlink/pkg/protocol"
	"github.com/medlinkio/medlink/pkg/reactor"
)

// Session is one live connection: socket, protocol instance, read loop, and
// a send queue drained by a single writer so concurrent Send callers never
// interleave bytes on the wire. A Session is owned by the Client or Server
// that created it and is destroyed on close or fatal error.
type Session struct {
	id      uuid.UUID
	role    string // "client" or "server"
	proto   protocol.Protocol
	handler Handler
	logger  core.Logger
	pool    *concurrency.Pool
	loop    *reactor.Reactor
	metrics *observability.Metrics

	// onClosed lets the owner drop its bookkeeping entry. Invoked once,
	// on the owner's reactor when possible.
	onClosed func(*Session)

	mu       sync.Mutex
	conn     net.Conn
	state    State
	explicit bool // closed by the caller; late completions are discarded

	sendQ  *concurrency.Queue[outFrame]
	closed *concurrency.Flag
	loopWG sync.WaitGroup

	// In-order handoff to the pool: messages append to pending and a single
	// in-flight drain job delivers them, preserving wire arrival order.
	dispatchMu  sync.Mutex
	pending     []protocol.Message
	dispatching bool
}

type outFrame struct {
	data       []byte
	deviceType string
}

type sessionConfig struct {
	role     string
	proto    protocol.Protocol
	handler  Handler
	logger   core.Logger
	pool     *concurrency.Pool
	loop     *reactor.Reactor
	metrics  *observability.Metrics
	onClosed func(*Session)
}

func newSession(cfg sessionConfig) *Session {
	return &Session{
		id:       uuid.New(),
		role:     cfg.role,
		proto:    cfg.proto,
		handler:  cfg.handler,
		logger:   cfg.logger,
		pool:     cfg.pool,
		loop:     cfg.loop,
		metrics:  cfg.metrics,
		onClosed: cfg.onClosed,
		state:    StateConnecting,
		sendQ:    concurrency.NewQueue[outFrame](),
		closed:   concurrency.NewFlag(),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id.String() }

// Role reports which side created the session: "client" or "server".
func (s *Session) Role() string { return s.role }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RemoteAddr returns the peer address, or nil before the connection is up.
func (s *Session) RemoteAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.RemoteAddr()
}

// LocalAddr returns the local address, or nil before the connection is up.
func (s *Session) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Send encodes msg and queues it for the writer. Safe for concurrent use;
// each caller's frames go out in that caller's Send order. Returns
// ErrNotConnected outside the Connected state and ErrClosed when the send
// queue has shut down underneath a concurrent close.
func (s *Session) Send(msg protocol.Message) error {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	if st != StateConnected {
		return ErrNotConnected
	}

	frame, err := s.proto.Encode(msg)
	if err != nil {
		return err
	}
	if err := s.sendQ.Push(outFrame{data: frame, deviceType: msg.DeviceType()}); err != nil {
		return ErrClosed
	}
	return nil
}

// Close shuts the session down: the socket closes, both loops exit, pending
// completions are discarded rather than delivered, and no error callback
// fires for the teardown itself. Close blocks until the session reaches
// Closed. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosing || s.state == StateClosed {
		s.mu.Unlock()
		s.closed.Wait() // a teardown is already in flight; block until it lands
		return nil
	}
	wasConnected := s.state == StateConnected
	s.state = StateClosing
	s.explicit = true
	conn := s.conn
	s.mu.Unlock()

	s.sendQ.Close()
	if conn != nil {
		_ = conn.Close()
	}

	if wasConnected {
		s.closed.Wait() // loops exit, supervisor marks Closed
		return nil
	}

	// Never attached: no loops to join.
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	s.closed.Set()
	s.notifyClosed()
	return nil
}

// attach binds the dialed/accepted socket and starts the I/O loops.
func (s *Session) attach(conn net.Conn) {
	s.mu.Lock()
	if s.state != StateConnecting {
		// Closed while connecting; discard the completion.
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.state = StateConnected
	s.mu.Unlock()

	s.metrics.ConnOpened(s.role)
	s.loopWG.Add(2)
	go s.readLoop(conn)
	go s.writeLoop(conn)
	go s.supervise()
}

// connectFailed terminates a session whose dial never completed.
func (s *Session) connectFailed(err error) {
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	suppress := s.explicit
	s.mu.Unlock()

	s.sendQ.Close()
	s.closed.Set()
	s.metrics.TransErr()
	if !suppress {
		s.reportError(err)
	}
	s.notifyClosed()
}

// supervise waits for both loops and finalizes the state machine.
func (s *Session) supervise() {
	s.loopWG.Wait()
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	s.metrics.ConnClosed(s.role)
	s.closed.Set()
	s.notifyClosed()
}

// fail moves the session to Closing on an I/O error and reports it, unless
// a close is already in progress (then the completion is discarded).
func (s *Session) fail(op string, err error) {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	conn := s.conn
	s.mu.Unlock()

	s.sendQ.Close()
	_ = conn.Close()

	s.metrics.TransErr()
	addr := ""
	if ra := conn.RemoteAddr(); ra != nil {
		addr = ra.String()
	}
	s.reportError(&TransportError{Op: op, Addr: addr, Err: err})
}

func (s *Session) readLoop(conn net.Conn) {
	defer s.loopWG.Done()

	header := make([]byte, s.proto.HeaderSize())
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			s.fail("read", err)
			return
		}

		hdr, perr := s.proto.ParseHeader(header)
		if perr != nil {
			s.metrics.ProtoErr()
			if hdr == nil {
				// The declared body length cannot be trusted; the stream is
				// desynchronized and the connection cannot continue.
				s.fail("read", perr)
				return
			}
			// Recoverable: skip the body and stay in frame.
			s.reportError(perr)
			if _, err := io.CopyN(io.Discard, conn, int64(hdr.BodyLen())); err != nil {
				s.fail("read", err)
				return
			}
			continue
		}

		body := make([]byte, hdr.BodyLen())
		if _, err := io.ReadFull(conn, body); err != nil {
			s.fail("read", err)
			return
		}

		msg, derr := s.proto.Decode(hdr, body)
		if derr != nil {
			// Bad checksum or malformed body: report and keep the
			// connection; the next frame starts cleanly.
			s.metrics.ProtoErr()
			s.reportError(derr)
			continue
		}

		s.metrics.MsgIn(msg.DeviceType(), len(header)+len(body))
		s.dispatch(msg)
	}
}

// writeLoop is the sole goroutine writing to the socket. It drains the send
// queue so interleaving between concurrent senders is impossible.
func (s *Session) writeLoop(conn net.Conn) {
	defer s.loopWG.Done()
	for {
		f, ok := s.sendQ.Pop()
		if !ok {
			return // queue closed
		}
		if _, err := conn.Write(f.data); err != nil {
			s.fail("write", err)
			return
		}
		s.metrics.MsgOut(f.deviceType, len(f.data))
	}
}

// dispatch hands msg to the handler through the pool while preserving wire
// order: at most one drain job per session is in flight.
func (s *Session) dispatch(msg protocol.Message) {
	s.dispatchMu.Lock()
	s.pending = append(s.pending, msg)
	if s.dispatching {
		s.dispatchMu.Unlock()
		return
	}
	s.dispatching = true
	s.dispatchMu.Unlock()

	s.metrics.SetPoolQueueDepth(s.pool.QueueLen())
	job := concurrency.NewJob("session "+s.ID()+" deliver", s.drainPending)
	if err := s.pool.Submit(job); err != nil {
		s.dispatchMu.Lock()
		s.dispatching = false
		s.pending = nil
		s.dispatchMu.Unlock()
		s.logger.Warnf("session %s: dropping messages, pool unavailable: %v", s.ID(), err)
	}
}

func (s *Session) drainPending() {
	for {
		s.dispatchMu.Lock()
		if len(s.pending) == 0 {
			s.dispatching = false
			s.dispatchMu.Unlock()
			return
		}
		msg := s.pending[0]
		s.pending = s.pending[1:]
		s.dispatchMu.Unlock()

		s.mu.Lock()
		discard := s.explicit
		s.mu.Unlock()
		if discard {
			continue
		}
		s.deliver(msg)
	}
}

// deliver invokes the handler with panic containment so one bad callback
// cannot stall the session's dispatch chain.
func (s *Session) deliver(msg protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("session %s: panic in message handler (isolated): %v", s.ID(), r)
		}
	}()
	s.handler.OnMessage(s, msg)
}

// reportError marshals an error to the handler via the pool, never on the
// reactor or I/O goroutines. Suppressed after an explicit close.
func (s *Session) reportError(err error) {
	s.mu.Lock()
	suppress := s.explicit
	s.mu.Unlock()
	if suppress {
		return
	}

	job := concurrency.NewJob(fmt.Sprintf("session %s error", s.ID()), func() {
		s.handler.OnError(s, err)
	})
	if perr := s.pool.Submit(job); perr != nil {
		s.logger.Warnf("session %s: error not delivered, pool unavailable: %v (original: %v)",
			s.ID(), perr, err)
	}
}

// notifyClosed tells the owner to drop its bookkeeping entry, preferring the
// owner's reactor for lifecycle ordering.
func (s *Session) notifyClosed() {
	if s.onClosed == nil {
		return
	}
	cb := s.onClosed
	if err := s.loop.Post(func() { cb(s) }); err != nil {
		cb(s)
	}
}
