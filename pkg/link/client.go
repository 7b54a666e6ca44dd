// Package link composes the reactor, a wire protocol, and the worker pool
// into client and server connection objects. The reactor serializes
// connection lifecycle completions, per-session goroutines pump socket I/O,
// and decoded messages reach the application through pool workers.
package link

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/medlinkio/medlink/pkg/concurrency"
	"github.com/medlinkio/medlink/pkg/core"
	"github.com/medlinkio/medlink/pkg/link/transport"
	"github.com/medlinkio/medlink/pkg/observability"
	"github.com/medlinkio/medlink/pkg/protocol"
	"github.com/medlinkio/medlink/pkg/reactor"
)

// ClientConfig configures a Client. Protocol and Handler are required.
type ClientConfig struct {
	Endpoint string // "host:port"
	Protocol protocol.Protocol
	Handler  Handler

	// OnConnected runs on a pool worker once the session is up. Optional.
	OnConnected func(*Session)

	// Transport defaults to plain TCP.
	Transport transport.Transport

	// Workers sizes the private pool; ignored when Pool is set.
	Workers int

	// Reactor and Pool allow sharing one loop or pool across several
	// clients/servers. When nil, the client owns private instances and
	// stops them on Close. A shared Pool must already be started.
	Reactor *reactor.Reactor
	Pool    *concurrency.Pool

	DialTimeout time.Duration

	Logger  core.Logger
	Metrics *observability.Metrics
}

// DefaultClientConfig returns a client configuration for endpoint.
func DefaultClientConfig(endpoint string) *ClientConfig {
	return &ClientConfig{
		Endpoint:    endpoint,
		DialTimeout: 5 * time.Second,
	}
}

// Client connects to one remote device endpoint at a time.
type Client struct {
	endpoint    string
	proto       protocol.Protocol
	handler     Handler
	onConnected func(*Session)
	tr          transport.Transport
	dialTimeout time.Duration
	logger      core.Logger
	metrics     *observability.Metrics

	loop    *reactor.Reactor
	ownLoop bool
	pool    *concurrency.Pool
	ownPool bool

	mu      sync.Mutex
	session *Session
	closing bool
}

// NewClient creates a Client (fail-fast on a nil protocol or handler).
// The private reactor and pool, when used, start immediately.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		panic("link: client config cannot be nil")
	}
	if config.Protocol == nil {
		panic("link: client protocol cannot be nil")
	}
	if config.Handler == nil {
		panic("link: client handler cannot be nil")
	}

	logger := config.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	tr := config.Transport
	if tr == nil {
		tr = &transport.TCP{}
	}
	dialTimeout := config.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	c := &Client{
		endpoint:    config.Endpoint,
		proto:       config.Protocol,
		handler:     config.Handler,
		onConnected: config.OnConnected,
		tr:          tr,
		dialTimeout: dialTimeout,
		logger:      logger,
		metrics:     config.Metrics,
	}

	if config.Reactor != nil {
		c.loop = config.Reactor
	} else {
		c.loop = reactor.New(reactor.Config{Name: "client-loop", Logger: logger})
		c.ownLoop = true
	}
	c.loop.Start()

	if config.Pool != nil {
		c.pool = config.Pool
	} else {
		c.pool = concurrency.NewPool(concurrency.PoolConfig{Workers: config.Workers, Logger: logger})
		c.ownPool = true
		if err := c.pool.Start(); err != nil {
			panic("link: client pool failed to start: " + err.Error())
		}
	}

	return c
}

// Connect resolves and dials the endpoint asynchronously. It returns
// immediately; success surfaces through OnConnected and failure through the
// error handler as a *TransportError with Op "connect".
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.session != nil && c.session.State() != StateClosed {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}

	s := newSession(sessionConfig{
		role:    "client",
		proto:   c.proto,
		handler: c.handler,
		logger:  c.logger,
		pool:    c.pool,
		loop:    c.loop,
		metrics: c.metrics,
	})
	c.session = s
	c.mu.Unlock()

	go c.dial(s)
	return nil
}

// dial runs off the reactor (dialing blocks) and posts the completion back
// to the loop.
func (c *Client) dial(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), c.dialTimeout)
	defer cancel()

	conn, err := c.tr.Dial(ctx, c.endpoint)
	posted := c.loop.Post(func() { c.dialDone(s, conn, err) })
	if posted != nil {
		// Loop gone (client shut down); discard the completion.
		if conn != nil {
			_ = conn.Close()
		}
		c.logger.Debugf("client: dial completion discarded: %v", posted)
	}
}

// dialDone runs on the reactor.
func (c *Client) dialDone(s *Session, conn net.Conn, err error) {
	if err != nil {
		s.connectFailed(&TransportError{Op: "connect", Addr: c.endpoint, Err: err})
		return
	}
	s.attach(conn) // discards the socket itself if the session closed meanwhile
	if s.State() != StateConnected {
		return
	}
	if c.onConnected != nil {
		cb := c.onConnected
		job := concurrency.NewJob("client connected", func() { cb(s) })
		if perr := c.pool.Submit(job); perr != nil {
			c.logger.Warnf("client: connected callback dropped: %v", perr)
		}
	}
}

// Send transmits msg on the current session.
func (c *Client) Send(msg protocol.Message) error {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return ErrNotConnected
	}
	return s.Send(msg)
}

// Session returns the current session, which may be nil before Connect.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Close tears down the session and, when privately owned, stops the reactor
// and terminates the pool (queued handler jobs finish first).
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	s := c.session
	c.mu.Unlock()

	if s != nil {
		_ = s.Close()
	}

	var firstErr error
	if c.ownPool {
		if err := c.pool.Terminate(ctx); err != nil {
			firstErr = err
		}
	}
	if c.ownLoop {
		if err := c.loop.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
