package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket carries the wire protocol over binary WebSocket messages, one
// frame boundary per write. Useful when devices sit behind HTTP-only
// infrastructure; the protocol layer sees an ordinary byte stream.
type WebSocket struct {
	// Path is the HTTP upgrade path; defaults to "/".
	Path string

	// HandshakeTimeout bounds the client-side upgrade handshake.
	HandshakeTimeout time.Duration
}

func (t *WebSocket) Name() string { return "websocket" }

func (t *WebSocket) path() string {
	if t.Path == "" {
		return "/"
	}
	return t.Path
}

func (t *WebSocket) Dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: t.HandshakeTimeout}
	ws, resp, err := dialer.DialContext(ctx, "ws://"+addr+t.path(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return newWSConn(ws), nil
}

func (t *WebSocket) Listen(addr string) (net.Listener, error) {
	inner, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	l := &wsListener{
		inner: inner,
		conns: make(chan net.Conn, 16),
		done:  make(chan struct{}),
	}

	upgrader := websocket.Upgrader{
		// The device protocol has its own framing; any origin may connect.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc(t.path(), func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case l.conns <- newWSConn(ws):
		case <-l.done:
			ws.Close()
		}
	})

	l.srv = &http.Server{Handler: mux}
	go func() { _ = l.srv.Serve(inner) }() // Serve returns once the listener closes

	return l, nil
}

// wsListener surfaces upgraded WebSocket connections through the
// net.Listener interface.
type wsListener struct {
	inner     net.Listener
	srv       *http.Server
	conns     chan net.Conn
	done      chan struct{}
	closeOnce sync.Once
}

func (l *wsListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *wsListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.srv.Close()
	})
	return err
}

func (l *wsListener) Addr() net.Addr { return l.inner.Addr() }

// wsConn adapts a websocket.Conn to net.Conn. Writes become single binary
// messages; reads run across message boundaries like a stream.
type wsConn struct {
	ws *websocket.Conn

	readMu  sync.Mutex
	reader  io.Reader
	writeMu sync.Mutex
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

func (c *wsConn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	for {
		if c.reader == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				if errors.Is(err, websocket.ErrCloseSent) {
					return 0, io.EOF
				}
				if _, ok := err.(*websocket.CloseError); ok {
					return 0, io.EOF
				}
				return 0, err
			}
			c.reader = r
		}
		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue // next message
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	// Best-effort close frame before tearing the socket down.
	deadline := time.Now().Add(time.Second)
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.ws.Close()
}

func (c *wsConn) LocalAddr() net.Addr  { return c.ws.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }
