// Package transport abstracts the byte stream beneath a wire protocol.
// A Transport can dial out and listen for inbound connections; framing and
// decoding stay in the protocol layer.
package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

// Transport opens and accepts byte-stream connections.
type Transport interface {
	// Name identifies the transport (e.g. "tcp").
	Name() string

	// Dial opens a connection to addr ("host:port").
	Dial(ctx context.Context, addr string) (net.Conn, error)

	// Listen starts accepting connections on addr. ":0" picks a free port.
	Listen(addr string) (net.Listener, error)
}

// TCP is the plain (optionally TLS) TCP transport.
type TCP struct {
	// TLSConfig enables TLS when non-nil, for both Dial and Listen.
	TLSConfig *tls.Config

	// KeepAlive sets the TCP keep-alive period; zero keeps the net
	// package default.
	KeepAlive time.Duration
}

func (t *TCP) Name() string { return "tcp" }

func (t *TCP) Dial(ctx context.Context, addr string) (net.Conn, error) {
	d := &net.Dialer{KeepAlive: t.KeepAlive}
	if t.TLSConfig != nil {
		td := &tls.Dialer{NetDialer: d, Config: t.TLSConfig}
		return td.DialContext(ctx, "tcp", addr)
	}
	return d.DialContext(ctx, "tcp", addr)
}

func (t *TCP) Listen(addr string) (net.Listener, error) {
	if t.TLSConfig != nil {
		return tls.Listen("tcp", addr, t.TLSConfig)
	}
	return net.Listen("tcp", addr)
}
