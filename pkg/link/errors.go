package link

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when operating on a closed connection.
	ErrClosed = errors.New("link: connection closed")

	// ErrNotConnected is returned by Send before the connection is up.
	ErrNotConnected = errors.New("link: not connected")

	// ErrAlreadyConnected is returned by Connect while a live connection exists.
	ErrAlreadyConnected = errors.New("link: already connected")

	// ErrClientClosed is returned by Connect after Close.
	ErrClientClosed = errors.New("link: client closed")
)

// TransportError is a connect/read/write/accept failure. It is terminal for
// the affected connection: the connection moves to Closing and then Closed,
// and the error is delivered through the error handler.
type TransportError struct {
	Op   string // "connect", "accept", "read", "write"
	Addr string // remote address, when known
	Err  error
}

func (e *TransportError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("transport: %s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err is (or wraps) a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
