package link

import "github.com/medlinkio/medlink/pkg/protocol"

// Handler receives decoded messages and connection errors. Callbacks run on
// pool workers, never on the reactor or a connection's I/O goroutines, so
// they may block freely. Messages from one session arrive in wire order; no
// ordering holds across sessions. Errors are either *TransportError
// (terminal, the session is closing) or *protocol.Error (recoverable, the
// session stays open).
type Handler interface {
	OnMessage(s *Session, msg protocol.Message)
	OnError(s *Session, err error)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are ignored.
type HandlerFuncs struct {
	Message func(*Session, protocol.Message)
	Error   func(*Session, error)
}

func (h HandlerFuncs) OnMessage(s *Session, msg protocol.Message) {
	if h.Message != nil {
		h.Message(s, msg)
	}
}

func (h HandlerFuncs) OnError(s *Session, err error) {
	if h.Error != nil {
		h.Error(s, err)
	}
}
