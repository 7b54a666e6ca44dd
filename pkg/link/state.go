package link

// State is a connection's lifecycle position. Transitions run one way:
// Connecting -> Connected -> Closing -> Closed. Closing is entered on
// explicit close or any I/O error and becomes Closed once the read and write
// loops have exited.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
