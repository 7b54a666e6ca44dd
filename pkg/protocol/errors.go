package protocol

import (
	"errors"
	"fmt"
)

// Error is a protocol-level failure: malformed header, checksum mismatch,
// declared/actual length disagreement. Distinct from transport errors and
// recoverable by default; the connection stays open unless the caller's
// policy says otherwise.
type Error struct {
	Format string // wire format name
	Op     string // "parse-header", "decode", "encode"
	Device string // device name, when known
	Err    error
}

func (e *Error) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("protocol %s: %s %q: %v", e.Format, e.Op, e.Device, e.Err)
	}
	return fmt.Sprintf("protocol %s: %s: %v", e.Format, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err as a protocol Error.
func NewError(format, op, device string, err error) *Error {
	return &Error{Format: format, Op: op, Device: device, Err: err}
}

// IsError reports whether err is (or wraps) a protocol Error.
func IsError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}
