// Package protocol defines the pluggable framing capability that decouples
// wire formats from transports. A Protocol knows how to parse its fixed-size
// header, how many body bytes a header announces, and how to decode and
// encode complete messages. Clients and servers depend only on this
// interface; wire formats are added by adding implementations.
package protocol

// Message is an immutable decoded payload taken off the wire.
type Message interface {
	// DeviceType returns the protocol-specific tag identifying the payload's
	// shape (e.g. "TRANSFORM").
	DeviceType() string

	// DeviceName returns the name of the device that produced the message.
	DeviceName() string
}

// Header is a parsed frame header. It announces how many body bytes follow
// and identifies the payload for diagnostics.
type Header interface {
	DeviceType() string
	DeviceName() string

	// BodyLen returns the number of body bytes following the header.
	BodyLen() uint64
}

// Protocol is one wire format's framing, decoding, and encoding capability.
// ParseHeader and Decode are invoked from a connection's single reader
// goroutine; Encode must tolerate concurrent callers. Per-connection
// instances come from a factory, so stateful decoders are permitted.
type Protocol interface {
	// Name identifies the wire format (e.g. "igtl").
	Name() string

	// HeaderSize returns the fixed header length in bytes. The connection
	// reads exactly this many bytes before calling ParseHeader.
	HeaderSize() int

	// ParseHeader parses exactly HeaderSize() bytes. On a recoverable
	// malformation (unknown version, bad tag) it returns both a usable
	// Header and a *Error: the caller can skip BodyLen() bytes and stay in
	// frame. A nil Header means the body length cannot be trusted and the
	// stream is unrecoverable.
	ParseHeader(header []byte) (Header, error)

	// Decode decodes a message from a parsed header and exactly
	// Header.BodyLen() body bytes. Failures are *Error values; the
	// connection remains usable for the next frame.
	Decode(header Header, body []byte) (Message, error)

	// Encode frames msg into wire bytes, header included.
	Encode(msg Message) ([]byte, error)
}
