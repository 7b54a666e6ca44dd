// Package igtl implements an OpenIGTLink-style wire format: a fixed 58-byte
// big-endian header (version, device-type tag, device name, timestamp, body
// length, body checksum) followed by a device-type-dependent body. Device
// types without a typed decoder still parse and surface as Raw messages.
package igtl

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc64"
	"time"
)

const (
	// FormatName identifies this wire format.
	FormatName = "igtl"

	// ProtocolVersion is the header version written by Encode.
	ProtocolVersion uint16 = 2

	// HeaderLen is the fixed header size in bytes.
	HeaderLen = 58

	typeLen = 12
	nameLen = 20

	// DefaultMaxBodyLen bounds the body length Decode will accept.
	DefaultMaxBodyLen = 1 << 26 // 64 MiB
)

var (
	ErrShortHeader   = errors.New("short header")
	ErrVersion       = errors.New("unsupported header version")
	ErrEmptyType     = errors.New("empty device type")
	ErrBodyTooLarge  = errors.New("declared body length exceeds limit")
	ErrBodyLen       = errors.New("body length does not match header")
	ErrChecksum      = errors.New("body checksum mismatch")
	ErrFieldTooLong  = errors.New("field exceeds wire width")
	ErrTruncatedBody = errors.New("truncated body")
)

var crcTable = crc64.MakeTable(crc64.ECMA)

// Checksum computes the CRC-64/ECMA checksum written into the header.
func Checksum(body []byte) uint64 {
	return crc64.Checksum(body, crcTable)
}

// Now returns the current time in the header's timestamp unit (nanoseconds
// since the Unix epoch).
func Now() uint64 {
	return uint64(time.Now().UnixNano())
}

// Header is the parsed fixed-size frame header.
type Header struct {
	Version   uint16
	Type      string
	Name      string
	Timestamp uint64
	BodySize  uint64
	CRC       uint64
}

func (h *Header) DeviceType() string { return h.Type }
func (h *Header) DeviceName() string { return h.Name }
func (h *Header) BodyLen() uint64    { return h.BodySize }

// Time converts the header timestamp to a time.Time.
func (h *Header) Time() time.Time {
	return time.Unix(0, int64(h.Timestamp))
}

func (h *Header) marshal() []byte {
	buf := make([]byte, HeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], h.Version)
	copy(buf[2:2+typeLen], padField(h.Type, typeLen))
	copy(buf[14:14+nameLen], padField(h.Name, nameLen))
	binary.BigEndian.PutUint64(buf[34:42], h.Timestamp)
	binary.BigEndian.PutUint64(buf[42:50], h.BodySize)
	binary.BigEndian.PutUint64(buf[50:58], h.CRC)
	return buf
}

func unmarshalHeader(b []byte) *Header {
	return &Header{
		Version:   binary.BigEndian.Uint16(b[0:2]),
		Type:      trimField(b[2 : 2+typeLen]),
		Name:      trimField(b[14 : 14+nameLen]),
		Timestamp: binary.BigEndian.Uint64(b[34:42]),
		BodySize:  binary.BigEndian.Uint64(b[42:50]),
		CRC:       binary.BigEndian.Uint64(b[50:58]),
	}
}

// padField NUL-pads s to exactly width bytes.
func padField(s string, width int) []byte {
	out := make([]byte, width)
	copy(out, s)
	return out
}

// trimField cuts a fixed-width field at its first NUL.
func trimField(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// checkField validates that s fits a fixed-width wire field.
func checkField(s string, width int, what string) error {
	if len(s) > width {
		return fmt.Errorf("%w: %s %q wider than %d bytes", ErrFieldTooLong, what, s, width)
	}
	return nil
}
