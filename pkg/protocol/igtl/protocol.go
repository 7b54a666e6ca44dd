package igtl

import (
	"fmt"

	"github.com/medlinkio/medlink/pkg/protocol"
)

// Protocol implements protocol.Protocol for the igtl wire format.
type Protocol struct {
	maxBodyLen uint64
}

// New creates a Protocol with the default body-length limit.
func New() *Protocol {
	return NewWithLimit(DefaultMaxBodyLen)
}

// NewWithLimit creates a Protocol that rejects headers declaring a body
// larger than maxBodyLen.
func NewWithLimit(maxBodyLen uint64) *Protocol {
	if maxBodyLen == 0 {
		maxBodyLen = DefaultMaxBodyLen
	}
	return &Protocol{maxBodyLen: maxBodyLen}
}

// Factory returns a fresh Protocol instance; hand it to a server so every
// session gets its own.
func Factory() protocol.Protocol { return New() }

func (p *Protocol) Name() string { return FormatName }

func (p *Protocol) HeaderSize() int { return HeaderLen }

// ParseHeader parses the fixed 58-byte header. Version and tag problems are
// recoverable: the header is returned so the caller can skip the body. A
// body length beyond the limit is unrecoverable because the stream cannot be
// skipped safely.
func (p *Protocol) ParseHeader(header []byte) (protocol.Header, error) {
	if len(header) != HeaderLen {
		return nil, protocol.NewError(FormatName, "parse-header", "",
			fmt.Errorf("%w: got %d bytes, want %d", ErrShortHeader, len(header), HeaderLen))
	}

	h := unmarshalHeader(header)
	if h.BodySize > p.maxBodyLen {
		return nil, protocol.NewError(FormatName, "parse-header", h.Name,
			fmt.Errorf("%w: %d > %d", ErrBodyTooLarge, h.BodySize, p.maxBodyLen))
	}
	if h.Version == 0 || h.Version > ProtocolVersion {
		return h, protocol.NewError(FormatName, "parse-header", h.Name,
			fmt.Errorf("%w: %d", ErrVersion, h.Version))
	}
	if h.Type == "" {
		return h, protocol.NewError(FormatName, "parse-header", h.Name, ErrEmptyType)
	}
	return h, nil
}

// Decode verifies the body against the header (length, checksum) and decodes
// it by device type. Unrecognized types decode to *Raw rather than failing.
func (p *Protocol) Decode(header protocol.Header, body []byte) (protocol.Message, error) {
	h, ok := header.(*Header)
	if !ok {
		return nil, protocol.NewError(FormatName, "decode", header.DeviceName(),
			fmt.Errorf("header is %T, not an igtl header", header))
	}
	if uint64(len(body)) != h.BodySize {
		return nil, protocol.NewError(FormatName, "decode", h.Name,
			fmt.Errorf("%w: header declares %d bytes, got %d", ErrBodyLen, h.BodySize, len(body)))
	}
	if Checksum(body) != h.CRC {
		return nil, protocol.NewError(FormatName, "decode", h.Name, ErrChecksum)
	}

	var (
		msg protocol.Message
		err error
	)
	switch h.Type {
	case TypeTransform:
		msg, err = decodeTransform(h, body)
	case TypeStatus:
		msg, err = decodeStatus(h, body)
	case TypeString:
		msg, err = decodeString(h, body)
	default:
		msg = decodeRaw(h, body)
	}
	if err != nil {
		return nil, protocol.NewError(FormatName, "decode", h.Name, err)
	}
	return msg, nil
}

// Encode frames msg into header+body wire bytes, computing the checksum.
func (p *Protocol) Encode(msg protocol.Message) ([]byte, error) {
	var (
		body    []byte
		err     error
		stamp   uint64
		version uint16
	)

	switch m := msg.(type) {
	case *Transform:
		body, err = m.encodeBody()
		stamp, version = m.Stamp, m.Version
	case *Status:
		body, err = m.encodeBody()
		stamp, version = m.Stamp, m.Version
	case *String:
		body, err = m.encodeBody()
		stamp, version = m.Stamp, m.Version
	case *Raw:
		body = m.Body
		stamp, version = m.Stamp, m.Version
	default:
		return nil, protocol.NewError(FormatName, "encode", msg.DeviceName(),
			fmt.Errorf("unsupported message type %T", msg))
	}
	if err != nil {
		return nil, protocol.NewError(FormatName, "encode", msg.DeviceName(), err)
	}

	if uint64(len(body)) > p.maxBodyLen {
		return nil, protocol.NewError(FormatName, "encode", msg.DeviceName(),
			fmt.Errorf("%w: %d > %d", ErrBodyTooLarge, len(body), p.maxBodyLen))
	}
	if err := checkField(msg.DeviceType(), typeLen, "device type"); err != nil {
		return nil, protocol.NewError(FormatName, "encode", msg.DeviceName(), err)
	}
	if err := checkField(msg.DeviceName(), nameLen, "device name"); err != nil {
		return nil, protocol.NewError(FormatName, "encode", msg.DeviceName(), err)
	}
	if version == 0 {
		version = ProtocolVersion
	}

	h := &Header{
		Version:   version,
		Type:      msg.DeviceType(),
		Name:      msg.DeviceName(),
		Timestamp: stamp,
		BodySize:  uint64(len(body)),
		CRC:       Checksum(body),
	}
	frame := h.marshal()
	return append(frame, body...), nil
}
