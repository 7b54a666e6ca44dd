package igtl

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Device type tags with typed decoders.
const (
	TypeTransform = "TRANSFORM"
	TypeStatus    = "STATUS"
	TypeString    = "STRING"
)

// STATUS codes.
const (
	StatusInvalid       uint16 = 0
	StatusOK            uint16 = 1
	StatusUnknownError  uint16 = 2
	StatusPanic         uint16 = 3
	StatusNotFound      uint16 = 4
	StatusAccessDenied  uint16 = 5
	StatusBusy          uint16 = 6
	StatusTimeOut       uint16 = 7
	StatusChecksumError uint16 = 9
	StatusNotReady      uint16 = 13
)

// EncodingUSASCII is the default STRING character encoding (MIBenum 3).
const EncodingUSASCII uint16 = 3

// Transform carries a rigid 3D transform: three rotation columns followed by
// the translation vector, twelve float32 values in wire order.
type Transform struct {
	Device  string
	Stamp   uint64
	Version uint16 // wire version; zero means current
	Matrix  [12]float32
}

func (m *Transform) DeviceType() string { return TypeTransform }
func (m *Transform) DeviceName() string { return m.Device }

const transformBodyLen = 12 * 4

func (m *Transform) encodeBody() ([]byte, error) {
	body := make([]byte, transformBodyLen)
	for i, v := range m.Matrix {
		binary.BigEndian.PutUint32(body[i*4:], math.Float32bits(v))
	}
	return body, nil
}

func decodeTransform(h *Header, body []byte) (*Transform, error) {
	if len(body) != transformBodyLen {
		return nil, fmt.Errorf("%w: TRANSFORM body is %d bytes, want %d", ErrTruncatedBody, len(body), transformBodyLen)
	}
	m := &Transform{Device: h.Name, Stamp: h.Timestamp, Version: h.Version}
	for i := range m.Matrix {
		m.Matrix[i] = math.Float32frombits(binary.BigEndian.Uint32(body[i*4:]))
	}
	return m, nil
}

// Status reports device state: a numeric code/subcode pair, a short error
// name, and a free-form message.
type Status struct {
	Device  string
	Stamp   uint64
	Version uint16
	Code    uint16
	Subcode int64
	Name    string // fixed 20-byte wire field
	Message string
}

func (m *Status) DeviceType() string { return TypeStatus }
func (m *Status) DeviceName() string { return m.Device }

const statusFixedLen = 2 + 8 + nameLen

func (m *Status) encodeBody() ([]byte, error) {
	if err := checkField(m.Name, nameLen, "status name"); err != nil {
		return nil, err
	}
	body := make([]byte, statusFixedLen+len(m.Message))
	binary.BigEndian.PutUint16(body[0:2], m.Code)
	binary.BigEndian.PutUint64(body[2:10], uint64(m.Subcode))
	copy(body[10:10+nameLen], padField(m.Name, nameLen))
	copy(body[statusFixedLen:], m.Message)
	return body, nil
}

func decodeStatus(h *Header, body []byte) (*Status, error) {
	if len(body) < statusFixedLen {
		return nil, fmt.Errorf("%w: STATUS body is %d bytes, want at least %d", ErrTruncatedBody, len(body), statusFixedLen)
	}
	return &Status{
		Device:  h.Name,
		Stamp:   h.Timestamp,
		Version: h.Version,
		Code:    binary.BigEndian.Uint16(body[0:2]),
		Subcode: int64(binary.BigEndian.Uint64(body[2:10])),
		Name:    trimField(body[10 : 10+nameLen]),
		Message: string(body[statusFixedLen:]),
	}, nil
}

// String carries a text payload with its character encoding.
type String struct {
	Device   string
	Stamp    uint64
	Version  uint16
	Encoding uint16 // MIBenum; zero means US-ASCII
	Text     string
}

func (m *String) DeviceType() string { return TypeString }
func (m *String) DeviceName() string { return m.Device }

func (m *String) encodeBody() ([]byte, error) {
	if len(m.Text) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: string payload is %d bytes", ErrFieldTooLong, len(m.Text))
	}
	enc := m.Encoding
	if enc == 0 {
		enc = EncodingUSASCII
	}
	body := make([]byte, 4+len(m.Text))
	binary.BigEndian.PutUint16(body[0:2], enc)
	binary.BigEndian.PutUint16(body[2:4], uint16(len(m.Text)))
	copy(body[4:], m.Text)
	return body, nil
}

func decodeString(h *Header, body []byte) (*String, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("%w: STRING body is %d bytes, want at least 4", ErrTruncatedBody, len(body))
	}
	n := int(binary.BigEndian.Uint16(body[2:4]))
	if 4+n != len(body) {
		return nil, fmt.Errorf("%w: STRING declares %d text bytes, body has %d", ErrTruncatedBody, n, len(body)-4)
	}
	return &String{
		Device:   h.Name,
		Stamp:    h.Timestamp,
		Version:  h.Version,
		Encoding: binary.BigEndian.Uint16(body[0:2]),
		Text:     string(body[4 : 4+n]),
	}, nil
}

// Raw is a recognized-but-undecoded message: the header parsed and the
// checksum verified but no typed decoder exists for the device type. The
// body is kept opaque so the frame can be re-encoded or routed unchanged.
type Raw struct {
	Type    string
	Device  string
	Stamp   uint64
	Version uint16
	Body    []byte
}

func (m *Raw) DeviceType() string { return m.Type }
func (m *Raw) DeviceName() string { return m.Device }

func decodeRaw(h *Header, body []byte) *Raw {
	cp := make([]byte, len(body))
	copy(cp, body)
	return &Raw{
		Type:    h.Type,
		Device:  h.Name,
		Stamp:   h.Timestamp,
		Version: h.Version,
		Body:    cp,
	}
}
