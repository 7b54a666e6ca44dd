package igtl

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/medlinkio/medlink/pkg/protocol"
)

func mustEncode(t *testing.T, p *Protocol, msg protocol.Message) []byte {
	t.Helper()
	frame, err := p.Encode(msg)
	if err != nil {
		t.Fatalf("Encode(%T) error = %v", msg, err)
	}
	return frame
}

func decodeFrame(t *testing.T, p *Protocol, frame []byte) (protocol.Message, error) {
	t.Helper()
	hdr, err := p.ParseHeader(frame[:HeaderLen])
	if err != nil {
		return nil, err
	}
	return p.Decode(hdr, frame[HeaderLen:])
}

// Encode(Decode(bytes)) must reproduce the exact wire bytes for every
// well-formed frame.
func TestRoundTrip(t *testing.T) {
	t.Parallel()
	p := New()

	msgs := []protocol.Message{
		&Transform{
			Device: "tracker-01",
			Stamp:  Now(),
			Matrix: [12]float32{1, 0, 0, 0, 1, 0, 0, 0, 1, 10.5, -3.25, 200},
		},
		&Status{
			Device:  "robot",
			Stamp:   12345678901,
			Code:    StatusOK,
			Subcode: -7,
			Name:    "calibration",
			Message: "axis 2 homed",
		},
		&String{Device: "console", Stamp: 42, Text: "hello device"},
		&String{Device: "console", Encoding: EncodingUSASCII, Text: ""},
		&Raw{Type: "IMAGE", Device: "us-probe", Stamp: 99, Body: []byte{1, 2, 3, 4, 5}},
	}

	for _, msg := range msgs {
		frame := mustEncode(t, p, msg)
		decoded, err := decodeFrame(t, p, frame)
		if err != nil {
			t.Fatalf("decode %s frame: %v", msg.DeviceType(), err)
		}
		if decoded.DeviceType() != msg.DeviceType() || decoded.DeviceName() != msg.DeviceName() {
			t.Errorf("decoded identity = %s/%s, want %s/%s",
				decoded.DeviceType(), decoded.DeviceName(), msg.DeviceType(), msg.DeviceName())
		}
		re, err := p.Encode(decoded)
		if err != nil {
			t.Fatalf("re-encode %s: %v", msg.DeviceType(), err)
		}
		if !bytes.Equal(re, frame) {
			t.Errorf("%s round trip: re-encoded frame differs from original", msg.DeviceType())
		}
	}
}

func TestDecode_TransformValues(t *testing.T) {
	t.Parallel()
	p := New()
	want := [12]float32{0, -1, 0, 1, 0, 0, 0, 0, 1, 1.5, 2.5, 3.5}
	frame := mustEncode(t, p, &Transform{Device: "nav", Matrix: want})

	msg, err := decodeFrame(t, p, frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	tr, ok := msg.(*Transform)
	if !ok {
		t.Fatalf("decoded %T, want *Transform", msg)
	}
	if tr.Matrix != want {
		t.Errorf("Matrix = %v, want %v", tr.Matrix, want)
	}
}

func TestDecode_ChecksumMismatch(t *testing.T) {
	t.Parallel()
	p := New()
	frame := mustEncode(t, p, &String{Device: "dev", Text: "payload"})
	frame[len(frame)-1] ^= 0xFF // corrupt the body

	_, err := decodeFrame(t, p, frame)
	if !errors.Is(err, ErrChecksum) {
		t.Errorf("decode corrupted body error = %v, want ErrChecksum", err)
	}
	if !protocol.IsError(err) {
		t.Error("checksum failure must surface as a protocol error")
	}
}

func TestDecode_BodyLengthMismatch(t *testing.T) {
	t.Parallel()
	p := New()
	frame := mustEncode(t, p, &String{Device: "dev", Text: "payload"})

	hdr, err := p.ParseHeader(frame[:HeaderLen])
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	_, err = p.Decode(hdr, frame[HeaderLen:len(frame)-2])
	if !errors.Is(err, ErrBodyLen) {
		t.Errorf("decode short body error = %v, want ErrBodyLen", err)
	}
}

func TestParseHeader_ShortBuffer(t *testing.T) {
	t.Parallel()
	p := New()
	hdr, err := p.ParseHeader(make([]byte, 10))
	if !errors.Is(err, ErrShortHeader) {
		t.Errorf("error = %v, want ErrShortHeader", err)
	}
	if hdr != nil {
		t.Error("short header must not return a usable Header")
	}
}

func TestParseHeader_BodyTooLarge(t *testing.T) {
	t.Parallel()
	p := NewWithLimit(1024)
	frame := mustEncode(t, New(), &Raw{Type: "IMAGE", Device: "probe", Body: make([]byte, 2048)})

	hdr, err := p.ParseHeader(frame[:HeaderLen])
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Errorf("error = %v, want ErrBodyTooLarge", err)
	}
	if hdr != nil {
		t.Error("oversized body length is unrecoverable and must not return a Header")
	}
}

func TestParseHeader_BadVersionIsRecoverable(t *testing.T) {
	t.Parallel()
	p := New()
	frame := mustEncode(t, p, &String{Device: "dev", Text: "x"})
	binary.BigEndian.PutUint16(frame[0:2], 99)

	hdr, err := p.ParseHeader(frame[:HeaderLen])
	if !errors.Is(err, ErrVersion) {
		t.Errorf("error = %v, want ErrVersion", err)
	}
	if hdr == nil {
		t.Fatal("version error must still return the Header so the body can be skipped")
	}
	if hdr.BodyLen() != uint64(len(frame)-HeaderLen) {
		t.Errorf("BodyLen() = %d, want %d", hdr.BodyLen(), len(frame)-HeaderLen)
	}
}

func TestDecode_UnknownTypeIsRaw(t *testing.T) {
	t.Parallel()
	p := New()
	body := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	frame := mustEncode(t, p, &Raw{Type: "POLYDATA", Device: "scan", Stamp: 7, Body: body})

	msg, err := decodeFrame(t, p, frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw, ok := msg.(*Raw)
	if !ok {
		t.Fatalf("decoded %T, want *Raw", msg)
	}
	if raw.Type != "POLYDATA" || !bytes.Equal(raw.Body, body) {
		t.Errorf("Raw = %q/%v, want POLYDATA/%v", raw.Type, raw.Body, body)
	}
}

func TestEncode_FieldTooLong(t *testing.T) {
	t.Parallel()
	p := New()
	_, err := p.Encode(&String{Device: strings.Repeat("x", nameLen+1), Text: "y"})
	if !errors.Is(err, ErrFieldTooLong) {
		t.Errorf("error = %v, want ErrFieldTooLong", err)
	}
	_, err = p.Encode(&Raw{Type: strings.Repeat("T", typeLen+1), Device: "d"})
	if !errors.Is(err, ErrFieldTooLong) {
		t.Errorf("error = %v, want ErrFieldTooLong", err)
	}
}
