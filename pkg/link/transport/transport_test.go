package transport

import (
	"context"
	"io"
	"net"
	"testing"
	"time"
)

func echoOnce(t *testing.T, ln net.Listener) {
	t.Helper()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		_, _ = conn.Write(buf[:n])
	}()
}

func roundTrip(t *testing.T, tr Transport) {
	t.Helper()

	ln, err := tr.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()
	echoOnce(t, ln)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := tr.Dial(ctx, ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	payload := []byte("transport probe")
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got := make([]byte, len(payload))
	if _, err := io.ReadFull(conn, got); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("echo = %q, want %q", got, payload)
	}
}

func TestTCP_RoundTrip(t *testing.T) {
	t.Parallel()
	roundTrip(t, &TCP{})
}

func TestWebSocket_RoundTrip(t *testing.T) {
	t.Parallel()
	roundTrip(t, &WebSocket{Path: "/link"})
}

func TestWebSocket_AcceptAfterClose(t *testing.T) {
	t.Parallel()
	tr := &WebSocket{}
	ln, err := tr.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if err := ln.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := ln.Accept(); err != net.ErrClosed {
		t.Errorf("Accept() after Close() error = %v, want net.ErrClosed", err)
	}
}

func TestTCP_DialTimeout(t *testing.T) {
	t.Parallel()
	tr := &TCP{}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	// RFC 5737 TEST-NET-1 address: never routable, forces the context to
	// cancel the dial.
	_, err := tr.Dial(ctx, "192.0.2.1:9")
	if err == nil {
		t.Fatal("Dial() to a blackhole address succeeded")
	}
}
