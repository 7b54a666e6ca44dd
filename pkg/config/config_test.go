package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_FullConfig(t *testing.T) {
	t.Parallel()
	cfg, err := Parse([]byte(`
client:
  host: 192.168.1.40
  port: 18944
  protocol: igtl
  workers: 4
server:
  port: 18944
  transport: websocket
  max_conns: 16
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := cfg.Client.Addr(); got != "192.168.1.40:18944" {
		t.Errorf("Client.Addr() = %q", got)
	}
	if cfg.Client.Workers != 4 {
		t.Errorf("Client.Workers = %d, want 4", cfg.Client.Workers)
	}
	if cfg.Server.Transport != TransportWebSocket {
		t.Errorf("Server.Transport = %q, want %q", cfg.Server.Transport, TransportWebSocket)
	}
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := Parse([]byte("server:\n  port: 9000\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Server.Protocol != ProtocolIGTL {
		t.Errorf("default protocol = %q, want %q", cfg.Server.Protocol, ProtocolIGTL)
	}
	if cfg.Server.Transport != TransportTCP {
		t.Errorf("default transport = %q, want %q", cfg.Server.Transport, TransportTCP)
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "{}", "at least one"},
		{"bad port", "server:\n  port: 99999\n", "out of range"},
		{"missing client host", "client:\n  port: 9000\n", "host is required"},
		{"unknown protocol", "server:\n  port: 9000\n  protocol: dicom\n", "not a known variant"},
		{"unknown transport", "server:\n  port: 9000\n  transport: carrier-pigeon\n", "not a known transport"},
		{"negative workers", "server:\n  port: 9000\n  workers: -1\n", "must not be negative"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("Parse() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %v, want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "link.yaml")
	if err := os.WriteFile(path, []byte("client:\n  host: localhost\n  port: 18944\n"), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Client.Addr() != "localhost:18944" {
		t.Errorf("Client.Addr() = %q", cfg.Client.Addr())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() on a missing file succeeded, want error")
	}
}
