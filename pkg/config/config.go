// Package config loads construction-time settings (endpoints, protocol
// variant, worker-pool sizing) from YAML files. It owns no persisted format
// beyond that; everything here maps onto ClientConfig/ServerConfig fields in
// pkg/link.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Known protocol variants and transports.
const (
	ProtocolIGTL = "igtl"

	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"
)

// Config is the top-level file layout. Either section may be omitted.
type Config struct {
	Client *Endpoint `yaml:"client,omitempty"`
	Server *Endpoint `yaml:"server,omitempty"`
}

// Endpoint configures one side of a link.
type Endpoint struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Protocol  string `yaml:"protocol"`  // defaults to "igtl"
	Transport string `yaml:"transport"` // defaults to "tcp"
	Workers   int    `yaml:"workers"`   // worker-pool size; 0 picks a default
	MaxConns  int    `yaml:"max_conns"` // server only; 0 means unlimited
}

// Addr returns the "host:port" form of the endpoint.
func (e *Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks both sections and applies defaults.
func (c *Config) Validate() error {
	if c.Client == nil && c.Server == nil {
		return fmt.Errorf("config: at least one of client or server must be set")
	}
	if c.Client != nil {
		if err := c.Client.validate("client", true); err != nil {
			return err
		}
	}
	if c.Server != nil {
		if err := c.Server.validate("server", false); err != nil {
			return err
		}
	}
	return nil
}

func (e *Endpoint) validate(section string, requireHost bool) error {
	if requireHost && e.Host == "" {
		return fmt.Errorf("config: %s.host is required", section)
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("config: %s.port %d out of range", section, e.Port)
	}
	if e.Protocol == "" {
		e.Protocol = ProtocolIGTL
	}
	if e.Protocol != ProtocolIGTL {
		return fmt.Errorf("config: %s.protocol %q is not a known variant", section, e.Protocol)
	}
	if e.Transport == "" {
		e.Transport = TransportTCP
	}
	if e.Transport != TransportTCP && e.Transport != TransportWebSocket {
		return fmt.Errorf("config: %s.transport %q is not a known transport", section, e.Transport)
	}
	if e.Workers < 0 {
		return fmt.Errorf("config: %s.workers must not be negative", section)
	}
	if e.MaxConns < 0 {
		return fmt.Errorf("config: %s.max_conns must not be negative", section)
	}
	return nil
}
