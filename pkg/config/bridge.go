package config

import (
	"github.com/medlinkio/medlink/pkg/link"
	"github.com/medlinkio/medlink/pkg/link/transport"
	"github.com/medlinkio/medlink/pkg/protocol"
	"github.com/medlinkio/medlink/pkg/protocol/igtl"
)

// ClientConfig maps a validated client endpoint onto a link.ClientConfig.
// The handler still comes from the application; everything declarative
// (address, protocol variant, transport, pool sizing) comes from the file.
func (e *Endpoint) ClientConfig(handler link.Handler) *link.ClientConfig {
	cfg := link.DefaultClientConfig(e.Addr())
	cfg.Protocol = e.newProtocol()
	cfg.Handler = handler
	cfg.Transport = e.transport()
	cfg.Workers = e.Workers
	return cfg
}

// ServerConfig maps a validated server endpoint onto a link.ServerConfig.
func (e *Endpoint) ServerConfig(handler link.Handler) *link.ServerConfig {
	cfg := link.DefaultServerConfig(e.Addr())
	cfg.NewProtocol = e.protocolFactory()
	cfg.Handler = handler
	cfg.Transport = e.transport()
	cfg.Workers = e.Workers
	cfg.MaxConns = e.MaxConns
	return cfg
}

func (e *Endpoint) newProtocol() protocol.Protocol {
	return e.protocolFactory()()
}

func (e *Endpoint) protocolFactory() func() protocol.Protocol {
	// Validate has already pinned Protocol to a known variant; igtl is the
	// only one today.
	return igtl.Factory
}

func (e *Endpoint) transport() transport.Transport {
	if e.Transport == TransportWebSocket {
		return &transport.WebSocket{}
	}
	return &transport.TCP{}
}
