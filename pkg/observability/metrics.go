// Package observability provides Prometheus collectors for the link layer
// and the worker pool. A nil *Metrics is a valid no-op receiver, so
// instrumentation points never need nil checks.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates medlink collectors.
type Metrics struct {
	ConnectionsOpened *prometheus.CounterVec
	ConnectionsActive *prometheus.GaugeVec
	MessagesIn        *prometheus.CounterVec
	MessagesOut       *prometheus.CounterVec
	BytesIn           prometheus.Counter
	BytesOut          prometheus.Counter
	ProtocolErrors    prometheus.Counter
	TransportErrors   prometheus.Counter
	PoolQueueDepth    prometheus.Gauge
}

// NewMetrics registers medlink collectors with registerer. Pass
// prometheus.DefaultRegisterer for the process-global registry, or a private
// registry in tests.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	return &Metrics{
		ConnectionsOpened: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "medlink_connections_opened_total",
				Help: "Total connections opened",
			},
			[]string{"role"}, // role: client, server
		),
		ConnectionsActive: promauto.With(registerer).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "medlink_connections_active",
				Help: "Connections currently open",
			},
			[]string{"role"},
		),
		MessagesIn: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "medlink_messages_in_total",
				Help: "Total messages decoded from the wire",
			},
			[]string{"device_type"},
		),
		MessagesOut: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "medlink_messages_out_total",
				Help: "Total messages written to the wire",
			},
			[]string{"device_type"},
		),
		BytesIn: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "medlink_bytes_in_total",
				Help: "Total body and header bytes read",
			},
		),
		BytesOut: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "medlink_bytes_out_total",
				Help: "Total frame bytes written",
			},
		),
		ProtocolErrors: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "medlink_protocol_errors_total",
				Help: "Total recoverable protocol errors (bad checksum, malformed frame)",
			},
		),
		TransportErrors: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "medlink_transport_errors_total",
				Help: "Total transport errors terminal for a connection",
			},
		),
		PoolQueueDepth: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "medlink_pool_queue_depth",
				Help: "Jobs waiting for a pool worker",
			},
		),
	}
}

// ConnOpened records a connection reaching the Connected state.
func (m *Metrics) ConnOpened(role string) {
	if m == nil {
		return
	}
	m.ConnectionsOpened.WithLabelValues(role).Inc()
	m.ConnectionsActive.WithLabelValues(role).Inc()
}

// ConnClosed records a connection reaching the Closed state.
func (m *Metrics) ConnClosed(role string) {
	if m == nil {
		return
	}
	m.ConnectionsActive.WithLabelValues(role).Dec()
}

// MsgIn records a decoded inbound message and its frame size.
func (m *Metrics) MsgIn(deviceType string, frameBytes int) {
	if m == nil {
		return
	}
	m.MessagesIn.WithLabelValues(deviceType).Inc()
	m.BytesIn.Add(float64(frameBytes))
}

// MsgOut records an encoded outbound message and its frame size.
func (m *Metrics) MsgOut(deviceType string, frameBytes int) {
	if m == nil {
		return
	}
	m.MessagesOut.WithLabelValues(deviceType).Inc()
	m.BytesOut.Add(float64(frameBytes))
}

// ProtoErr records a recoverable protocol error.
func (m *Metrics) ProtoErr() {
	if m == nil {
		return
	}
	m.ProtocolErrors.Inc()
}

// TransErr records a terminal transport error.
func (m *Metrics) TransErr() {
	if m == nil {
		return
	}
	m.TransportErrors.Inc()
}

// SetPoolQueueDepth samples the pool's pending job count.
func (m *Metrics) SetPoolQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.PoolQueueDepth.Set(float64(depth))
}
