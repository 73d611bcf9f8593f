// Package metrics exposes the relay's operational counters via Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons used as label values on the drops counter.
const (
	DropReasonRateLimited     = "rate_limited"
	DropReasonMessageTooLarge = "message_too_large"
	DropReasonRoomFull        = "room_full"
)

// Metrics bundles the service's Prometheus collectors on a private registry
// so tests can construct isolated instances without collector name clashes.
type Metrics struct {
	reg *prometheus.Registry

	ConnectionsOpened   prometheus.Counter
	ConnectionsClosed   prometheus.Counter
	RoomsCreated        prometheus.Counter
	RoomsDeleted        prometheus.Counter
	Joins               prometheus.Counter
	MessagesRelayed     prometheus.Counter
	BroadcastSendErrors prometheus.Counter
	Drops               *prometheus.CounterVec

	ActiveConnections prometheus.Gauge
	OpenRooms         prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto{reg}

	return &Metrics{
		reg: reg,

		ConnectionsOpened: factory.counter("webrtcapp_connections_opened_total",
			"Signaling WebSocket connections accepted."),
		ConnectionsClosed: factory.counter("webrtcapp_connections_closed_total",
			"Signaling WebSocket connections closed, for any reason."),
		RoomsCreated: factory.counter("webrtcapp_rooms_created_total",
			"Rooms created in the registry."),
		RoomsDeleted: factory.counter("webrtcapp_rooms_deleted_total",
			"Rooms removed from the registry (joined or host disconnected)."),
		Joins: factory.counter("webrtcapp_joins_total",
			"Successful joins into a membership group."),
		MessagesRelayed: factory.counter("webrtcapp_messages_relayed_total",
			"Opaque signaling payloads relayed between peers."),
		BroadcastSendErrors: factory.counter("webrtcapp_broadcast_send_errors_total",
			"Per-connection send failures during best-effort broadcasts."),
		Drops: factory.counterVec("webrtcapp_drops_total",
			"Client operations rejected, by reason.", "reason"),

		ActiveConnections: factory.gauge("webrtcapp_active_connections",
			"Currently connected signaling WebSockets."),
		OpenRooms: factory.gauge("webrtcapp_open_rooms",
			"Rooms currently listed in the registry."),
	}
}

// Handler returns the Prometheus scrape handler for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// promauto mirrors the upstream promauto helpers against a private registry.
type promauto struct {
	reg *prometheus.Registry
}

func (f promauto) counter(name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	f.reg.MustRegister(c)
	return c
}

func (f promauto) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	f.reg.MustRegister(c)
	return c
}

func (f promauto) gauge(name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	f.reg.MustRegister(g)
	return g
}
