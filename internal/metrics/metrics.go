package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons for relayed signals.
const (
	DropReasonUnknownTarget = "unknown_target"
	DropReasonBackpressure  = "backpressure"
)

// Metrics holds the relay's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Sessions        prometheus.Gauge
	Rooms           prometheus.Gauge
	JoinsRejected   prometheus.Counter
	SignalsRelayed  prometheus.Counter
	SignalsDropped  *prometheus.CounterVec
	ChatMessages    prometheus.Counter
	ChatPersistErrs prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "warpmeet",
			Name:      "sessions_active",
			Help:      "Connected signaling sessions.",
		}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "warpmeet",
			Name:      "rooms_active",
			Help:      "Rooms with at least one member.",
		}),
		JoinsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warpmeet",
			Name:      "joins_rejected_total",
			Help:      "join-call requests rejected because the room identity was empty.",
		}),
		SignalsRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warpmeet",
			Name:      "signals_relayed_total",
			Help:      "Negotiation envelopes delivered to their target session.",
		}),
		SignalsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warpmeet",
			Name:      "signals_dropped_total",
			Help:      "Negotiation envelopes that were not delivered.",
		}, []string{"reason"}),
		ChatMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warpmeet",
			Name:      "chat_messages_total",
			Help:      "Chat messages broadcast to a room.",
		}),
		ChatPersistErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warpmeet",
			Name:      "chat_persist_errors_total",
			Help:      "Chat store reads or writes that failed.",
		}),
	}

	m.registry.MustRegister(
		m.Sessions,
		m.Rooms,
		m.JoinsRejected,
		m.SignalsRelayed,
		m.SignalsDropped,
		m.ChatMessages,
		m.ChatPersistErrs,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
