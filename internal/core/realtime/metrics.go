package realtime

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes client counters. Registration is optional: pass a nil
// registerer to keep the collectors process-local.
type Metrics struct {
	messagesSent     prometheus.Counter
	messagesReceived prometheus.Counter
	protocolErrors   prometheus.Counter
	reconnects       prometheus.Counter
	queueDropped     prometheus.Counter
	queueDepth       prometheus.Gauge
	state            prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulselink",
			Name:      "messages_sent_total",
			Help:      "Envelopes transmitted to the server.",
		}),
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulselink",
			Name:      "messages_received_total",
			Help:      "Envelopes received from the server.",
		}),
		protocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulselink",
			Name:      "protocol_errors_total",
			Help:      "Malformed inbound payloads dropped.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulselink",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts scheduled.",
		}),
		queueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulselink",
			Name:      "queue_dropped_total",
			Help:      "Outbound envelopes evicted from a full queue.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pulselink",
			Name:      "queue_depth",
			Help:      "Envelopes currently buffered while disconnected.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pulselink",
			Name:      "connection_state",
			Help:      "Current connection state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting, 4=errored).",
		}),
	}

	if reg != nil {
		m.messagesSent = register(reg, m.messagesSent)
		m.messagesReceived = register(reg, m.messagesReceived)
		m.protocolErrors = register(reg, m.protocolErrors)
		m.reconnects = register(reg, m.reconnects)
		m.queueDropped = register(reg, m.queueDropped)
		m.queueDepth = register(reg, m.queueDepth)
		m.state = register(reg, m.state)
	}

	return m
}

// register attaches the collector to reg. When another client already
// registered a collector under the same name, that one is adopted so
// multiple clients can share a registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}
