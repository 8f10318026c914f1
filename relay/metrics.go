package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the relay's operational counters. Pass a nil registerer
// to create unregistered metrics (used by tests).
type Metrics struct {
	RoomsLive        prometheus.Gauge
	ParticipantsLive prometheus.Gauge
	RoomsCreated     prometheus.Counter
	JoinsRejected    *prometheus.CounterVec
	MessagesRouted   prometheus.Counter
	MalformedDropped prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RoomsLive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "relay",
			Name:      "rooms_live",
			Help:      "Number of rooms currently held in memory.",
		}),
		ParticipantsLive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "relay",
			Name:      "participants_live",
			Help:      "Number of participants across all rooms.",
		}),
		RoomsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "rooms_created_total",
			Help:      "Total rooms created since start.",
		}),
		JoinsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "joins_rejected_total",
			Help:      "Join attempts rejected, by reason.",
		}, []string{"reason"}),
		MessagesRouted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "game_data_routed_total",
			Help:      "game_data messages fanned out to room peers.",
		}),
		MalformedDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "malformed_dropped_total",
			Help:      "Inbound messages dropped because they failed to decode.",
		}),
	}
}
