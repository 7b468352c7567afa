package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "revchat_connections_active",
			Help: "Currently connected WebSocket sessions",
		},
	)

	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "revchat_rooms_created_total",
			Help: "Total rooms created in the registry",
		},
	)

	EventsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revchat_events_relayed_total",
			Help: "Total outbound events broadcast to room members",
		},
		[]string{"event"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revchat_events_dropped_total",
			Help: "Total inbound events dropped before relay",
		},
		[]string{"reason"}, // "empty", "rate_limited" or "malformed"
	)

	HistoryEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "revchat_history_evictions_total",
			Help: "Total messages evicted from room history buffers",
		},
	)
)
