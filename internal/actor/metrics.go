package actor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	liveContexts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "multiplayer_actor_contexts",
		Help: "Live actor contexts.",
	})
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "multiplayer_actor_connections",
		Help: "Connections registered with actor contexts.",
	})
	alarmsFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "multiplayer_actor_alarms_fired_total",
		Help: "Durable alarms delivered to handlers.",
	})
)
