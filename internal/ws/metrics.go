package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multiplayer_ws_connections_total",
		Help: "Websocket connections accepted, by game type.",
	}, []string{"game_type"})
	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multiplayer_ws_messages_received_total",
		Help: "Frames read from clients, by game type.",
	}, []string{"game_type"})
	messagesRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multiplayer_ws_messages_rate_limited_total",
		Help: "Frames dropped by the per-connection limiter, by game type.",
	}, []string{"game_type"})
)
