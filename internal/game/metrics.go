package game

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multiplayer_messages_total",
		Help: "Client messages handled, by game type and action.",
	}, []string{"game_type", "action"})
	broadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multiplayer_broadcasts_total",
		Help: "Room broadcasts, by game type and message type.",
	}, []string{"game_type", "type"})
	sendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multiplayer_send_failures_total",
		Help: "Per-connection send failures.",
	}, []string{"game_type"})
	persistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multiplayer_persist_failures_total",
		Help: "Room persistence failures.",
	}, []string{"game_type"})
)
