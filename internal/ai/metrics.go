package ai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiplayer_ai_requests_total",
			Help: "Completion requests by model and outcome.",
		},
		[]string{"model", "status"},
	)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "multiplayer_ai_request_duration_seconds",
			Help:    "Completion request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
)
