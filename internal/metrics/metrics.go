// Package metrics exposes the Prometheus instrumentation for the app.
// Collectors are package-level so they register exactly once, no matter how
// many servers are built (the tests build one per case).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warbler_http_requests_total",
			Help: "Total number of HTTP requests by path, method and status",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warbler_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	MessagesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warbler_messages_created_total",
			Help: "Total number of messages posted",
		},
	)

	FollowToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warbler_follow_actions_total",
			Help: "Total number of follow/unfollow actions",
		},
		[]string{"action"},
	)

	LikeToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warbler_like_toggles_total",
			Help: "Total number of like toggles by outcome",
		},
		[]string{"outcome"},
	)
)
