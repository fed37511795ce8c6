// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"
)

var (
	// Chat session metrics
	ChatSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodcine_chat_submissions_total",
			Help: "Chat submissions by phase and outcome",
		},
		[]string{"phase", "outcome"}, // outcome: ignored, busy, replied, finalized, failed
	)

	ChatActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moodcine_chat_active_sessions",
			Help: "Sessions currently held by the registry",
		},
	)

	PosterLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodcine_poster_lookups_total",
			Help: "Poster lookups for recommended titles",
		},
		[]string{"result"}, // hit, miss, error
	)

	// Upstream HTTP metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodcine_upstream_requests_total",
			Help: "Requests to upstream services",
		},
		[]string{"upstream", "operation", "result"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moodcine_upstream_request_duration_seconds",
			Help:    "Latency of upstream requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"upstream", "operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moodcine_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Reference classifier metrics
	ClassifiedEmotions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodcine_classified_emotions_total",
			Help: "Finalized classifications by representative emotion",
		},
		[]string{"emotion"},
	)
)

// BreakerStateValue maps a breaker state to the gauge encoding.
func BreakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
