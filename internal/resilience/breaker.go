// Package resilience builds the circuit breakers shared by the upstream HTTP clients.
package resilience

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/moodcine/backend/internal/logging"
	"github.com/moodcine/backend/internal/metrics"
)

// BreakerSettings tunes when a breaker opens and how long it stays open.
type BreakerSettings struct {
	// MaxHalfOpen is the number of probe requests allowed while half-open.
	MaxHalfOpen uint32
	// Interval resets the closed-state counters.
	Interval time.Duration
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// MinRequests is the sample size required before the failure ratio is considered.
	MinRequests uint32
	// FailureRatio opens the breaker once reached.
	FailureRatio float64
	// ConsecutiveFailures opens the breaker regardless of the ratio.
	ConsecutiveFailures uint32
}

// DefaultBreakerSettings matches the upstreams this service talks to: a handful of
// probes, one minute windows, thirty seconds open.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxHalfOpen:         2,
		Interval:            time.Minute,
		OpenTimeout:         30 * time.Second,
		MinRequests:         10,
		FailureRatio:        0.6,
		ConsecutiveFailures: 5,
	}
}

// NewBreaker returns a named breaker that logs transitions and exports its state.
func NewBreaker[T any](name string, s BreakerSettings) *gobreaker.CircuitBreaker[T] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxHalfOpen,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if s.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= s.ConsecutiveFailures {
				return true
			}
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("[breaker] state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(metrics.BreakerStateValue(to))
		},
		// A caller giving up is not an upstream failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCallerCanceled)
		},
	})
}

// ErrCallerCanceled marks failures caused by the caller's context rather than the upstream.
var ErrCallerCanceled = errors.New("caller canceled")

// IsRejection reports whether err came from an open or saturated breaker.
func IsRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
