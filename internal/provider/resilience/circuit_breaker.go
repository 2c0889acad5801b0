// Package resilience wraps outbound provider calls (geocoders, street network
// services, the backend API client) with circuit breakers, timeouts and retries.
package resilience

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig configures NewCircuitBreaker. Zero MaxRequests and
// Timeout take gobreaker's defaults.
type CircuitBreakerConfig struct {
	Name string

	// MaxRequests is how many probes a half-open breaker lets through.
	MaxRequests uint32
	// Interval clears the closed-state counts; zero never clears them.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	ReadyToTrip   func(counts gobreaker.Counts) bool
	OnStateChange func(name string, from, to gobreaker.State)
}

// Trip thresholds of DefaultReadyToTrip.
const (
	minTripRequests = 5
	tripFailureRate = 0.5
)

// DefaultCircuitBreakerConfig opens for 30s once half of at least five calls
// have failed.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	return counts.Requests >= minTripRequests &&
		float64(counts.TotalFailures) >= tripFailureRate*float64(counts.Requests)
}

// NewCircuitBreaker builds a breaker whose state changes are logged at warn.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker[T] {
	trip := cfg.ReadyToTrip
	if trip == nil {
		trip = DefaultReadyToTrip
	}
	notify := cfg.OnStateChange

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: trip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("provider", name).
				Stringer("from", from).
				Stringer("to", to).
				Msg("circuit breaker state changed")
			if notify != nil {
				notify(name, from, to)
			}
		},
	})
}
