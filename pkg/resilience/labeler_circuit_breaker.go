// Package resilience provides fault tolerance for calls to remote stores.
package resilience

import (
	"errors"
	"time"

	"labeler_server/pkg/logger"

	"github.com/sony/gobreaker"
)

// CircuitState represents the state of the circuit breaker.
type CircuitState int32

const (
	StateClosed   CircuitState = iota // requests pass through
	StateOpen                         // requests fail immediately
	StateHalfOpen                     // probing for recovery
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Errors returned by the circuit breaker.
var (
	ErrCircuitOpen    = errors.New("circuit breaker is open")
	ErrTooManyRequest = errors.New("too many requests in half-open state")
)

// CircuitBreakerConfig holds configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	Name               string        // for logging/metrics
	FailureThreshold   int           // consecutive failures before opening (default: 5)
	Timeout            time.Duration // open duration before half-open (default: 30s)
	MaxHalfOpenRequest int           // requests allowed in half-open (default: 1)

	// IsExpected reports errors that are a normal answer, not a failure (e.g. not found).
	IsExpected func(err error) bool

	OnStateChange func(name string, from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:               name,
		FailureThreshold:   5,
		Timeout:            30 * time.Second,
		MaxHalfOpenRequest: 1,
	}
}

// CircuitBreaker wraps gobreaker with error mapping and state-change logging.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a new circuit breaker with the given config.
func NewCircuitBreaker(cfg *CircuitBreakerConfig) *CircuitBreaker {
	if cfg == nil {
		cfg = DefaultCircuitBreakerConfig("default")
	}
	threshold := uint32(max(cfg.FailureThreshold, 1))

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: uint32(max(cfg.MaxHalfOpenRequest, 1)),
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, fromGobreaker(from), fromGobreaker(to))
			}
		},
	}
	if cfg.IsExpected != nil {
		isExpected := cfg.IsExpected
		settings.IsSuccessful = func(err error) bool {
			return err == nil || isExpected(err)
		}
	}

	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Name returns the circuit breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.cb.Name()
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	return fromGobreaker(cb.cb.State())
}

// Execute runs fn with circuit breaker protection.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	_, err := Call(cb, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Call runs fn with circuit breaker protection and returns its value.
func Call[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	v, err := cb.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return zero, ErrCircuitOpen
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return zero, ErrTooManyRequest
	case err != nil:
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

// CircuitBreakerStats is a snapshot of breaker counters.
type CircuitBreakerStats struct {
	Name                string
	State               string
	Requests            uint32
	ConsecutiveFailures uint32
	TotalFailures       uint32
}

// Stats returns current statistics.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	counts := cb.cb.Counts()
	return CircuitBreakerStats{
		Name:                cb.Name(),
		State:               cb.State().String(),
		Requests:            counts.Requests,
		ConsecutiveFailures: counts.ConsecutiveFailures,
		TotalFailures:       counts.TotalFailures,
	}
}
