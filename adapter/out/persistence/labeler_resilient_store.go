package persistence

import (
	"context"
	"errors"
	"time"

	"labeler_server/core/domain"
	"labeler_server/core/port/out"
	"labeler_server/pkg/apperr"
	"labeler_server/pkg/resilience"
)

// ResilientStore guards a remote store with a circuit breaker and a per-call timeout.
// ErrStateNotFound and corrupt documents are answers, not backend failures.
type ResilientStore struct {
	inner   out.ModelStore
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

var (
	_ out.ModelStore    = (*ResilientStore)(nil)
	_ out.HealthChecker = (*ResilientStore)(nil)
)

// NewResilientStore wraps inner. A nil cfg uses the defaults named after the inner store;
// a caller's cfg is copied, not modified. A zero timeout leaves deadlines to the caller.
func NewResilientStore(inner out.ModelStore, cfg *resilience.CircuitBreakerConfig, timeout time.Duration) *ResilientStore {
	if cfg == nil {
		cfg = resilience.DefaultCircuitBreakerConfig(inner.Name() + "-store")
	}
	c := *cfg
	c.IsExpected = func(err error) bool {
		return errors.Is(err, domain.ErrStateNotFound) || errors.Is(err, ErrCorruptState)
	}
	return &ResilientStore{inner: inner, breaker: resilience.NewCircuitBreaker(&c), timeout: timeout}
}

func (s *ResilientStore) Name() string { return s.inner.Name() }

func (s *ResilientStore) Load(ctx context.Context) (*domain.ModelState, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	state, err := resilience.Call(s.breaker, func() (*domain.ModelState, error) {
		return s.inner.Load(ctx)
	})
	return state, s.mapBreakerErr(err)
}

func (s *ResilientStore) Save(ctx context.Context, state *domain.ModelState) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.breaker.Execute(func() error {
		return s.inner.Save(ctx, state)
	})
	return s.mapBreakerErr(err)
}

// mapBreakerErr reports a rejected call as the store being unavailable.
func (s *ResilientStore) mapBreakerErr(err error) error {
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequest) {
		return apperr.Unavailable(s.inner.Name()+" store", err)
	}
	return err
}

// Ping checks the wrapped store when it supports health checks.
func (s *ResilientStore) Ping(ctx context.Context) error {
	hc, ok := s.inner.(out.HealthChecker)
	if !ok {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return hc.Ping(ctx)
}

func (s *ResilientStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Breaker exposes the circuit breaker for status reporting.
func (s *ResilientStore) Breaker() *resilience.CircuitBreaker {
	return s.breaker
}
