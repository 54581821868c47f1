package training

import (
	"context"
	"errors"
	"sync"

	"labeler_server/core/domain"
)

var errDiskFull = errors.New("disk full")

// memStore is an in-memory out.ModelStore.
type memStore struct {
	mu      sync.Mutex
	state   *domain.ModelState
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load(ctx context.Context) (*domain.ModelState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.state == nil {
		return nil, domain.ErrStateNotFound
	}
	return m.state.Clone(), nil
}

func (m *memStore) Save(ctx context.Context, state *domain.ModelState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.state = state.Clone()
	m.saves++
	return nil
}

func (m *memStore) Name() string { return "memory" }

func (m *memStore) failSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// countingRefitter wraps a Refitter and counts calls.
type countingRefitter struct {
	Refitter
	calls int
}

func (r *countingRefitter) Refit(ctx context.Context, corpus domain.Corpus) (*domain.VectorizerModel, *domain.LabelModel, error) {
	r.calls++
	return r.Refitter.Refit(ctx, corpus)
}
