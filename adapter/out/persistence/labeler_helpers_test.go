package persistence

import (
	"context"
	"testing"
	"time"

	"labeler_server/core/domain"
	"labeler_server/core/service/training"

	"github.com/stretchr/testify/require"
)

var trainingPairs = []string{
	"cheap watches online discount", "spam",
	"win free money prize now", "spam",
	"quarterly report attached review", "work",
	"team meeting agenda tomorrow", "work",
	"project deadline moved friday", "work",
}

// memoryStore captures the last saved state.
type memoryStore struct{ state *domain.ModelState }

func (m *memoryStore) Load(context.Context) (*domain.ModelState, error) {
	if m.state == nil {
		return nil, domain.ErrStateNotFound
	}
	return m.state, nil
}

func (m *memoryStore) Save(_ context.Context, s *domain.ModelState) error {
	m.state = s
	return nil
}

func (m *memoryStore) Name() string { return "memory" }

func trainedState(t *testing.T) *domain.ModelState {
	t.Helper()
	store := &memoryStore{}
	svc := training.NewService(context.Background(), store, training.DefaultConfig(),
		training.WithClock(func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }))
	for i := 0; i+1 < len(trainingPairs); i += 2 {
		_, err := svc.SubmitExample(context.Background(), trainingPairs[i], trainingPairs[i+1])
		require.NoError(t, err)
	}
	require.NotNil(t, store.state)
	require.True(t, store.state.IsTrained)
	return store.state
}
