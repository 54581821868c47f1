package training

import (
	"context"
	"testing"

	"labeler_server/core/domain"
	"labeler_server/core/service/classification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullRefitter(t *testing.T) {
	r := NewFullRefitter(classification.DefaultVectorizerOptions(), classification.DefaultAlpha)
	corpus := domain.Corpus{
		{Text: "cheap watches online", Label: "spam"},
		{Text: "team meeting tomorrow", Label: "work"},
		{Text: "cheap pills online", Label: "spam"},
	}

	vec, lm, err := r.Refit(context.Background(), corpus)
	require.NoError(t, err)
	assert.Equal(t, 3, vec.FittedOn)
	assert.Equal(t, 3, lm.FittedOn)
	assert.Equal(t, []string{"spam", "work"}, lm.Labels)
	assert.Equal(t, vec.Features(), len(lm.FeatureLogProb[0]))

	t.Run("single label", func(t *testing.T) {
		_, _, err := r.Refit(context.Background(), corpus[:1])
		assert.ErrorIs(t, err, domain.ErrInsufficientLabels)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := r.Refit(ctx, corpus)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
