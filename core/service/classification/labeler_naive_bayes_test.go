package classification

import (
	"errors"
	"math"
	"testing"

	"labeler_server/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fitCorpus(t *testing.T, texts, labels []string) (*domain.VectorizerModel, *domain.LabelModel) {
	t.Helper()
	vec := FitVectorizer(texts, DefaultVectorizerOptions())
	m, err := FitLabelModel(TransformAll(texts, vec), labels, vec.Features(), DefaultAlpha)
	require.NoError(t, err)
	return vec, m
}

func TestFitLabelModel_RequiresTwoLabels(t *testing.T) {
	vec := FitVectorizer([]string{"hello there", "hello again"}, DefaultVectorizerOptions())
	vectors := TransformAll([]string{"hello there", "hello again"}, vec)

	_, err := FitLabelModel(vectors, []string{"work", "work"}, vec.Features(), DefaultAlpha)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientLabels))
}

func TestFitLabelModel_RejectsBadInput(t *testing.T) {
	_, err := FitLabelModel([]SparseVector{{}}, []string{"a", "b"}, 0, DefaultAlpha)
	assert.Error(t, err)

	_, err = FitLabelModel([]SparseVector{{}, {}}, []string{"a", "b"}, 0, 0)
	assert.Error(t, err)
}

func TestFitLabelModel_Parameters(t *testing.T) {
	texts := []string{"cheap pills", "cheap watches", "team meeting"}
	labels := []string{"spam", "spam", "work"}
	vec, m := fitCorpus(t, texts, labels)

	assert.Equal(t, []string{"spam", "work"}, m.Labels)
	assert.Equal(t, []int{2, 1}, m.ClassCounts)
	assert.InDelta(t, math.Log(2.0/3.0), m.LogPriors[0], 1e-12)
	assert.InDelta(t, math.Log(1.0/3.0), m.LogPriors[1], 1e-12)
	assert.Equal(t, 3, m.FittedOn)

	// each class row is a proper distribution over features
	for c := range m.Labels {
		require.Len(t, m.FeatureLogProb[c], vec.Features())
		var total float64
		for _, lp := range m.FeatureLogProb[c] {
			total += math.Exp(lp)
		}
		assert.InDelta(t, 1.0, total, 1e-9)
	}
}

func TestPredictDistribution(t *testing.T) {
	texts := []string{
		"cheap pills online now",
		"cheap watches online sale",
		"team meeting agenda monday",
		"project meeting notes monday",
	}
	labels := []string{"spam", "spam", "work", "work"}
	vec, m := fitCorpus(t, texts, labels)

	dist := PredictDistribution(Transform("cheap online sale", vec), m)
	require.Len(t, dist, 2)
	assert.InDelta(t, 1.0, dist["spam"]+dist["work"], 1e-12)
	assert.Greater(t, dist["spam"], dist["work"])
	assert.Equal(t, "spam", PredictLabel(Transform("cheap online sale", vec), m))

	dist = PredictDistribution(Transform("monday meeting", vec), m)
	assert.Greater(t, dist["work"], dist["spam"])

	t.Run("zero vector falls back to priors", func(t *testing.T) {
		dist := PredictDistribution(SparseVector{}, m)
		assert.InDelta(t, 0.5, dist["spam"], 1e-12)
		assert.InDelta(t, 0.5, dist["work"], 1e-12)
		// equal posterior: smallest label wins
		assert.Equal(t, "spam", PredictLabel(SparseVector{}, m))
	})
}
