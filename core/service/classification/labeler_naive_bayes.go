package classification

import (
	"fmt"
	"math"
	"sort"

	"labeler_server/core/domain"
)

// DefaultAlpha is the additive smoothing strength of the label model.
const DefaultAlpha = 1.0

// FitLabelModel fits a multinomial naive Bayes model over TF-IDF vectors.
// It fails with domain.ErrInsufficientLabels unless at least two distinct labels are present.
func FitLabelModel(vectors []SparseVector, labels []string, nFeatures int, alpha float64) (*domain.LabelModel, error) {
	if len(vectors) != len(labels) {
		return nil, fmt.Errorf("label model: %d vectors but %d labels", len(vectors), len(labels))
	}
	if alpha <= 0 {
		return nil, fmt.Errorf("label model: alpha must be > 0, got %v", alpha)
	}

	classIndex := make(map[string]int)
	for _, l := range labels {
		classIndex[l] = 0
	}
	if len(classIndex) < domain.MinDistinctLabels {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInsufficientLabels, len(classIndex))
	}

	classes := make([]string, 0, len(classIndex))
	for l := range classIndex {
		classes = append(classes, l)
	}
	sort.Strings(classes)
	for i, l := range classes {
		classIndex[l] = i
	}

	counts := make([]int, len(classes))
	featureSum := make([][]float64, len(classes))
	for c := range featureSum {
		featureSum[c] = make([]float64, nFeatures)
	}

	for i, v := range vectors {
		c := classIndex[labels[i]]
		counts[c]++
		for k, idx := range v.Indices {
			if idx >= 0 && idx < nFeatures {
				featureSum[c][idx] += v.Values[k]
			}
		}
	}

	total := float64(len(labels))
	logPriors := make([]float64, len(classes))
	featureLogProb := make([][]float64, len(classes))
	for c := range classes {
		logPriors[c] = math.Log(float64(counts[c]) / total)

		var mass float64
		for _, s := range featureSum[c] {
			mass += s
		}
		denom := math.Log(mass + alpha*float64(nFeatures))

		row := make([]float64, nFeatures)
		for j, s := range featureSum[c] {
			row[j] = math.Log(s+alpha) - denom
		}
		featureLogProb[c] = row
	}

	return &domain.LabelModel{
		Labels:         classes,
		ClassCounts:    counts,
		LogPriors:      logPriors,
		FeatureLogProb: featureLogProb,
		Alpha:          alpha,
		FittedOn:       len(vectors),
	}, nil
}

// jointLogLikelihood returns the unnormalized log posterior per class.
func jointLogLikelihood(v SparseVector, m *domain.LabelModel) []float64 {
	jll := make([]float64, len(m.Labels))
	for c := range m.Labels {
		score := m.LogPriors[c]
		row := m.FeatureLogProb[c]
		for k, idx := range v.Indices {
			if idx >= 0 && idx < len(row) {
				score += v.Values[k] * row[idx]
			}
		}
		jll[c] = score
	}
	return jll
}

// PredictDistribution returns the posterior probability of every training label.
// The values sum to 1.
func PredictDistribution(v SparseVector, m *domain.LabelModel) map[string]float64 {
	if m == nil || len(m.Labels) == 0 {
		return map[string]float64{}
	}

	jll := jointLogLikelihood(v, m)
	maxLL := math.Inf(-1)
	for _, s := range jll {
		if s > maxLL {
			maxLL = s
		}
	}
	var sum float64
	for _, s := range jll {
		sum += math.Exp(s - maxLL)
	}
	logNorm := maxLL + math.Log(sum)

	dist := make(map[string]float64, len(m.Labels))
	for c, label := range m.Labels {
		dist[label] = math.Exp(jll[c] - logNorm)
	}
	return dist
}

// PredictLabel returns the most probable label. Ties go to the lexicographically smallest label.
func PredictLabel(v SparseVector, m *domain.LabelModel) string {
	if m == nil || len(m.Labels) == 0 {
		return ""
	}
	jll := jointLogLikelihood(v, m)
	best := 0
	for c := 1; c < len(jll); c++ {
		if jll[c] > jll[best] {
			best = c
		}
	}
	return m.Labels[best]
}
