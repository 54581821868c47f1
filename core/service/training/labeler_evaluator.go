package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"labeler_server/core/domain"
	"labeler_server/core/service/classification"
	"labeler_server/pkg/apperr"

	"github.com/montanaflynn/stats"
)

// ValidateEvaluation checks evaluation parameters before any corpus access.
func ValidateEvaluation(testFraction float64, folds int) error {
	if math.IsNaN(testFraction) || testFraction <= 0 || testFraction >= 1 {
		return apperr.EvaluationParameter("test_fraction", fmt.Sprintf("must be in (0, 1), got %v", testFraction))
	}
	if folds < 2 {
		return apperr.EvaluationParameter("folds", fmt.Sprintf("must be >= 2, got %d", folds))
	}
	return nil
}

// Evaluator measures label model accuracy with a stratified held-out split and
// stratified k-fold cross-validation. Splits are seeded and reproducible.
type Evaluator struct {
	refitter Refitter
	seed     int64
}

func NewEvaluator(refitter Refitter, seed int64) *Evaluator {
	return &Evaluator{refitter: refitter, seed: seed}
}

// Evaluate runs the held-out split and cross-validation over corpus.
func (e *Evaluator) Evaluate(ctx context.Context, corpus domain.Corpus, testFraction float64, folds int) (*domain.EvaluationReport, error) {
	if err := ValidateEvaluation(testFraction, folds); err != nil {
		return nil, err
	}
	if len(corpus.DistinctLabels()) < domain.MinDistinctLabels {
		return nil, apperr.InsufficientData("need at least 2 different labels to evaluate")
	}

	rng := rand.New(rand.NewSource(e.seed))
	groups := stratify(corpus, rng)

	trainIdx, testIdx := holdOut(groups, testFraction)
	if len(testIdx) == 0 {
		return nil, apperr.InsufficientData("not enough examples to hold out a test set")
	}

	predicted, err := e.trainAndPredict(ctx, corpus, trainIdx, testIdx)
	if err != nil {
		return nil, err
	}

	report := &domain.EvaluationReport{
		TestFraction:   testFraction,
		FoldCount:      folds,
		TrainSize:      len(trainIdx),
		TestSize:       len(testIdx),
		TestAccuracy:   accuracy(corpus, testIdx, predicted),
		LabelCounts:    corpus.LabelCounts(),
		PerLabel:       perLabelMetrics(corpus, testIdx, predicted),
		CrossValScores: []float64{},
	}

	for _, fold := range kFold(groups, folds) {
		train, test := fold.train, fold.test
		if len(test) == 0 || distinctLabels(corpus, train) < domain.MinDistinctLabels {
			report.SkippedFolds++
			continue
		}
		pred, err := e.trainAndPredict(ctx, corpus, train, test)
		if err != nil {
			return nil, err
		}
		report.CrossValScores = append(report.CrossValScores, accuracy(corpus, test, pred))
	}

	if len(report.CrossValScores) > 0 {
		data := stats.Float64Data(report.CrossValScores)
		if report.CrossValMean, err = stats.Mean(data); err != nil {
			return nil, apperr.InternalWithError(err)
		}
		if report.CrossValStd, err = stats.StandardDeviationPopulation(data); err != nil {
			return nil, apperr.InternalWithError(err)
		}
	}

	return report, nil
}

func (e *Evaluator) trainAndPredict(ctx context.Context, corpus domain.Corpus, trainIdx, testIdx []int) ([]string, error) {
	train := subset(corpus, trainIdx)
	vec, lm, err := e.refitter.Refit(ctx, train)
	if err != nil {
		return nil, apperr.InternalWithError(err)
	}

	predicted := make([]string, len(testIdx))
	for i, idx := range testIdx {
		predicted[i] = classification.PredictLabel(classification.Transform(corpus[idx].Text, vec), lm)
	}
	return predicted, nil
}

// stratify groups example indices by label (labels sorted) and shuffles each group.
func stratify(corpus domain.Corpus, rng *rand.Rand) [][]int {
	byLabel := make(map[string][]int)
	for i, ex := range corpus {
		byLabel[ex.Label] = append(byLabel[ex.Label], i)
	}
	labels := corpus.DistinctLabels()

	groups := make([][]int, len(labels))
	for i, l := range labels {
		g := byLabel[l]
		rng.Shuffle(len(g), func(a, b int) { g[a], g[b] = g[b], g[a] })
		groups[i] = g
	}
	return groups
}

// holdOut takes round(n*fraction) examples of each label for testing while keeping
// at least one of every label for training. If that leaves the test set empty, one
// example of the largest multi-example label is held out.
func holdOut(groups [][]int, fraction float64) (train, test []int) {
	nTest := make([]int, len(groups))
	total := 0
	for i, g := range groups {
		n := int(math.Round(float64(len(g)) * fraction))
		n = min(n, len(g)-1)
		nTest[i] = n
		total += n
	}

	if total == 0 {
		largest := -1
		for i, g := range groups {
			if len(g) >= 2 && (largest < 0 || len(g) > len(groups[largest])) {
				largest = i
			}
		}
		if largest >= 0 {
			nTest[largest] = 1
		}
	}

	for i, g := range groups {
		test = append(test, g[:nTest[i]]...)
		train = append(train, g[nTest[i]:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

type foldSplit struct {
	train, test []int
}

// kFold deals each label's examples round-robin across folds, continuing the
// rotation between labels so fold sizes stay balanced.
func kFold(groups [][]int, k int) []foldSplit {
	assignment := make(map[int]int)
	next := 0
	for _, g := range groups {
		for _, idx := range g {
			assignment[idx] = next % k
			next++
		}
	}

	splits := make([]foldSplit, k)
	indices := make([]int, 0, len(assignment))
	for idx := range assignment {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	for _, idx := range indices {
		f := assignment[idx]
		for j := range splits {
			if j == f {
				splits[j].test = append(splits[j].test, idx)
			} else {
				splits[j].train = append(splits[j].train, idx)
			}
		}
	}
	return splits
}

func subset(corpus domain.Corpus, idx []int) domain.Corpus {
	out := make(domain.Corpus, len(idx))
	for i, j := range idx {
		out[i] = corpus[j]
	}
	return out
}

func distinctLabels(corpus domain.Corpus, idx []int) int {
	seen := make(map[string]struct{})
	for _, i := range idx {
		seen[corpus[i].Label] = struct{}{}
	}
	return len(seen)
}

func accuracy(corpus domain.Corpus, testIdx []int, predicted []string) float64 {
	if len(testIdx) == 0 {
		return 0
	}
	correct := 0
	for i, idx := range testIdx {
		if corpus[idx].Label == predicted[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(testIdx))
}

// perLabelMetrics computes precision, recall and F1 for every corpus label.
// A metric with a zero denominator is left nil.
func perLabelMetrics(corpus domain.Corpus, testIdx []int, predicted []string) map[string]domain.LabelMetrics {
	tp := make(map[string]int)
	fp := make(map[string]int)
	fn := make(map[string]int)
	for i, idx := range testIdx {
		actual, guess := corpus[idx].Label, predicted[i]
		if actual == guess {
			tp[actual]++
			continue
		}
		fp[guess]++
		fn[actual]++
	}

	out := make(map[string]domain.LabelMetrics)
	for _, label := range corpus.DistinctLabels() {
		m := domain.LabelMetrics{Support: tp[label] + fn[label]}
		m.Precision = ratio(tp[label], tp[label]+fp[label])
		m.Recall = ratio(tp[label], tp[label]+fn[label])
		if m.Precision != nil && m.Recall != nil && *m.Precision+*m.Recall > 0 {
			f1 := 2 * *m.Precision * *m.Recall / (*m.Precision + *m.Recall)
			m.F1 = &f1
		}
		out[label] = m
	}
	return out
}

func ratio(num, den int) *float64 {
	if den == 0 {
		return nil
	}
	v := float64(num) / float64(den)
	return &v
}
