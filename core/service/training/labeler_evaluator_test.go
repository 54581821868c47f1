package training

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"labeler_server/core/domain"
	"labeler_server/core/service/classification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalCorpus() domain.Corpus {
	spam := []string{
		"cheap watches online discount",
		"win free money prize now",
		"discount pills cheap offer",
		"free prize claim money",
		"online casino free bonus",
		"cheap offer limited discount",
	}
	work := []string{
		"quarterly report attached review",
		"team meeting agenda tomorrow",
		"project deadline moved friday",
		"meeting notes quarterly review",
		"report draft project team",
		"agenda for project sync",
	}
	var c domain.Corpus
	for i := range spam {
		c = append(c,
			domain.TrainingExample{ID: int64(2*i + 1), Text: spam[i], Label: "spam"},
			domain.TrainingExample{ID: int64(2*i + 2), Text: work[i], Label: "work"},
		)
	}
	return c
}

func newTestEvaluator() *Evaluator {
	return NewEvaluator(NewFullRefitter(classification.DefaultVectorizerOptions(), classification.DefaultAlpha), 42)
}

func TestEvaluate_Report(t *testing.T) {
	corpus := evalCorpus()
	report, err := newTestEvaluator().Evaluate(context.Background(), corpus, 0.25, 3)
	require.NoError(t, err)

	// round(6*0.25)=2 per label
	assert.Equal(t, 8, report.TrainSize)
	assert.Equal(t, 4, report.TestSize)
	assert.GreaterOrEqual(t, report.TestAccuracy, 0.0)
	assert.LessOrEqual(t, report.TestAccuracy, 1.0)
	assert.Equal(t, map[string]int{"spam": 6, "work": 6}, report.LabelCounts)

	assert.Len(t, report.CrossValScores, 3)
	assert.Zero(t, report.SkippedFolds)
	for _, s := range report.CrossValScores {
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
	assert.GreaterOrEqual(t, report.CrossValStd, 0.0)

	require.Contains(t, report.PerLabel, "spam")
	require.Contains(t, report.PerLabel, "work")
	assert.Equal(t, report.TestSize, report.PerLabel["spam"].Support+report.PerLabel["work"].Support)
}

func TestEvaluate_Deterministic(t *testing.T) {
	corpus := evalCorpus()
	a, err := newTestEvaluator().Evaluate(context.Background(), corpus, 0.2, 4)
	require.NoError(t, err)
	b, err := newTestEvaluator().Evaluate(context.Background(), corpus, 0.2, 4)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEvaluate_Errors(t *testing.T) {
	ev := newTestEvaluator()
	ctx := context.Background()

	_, err := ev.Evaluate(ctx, evalCorpus(), 1.5, 5)
	assert.ErrorIs(t, err, domain.ErrEvaluationParameter)

	single := domain.Corpus{{Text: "only one label", Label: "work"}, {Text: "still one label", Label: "work"}}
	_, err = ev.Evaluate(ctx, single, 0.2, 5)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	// every label has one example: nothing can be held out
	tiny := domain.Corpus{{Text: "cheap watches", Label: "spam"}, {Text: "team meeting", Label: "work"}}
	_, err = ev.Evaluate(ctx, tiny, 0.2, 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestEvaluate_SkipsFoldsWithoutTwoLabels(t *testing.T) {
	corpus := domain.Corpus{
		{Text: "cheap watches online", Label: "spam"},
		{Text: "cheap pills online", Label: "spam"},
		{Text: "cheap offer online", Label: "spam"},
		{Text: "team meeting notes", Label: "work"},
	}
	report, err := newTestEvaluator().Evaluate(context.Background(), corpus, 0.3, 4)
	require.NoError(t, err)

	// the fold holding the only work example trains on spam alone
	assert.Equal(t, 1, report.SkippedFolds)
	assert.Len(t, report.CrossValScores, 3)
}

func TestHoldOut_KeepsEveryLabelInTraining(t *testing.T) {
	groups := [][]int{{0, 1, 2}, {3}, {4, 5}}
	train, test := holdOut(groups, 0.9)

	// 2 of 3, 0 of 1, 1 of 2
	assert.Equal(t, []int{0, 1, 4}, test)
	assert.Equal(t, []int{2, 3, 5}, train)
}

func TestKFold_PartitionsEveryExample(t *testing.T) {
	groups := stratify(evalCorpus(), rand.New(rand.NewSource(1)))
	splits := kFold(groups, 5)
	require.Len(t, splits, 5)

	seen := make(map[int]int)
	for _, s := range splits {
		assert.Equal(t, 12, len(s.train)+len(s.test))
		for _, idx := range s.test {
			seen[idx]++
		}
	}
	assert.Len(t, seen, 12)
	for idx, n := range seen {
		assert.Equal(t, 1, n, fmt.Sprintf("example %d tested %d times", idx, n))
	}
}

func TestPerLabelMetrics_NilOnZeroDenominator(t *testing.T) {
	corpus := domain.Corpus{
		{Text: "a", Label: "spam"},
		{Text: "b", Label: "work"},
		{Text: "c", Label: "news"},
	}
	// news is never predicted and never in the test set
	metrics := perLabelMetrics(corpus, []int{0, 1}, []string{"spam", "spam"})

	spam := metrics["spam"]
	require.NotNil(t, spam.Precision)
	assert.InDelta(t, 0.5, *spam.Precision, 1e-12)
	require.NotNil(t, spam.Recall)
	assert.InDelta(t, 1.0, *spam.Recall, 1e-12)
	require.NotNil(t, spam.F1)
	assert.InDelta(t, 2*0.5/1.5, *spam.F1, 1e-12)

	work := metrics["work"]
	assert.Nil(t, work.Precision)
	require.NotNil(t, work.Recall)
	assert.Zero(t, *work.Recall)
	assert.Nil(t, work.F1)
	assert.Equal(t, 1, work.Support)

	news := metrics["news"]
	assert.Nil(t, news.Precision)
	assert.Nil(t, news.Recall)
	assert.Nil(t, news.F1)
	assert.Zero(t, news.Support)
}
