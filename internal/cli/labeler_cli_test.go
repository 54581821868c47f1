package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"labeler_server/core/domain"
	"labeler_server/core/port/in"
	"labeler_server/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	examples []trainRecord
	resets   int
	lastEval [2]float64
}

func (f *fakeService) SubmitExample(_ context.Context, text, label string) (*domain.TrainResult, error) {
	if text == "" || label == "" {
		return nil, apperr.MissingField("text")
	}
	f.examples = append(f.examples, trainRecord{Text: text, Label: label})
	return &domain.TrainResult{Status: domain.TrainStatusPartial, ExampleCount: len(f.examples)}, nil
}

func (f *fakeService) Classify(_ context.Context, text string, strict bool) (*domain.Prediction, error) {
	return &domain.Prediction{Label: "spam", Confidence: 0.9, Accepted: true, Reason: domain.ReasonAccepted}, nil
}

func (f *fakeService) Reset(context.Context) error {
	f.resets++
	return nil
}

func (f *fakeService) EvaluateAccuracy(_ context.Context, fraction float64, folds int) (*domain.EvaluationReport, error) {
	f.lastEval = [2]float64{fraction, float64(folds)}
	return &domain.EvaluationReport{TestFraction: fraction, FoldCount: folds}, nil
}

func (f *fakeService) Status(context.Context) *domain.Status {
	return &domain.Status{ExampleCount: len(f.examples)}
}

func (f *fakeService) UpdateSettings(context.Context, in.SettingsUpdate) (*domain.Settings, error) {
	s := domain.DefaultSettings()
	return &s, nil
}

func (f *fakeService) Examples(context.Context, int, int) (*in.ExamplePage, error) {
	return &in.ExamplePage{}, nil
}

func run(t *testing.T, svc *fakeService, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	closed := 0
	open := func(context.Context) (in.ClassifierService, func(), error) {
		return svc, func() { closed++ }, nil
	}
	cmd := NewRootCmd(open, &out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		assert.Equal(t, 1, closed, "service must be released")
	}
	return out.String(), err
}

func TestTrainSingle(t *testing.T) {
	svc := &fakeService{}
	out, err := run(t, svc, "train", "--text", "win free money", "--label", "spam")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "partial"`)
	assert.Equal(t, []trainRecord{{Text: "win free money", Label: "spam"}}, svc.examples)
}

func TestTrainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "examples.jsonl")
	data := `{"text":"win free money","label":"spam"}

{"text":"quarterly report","label":"work"}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	svc := &fakeService{}
	out, err := run(t, svc, "train", "-f", path)
	require.NoError(t, err)
	assert.Len(t, svc.examples, 2)
	assert.Contains(t, out, `"example_count": 2`)
}

func TestTrainErrors(t *testing.T) {
	_, err := run(t, &fakeService{}, "train")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json\n"), 0o600))
	_, err = run(t, &fakeService{}, "train", "-f", path)
	assert.ErrorContains(t, err, "bad.jsonl:1")

	_, err = run(t, &fakeService{}, "train", "--text", "hello")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestClassifyEvaluateResetStatus(t *testing.T) {
	svc := &fakeService{}

	out, err := run(t, svc, "classify", "free", "money")
	require.NoError(t, err)
	assert.Contains(t, out, `"label": "spam"`)

	_, err = run(t, svc, "evaluate", "--test-fraction", "0.3", "--folds", "4")
	require.NoError(t, err)
	assert.Equal(t, [2]float64{0.3, 4}, svc.lastEval)

	out, err = run(t, svc, "reset")
	require.NoError(t, err)
	assert.Equal(t, 1, svc.resets)
	assert.Contains(t, out, "success")

	out, err = run(t, svc, "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"example_count": 0`)

	_, err = run(t, svc, "classify")
	assert.Error(t, err)
}
