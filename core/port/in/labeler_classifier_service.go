package in

import (
	"context"

	"labeler_server/core/domain"
)

// ClassifierService is the inbound port of the training controller.
type ClassifierService interface {
	// SubmitExample records a labeled example and refits when enough labels exist.
	SubmitExample(ctx context.Context, text, label string) (*domain.TrainResult, error)

	// Classify predicts a label. strictTest answers a liveness probe without touching state.
	Classify(ctx context.Context, text string, strictTest bool) (*domain.Prediction, error)

	// Reset discards all examples and models. Settings are kept.
	Reset(ctx context.Context) error

	// EvaluateAccuracy reports held-out and cross-validated accuracy of the current corpus.
	EvaluateAccuracy(ctx context.Context, testFraction float64, folds int) (*domain.EvaluationReport, error)

	Status(ctx context.Context) *domain.Status
	UpdateSettings(ctx context.Context, update SettingsUpdate) (*domain.Settings, error)
	Examples(ctx context.Context, limit, offset int) (*ExamplePage, error)
}

// SettingsUpdate carries the settings to change; nil fields are left as they are.
type SettingsUpdate struct {
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	MinTextLength       *int     `json:"min_text_length,omitempty"`
}

// ExamplePage is one page of the recorded corpus.
type ExamplePage struct {
	Examples []domain.TrainingExample `json:"examples"`
	Total    int                      `json:"total"`
	Limit    int                      `json:"limit"`
	Offset   int                      `json:"offset"`
}
