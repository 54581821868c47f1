package domain

// TrainStatus is the outcome of submitting an example.
type TrainStatus string

const (
	TrainStatusSuccess TrainStatus = "success" // example recorded and model refit
	TrainStatusPartial TrainStatus = "partial" // example recorded, not enough labels to fit
)

// TrainResult is returned by SubmitExample.
type TrainResult struct {
	Status       TrainStatus    `json:"status"`
	IsTrained    bool           `json:"is_trained"`
	Stage        TrainingStage  `json:"stage"`
	ExampleID    int64          `json:"example_id"`
	ExampleCount int            `json:"example_count"`
	LabelCounts  map[string]int `json:"label_counts"`
	Message      string         `json:"message,omitempty"`
}

// PredictionReason explains why a prediction carries no label.
type PredictionReason string

const (
	ReasonAccepted           PredictionReason = "accepted"
	ReasonLiveness           PredictionReason = "liveness"
	ReasonInsufficientLabels PredictionReason = "insufficient_labels"
	ReasonTextTooShort       PredictionReason = "text_too_short"
	ReasonNoKnownTerms       PredictionReason = "no_known_terms"
	ReasonLowConfidence      PredictionReason = "low_confidence"
)

// Prediction is the result of Classify.
// Label is empty when no confident prediction exists; Confidence is still reported.
type Prediction struct {
	Label       string             `json:"label,omitempty"`
	Confidence  float64            `json:"confidence"`
	Accepted    bool               `json:"accepted"`
	Reason      PredictionReason   `json:"reason"`
	Message     string             `json:"message,omitempty"`
	Candidate   string             `json:"candidate,omitempty"` // top label before the threshold gate
	RawScore    float64            `json:"raw_score,omitempty"`
	Penalties   []string           `json:"penalties,omitempty"`
	Probability map[string]float64 `json:"probability,omitempty"`
}

// Status summarizes the controller state for reporting.
type Status struct {
	Stage          TrainingStage  `json:"stage"`
	IsTrained      bool           `json:"is_trained"`
	ExampleCount   int            `json:"example_count"`
	LabelCounts    map[string]int `json:"label_counts"`
	VocabularySize int            `json:"vocabulary_size"`
	Settings       Settings       `json:"settings"`
	Store          string         `json:"store"`
}

// LabelMetrics holds per-label held-out metrics.
// A metric whose denominator is zero is left nil instead of failing the report.
type LabelMetrics struct {
	Precision *float64 `json:"precision,omitempty"`
	Recall    *float64 `json:"recall,omitempty"`
	F1        *float64 `json:"f1,omitempty"`
	Support   int      `json:"support"`
}

// EvaluationReport is returned by EvaluateAccuracy.
type EvaluationReport struct {
	TestFraction   float64                 `json:"test_fraction"`
	FoldCount      int                     `json:"fold_count"`
	TrainSize      int                     `json:"train_size"`
	TestSize       int                     `json:"test_size"`
	TestAccuracy   float64                 `json:"test_accuracy"`
	CrossValScores []float64               `json:"cross_val_scores"`
	CrossValMean   float64                 `json:"cross_val_mean"`
	CrossValStd    float64                 `json:"cross_val_std"`
	SkippedFolds   int                     `json:"skipped_folds,omitempty"`
	LabelCounts    map[string]int          `json:"label_counts"`
	PerLabel       map[string]LabelMetrics `json:"per_label"`
}
