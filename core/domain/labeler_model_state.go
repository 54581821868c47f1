package domain

import "time"

// ModelStateVersion is the current persisted layout version.
const ModelStateVersion = 1

// Defaults for the settings persisted alongside the model.
const (
	DefaultConfidenceThreshold = 0.85
	DefaultMinTextLength       = 5
)

// VectorizerModel is a fitted TF-IDF vocabulary.
// It is replaced wholesale on every refit, never grown in place.
type VectorizerModel struct {
	Vocabulary  map[string]int `json:"vocabulary"` // term -> feature index
	IDF         []float64      `json:"idf"`        // indexed by feature
	NGramMax    int            `json:"ngram_max"`
	MinDF       int            `json:"min_df"` // effective value used for this fit
	MaxFeatures int            `json:"max_features"`
	FittedOn    int            `json:"fitted_on"` // corpus size at fit time
}

// Features returns the vocabulary size.
func (m *VectorizerModel) Features() int {
	if m == nil {
		return 0
	}
	return len(m.IDF)
}

// LabelModel holds multinomial naive Bayes parameters fitted on TF-IDF features.
type LabelModel struct {
	Labels         []string    `json:"labels"` // sorted
	ClassCounts    []int       `json:"class_counts"`
	LogPriors      []float64   `json:"log_priors"`
	FeatureLogProb [][]float64 `json:"feature_log_prob"` // [label][feature]
	Alpha          float64     `json:"alpha"`
	FittedOn       int         `json:"fitted_on"`
}

// Settings are the externally tunable acceptance parameters.
type Settings struct {
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	MinTextLength       int     `json:"min_text_length"`
}

// DefaultSettings returns the canonical acceptance settings.
func DefaultSettings() Settings {
	return Settings{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		MinTextLength:       DefaultMinTextLength,
	}
}

// ModelState is the unit of persistence: corpus, fitted models and settings together.
type ModelState struct {
	Version    int              `json:"version"`
	Corpus     Corpus           `json:"corpus"`
	Vectorizer *VectorizerModel `json:"vectorizer,omitempty"`
	LabelModel *LabelModel      `json:"label_model,omitempty"`
	IsTrained  bool             `json:"is_trained"`
	Settings   Settings         `json:"settings"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// NewModelState returns an empty, untrained state.
func NewModelState(settings Settings) *ModelState {
	return &ModelState{
		Version:  ModelStateVersion,
		Corpus:   Corpus{},
		Settings: settings,
	}
}

// Stage reports the training stage of the state.
func (s *ModelState) Stage() TrainingStage {
	if s.IsTrained {
		return StageTrained
	}
	stage := StageOf(s.Corpus)
	if stage == StageTrained {
		// labels are present but no successful refit has happened yet
		return StagePartiallyTrained
	}
	return stage
}

// InSync reports whether the fitted models were built from the current corpus.
func (s *ModelState) InSync() bool {
	if !s.IsTrained {
		return true
	}
	if s.Vectorizer == nil || s.LabelModel == nil {
		return false
	}
	n := len(s.Corpus)
	return s.Vectorizer.FittedOn == n && s.LabelModel.FittedOn == n
}

// Clone returns a copy safe to mutate without affecting s.
// Fitted models are shared: they are immutable once built.
func (s *ModelState) Clone() *ModelState {
	out := *s
	out.Corpus = s.Corpus.Clone()
	return &out
}
