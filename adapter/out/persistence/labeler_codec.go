// Package persistence provides model store adapters implementing out.ModelStore.
package persistence

import (
	"errors"
	"fmt"
	"time"

	"labeler_server/core/domain"

	"github.com/goccy/go-json"
)

// ErrCorruptState is returned when a stored document cannot be trusted.
var ErrCorruptState = errors.New("corrupt model state")

// stateDocument is the persisted layout. Settings are pointers so that documents
// written before a setting existed decode with the configured default.
type stateDocument struct {
	Version             int                     `json:"version"`
	Corpus              domain.Corpus           `json:"corpus"`
	Vectorizer          *domain.VectorizerModel `json:"vectorizer,omitempty"`
	LabelModel          *domain.LabelModel      `json:"label_model,omitempty"`
	IsTrained           bool                    `json:"is_trained"`
	ConfidenceThreshold *float64                `json:"confidence_threshold,omitempty"`
	MinTextLength       *int                    `json:"min_text_length,omitempty"`
	UpdatedAt           time.Time               `json:"updated_at"`
}

// Codec encodes model state as versioned JSON.
type Codec struct {
	defaults domain.Settings
}

// NewCodec returns a codec filling missing settings from defaults.
func NewCodec(defaults domain.Settings) *Codec {
	return &Codec{defaults: defaults}
}

// Encode serializes state.
func (c *Codec) Encode(state *domain.ModelState) ([]byte, error) {
	if state == nil {
		return nil, errors.New("encode: nil model state")
	}
	threshold := state.Settings.ConfidenceThreshold
	minLen := state.Settings.MinTextLength
	doc := stateDocument{
		Version:             domain.ModelStateVersion,
		Corpus:              state.Corpus,
		Vectorizer:          state.Vectorizer,
		LabelModel:          state.LabelModel,
		IsTrained:           state.IsTrained,
		ConfidenceThreshold: &threshold,
		MinTextLength:       &minLen,
		UpdatedAt:           state.UpdatedAt,
	}
	if doc.Corpus == nil {
		doc.Corpus = domain.Corpus{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode model state: %w", err)
	}
	return data, nil
}

// Decode parses and validates a stored document.
func (c *Codec) Decode(data []byte) (*domain.ModelState, error) {
	var doc stateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	switch {
	case doc.Version < 1:
		return nil, fmt.Errorf("%w: missing version", ErrCorruptState)
	case doc.Version > domain.ModelStateVersion:
		return nil, fmt.Errorf("%w: version %d is newer than supported %d", ErrCorruptState, doc.Version, domain.ModelStateVersion)
	}

	state := &domain.ModelState{
		Version:    doc.Version,
		Corpus:     doc.Corpus,
		Vectorizer: doc.Vectorizer,
		LabelModel: doc.LabelModel,
		IsTrained:  doc.IsTrained,
		Settings:   c.defaults,
		UpdatedAt:  doc.UpdatedAt,
	}
	if state.Corpus == nil {
		state.Corpus = domain.Corpus{}
	}
	if doc.ConfidenceThreshold != nil {
		state.Settings.ConfidenceThreshold = *doc.ConfidenceThreshold
	}
	if doc.MinTextLength != nil {
		state.Settings.MinTextLength = *doc.MinTextLength
	}

	if err := validate(state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return state, nil
}

func validate(s *domain.ModelState) error {
	for i, ex := range s.Corpus {
		if ex.Text == "" || ex.Label == "" {
			return fmt.Errorf("example %d has empty text or label", i)
		}
	}
	if t := s.Settings.ConfidenceThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("confidence threshold %v out of range", t)
	}
	if s.Settings.MinTextLength < 0 {
		return fmt.Errorf("negative min text length %d", s.Settings.MinTextLength)
	}
	if !s.IsTrained {
		return nil
	}

	v, m := s.Vectorizer, s.LabelModel
	if v == nil || m == nil {
		return errors.New("trained state without fitted models")
	}
	if len(v.Vocabulary) != len(v.IDF) {
		return fmt.Errorf("vocabulary has %d terms but %d idf weights", len(v.Vocabulary), len(v.IDF))
	}
	for term, idx := range v.Vocabulary {
		if idx < 0 || idx >= len(v.IDF) {
			return fmt.Errorf("term %q has index %d out of range", term, idx)
		}
	}
	n := len(m.Labels)
	if n < domain.MinDistinctLabels || len(m.ClassCounts) != n || len(m.LogPriors) != n || len(m.FeatureLogProb) != n {
		return fmt.Errorf("label model dimensions disagree for %d labels", n)
	}
	for i, row := range m.FeatureLogProb {
		if len(row) != len(v.IDF) {
			return fmt.Errorf("label %q has %d feature weights, vocabulary has %d", m.Labels[i], len(row), len(v.IDF))
		}
	}
	return nil
}
