package training

import (
	"context"
	"fmt"

	"labeler_server/core/domain"
	"labeler_server/core/service/classification"
)

// Refitter rebuilds the fitted models for a corpus.
// Implementations must not mutate the corpus.
type Refitter interface {
	Refit(ctx context.Context, corpus domain.Corpus) (*domain.VectorizerModel, *domain.LabelModel, error)
}

// FullRefitter refits the vectorizer and label model from scratch on every call.
// Training cost grows with corpus size; an incremental Refitter can replace it
// without changing the controller contract.
type FullRefitter struct {
	Vectorizer classification.VectorizerOptions
	Alpha      float64
}

// NewFullRefitter returns a refitter with the given options.
func NewFullRefitter(opts classification.VectorizerOptions, alpha float64) *FullRefitter {
	return &FullRefitter{Vectorizer: opts, Alpha: alpha}
}

func (r *FullRefitter) Refit(ctx context.Context, corpus domain.Corpus) (*domain.VectorizerModel, *domain.LabelModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	texts := corpus.Texts()
	vec := classification.FitVectorizer(texts, r.Vectorizer)
	vectors := classification.TransformAll(texts, vec)

	lm, err := classification.FitLabelModel(vectors, corpus.Labels(), vec.Features(), r.Alpha)
	if err != nil {
		return nil, nil, fmt.Errorf("refit on %d examples: %w", corpus.Len(), err)
	}
	return vec, lm, nil
}
