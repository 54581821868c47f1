package domain

import "errors"

// Error kinds surfaced by the classifier core.
var (
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientLabels  = errors.New("need at least 2 different labels")
	ErrEvaluationParameter = errors.New("invalid evaluation parameters")
	ErrInsufficientData    = errors.New("insufficient data for evaluation")
	ErrPersistence         = errors.New("model state persistence failed")

	// ErrStateNotFound is returned by a model store that holds no saved state.
	ErrStateNotFound = errors.New("model state not found")
)
