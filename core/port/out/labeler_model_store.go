package out

import (
	"context"
	"time"

	"labeler_server/core/domain"
)

// ModelStore defines the outbound port for model state persistence.
// Save must replace the stored state atomically: a reader never sees a partial write.
type ModelStore interface {
	// Load returns the saved state, or domain.ErrStateNotFound when none exists.
	Load(ctx context.Context) (*domain.ModelState, error)

	// Save durably replaces the stored state.
	Save(ctx context.Context, state *domain.ModelState) error

	// Name identifies the backend (for logging and status).
	Name() string
}

// HealthChecker is implemented by stores backed by a remote service.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// ClassifierObserver receives operational measurements from the training controller.
type ClassifierObserver interface {
	ObserveTrain(status domain.TrainStatus, examples int, duration time.Duration)
	ObserveClassify(reason domain.PredictionReason, confidence float64, duration time.Duration)
	ObserveEvaluate(accuracy float64, duration time.Duration)
	ObservePersist(store string, err error, duration time.Duration)
}
