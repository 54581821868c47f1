// Package training implements the training controller: it owns the model state,
// records examples, refits models, classifies text and evaluates accuracy.
package training

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"labeler_server/core/domain"
	"labeler_server/core/port/in"
	"labeler_server/core/port/out"
	"labeler_server/core/service/classification"
	"labeler_server/pkg/apperr"
	"labeler_server/pkg/logger"
)

// Liveness echo returned for strict test requests.
const LivenessMessage = "Server is running"

const (
	msgInsufficientLabels = "Need at least 2 different labels to make predictions"
	msgTextTooShort       = "Text is too short to classify"
	msgNoKnownTerms       = "Text contains no known terms"
	msgLowConfidence      = "No confident prediction"
	msgPartial            = "Example saved. Need at least 2 different labels to train"
)

// IDGenerator assigns example IDs.
type IDGenerator interface {
	Generate() (int64, error)
}

// Config holds the controller parameters.
type Config struct {
	Vectorizer classification.VectorizerOptions
	Alpha      float64
	Calibrator classification.CalibratorConfig
	Settings   domain.Settings // used when no saved state exists
	EvalSeed   int64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Vectorizer: classification.DefaultVectorizerOptions(),
		Alpha:      classification.DefaultAlpha,
		Calibrator: classification.DefaultCalibratorConfig(),
		Settings:   domain.DefaultSettings(),
		EvalSeed:   42,
	}
}

// Service implements in.ClassifierService.
//
// The committed state is never mutated: every change is applied to a clone,
// saved, and swapped in only after the save succeeds.
type Service struct {
	mu    sync.RWMutex
	state *domain.ModelState

	cfg      Config
	store    out.ModelStore
	refitter Refitter
	observer out.ClassifierObserver
	ids      IDGenerator
	now      func() time.Time

	predict func(classification.SparseVector, *domain.LabelModel) map[string]float64
}

// Option configures a Service.
type Option func(*Service)

// WithRefitter replaces the full-refit policy.
func WithRefitter(r Refitter) Option {
	return func(s *Service) { s.refitter = r }
}

// WithObserver attaches a metrics observer.
func WithObserver(o out.ClassifierObserver) Option {
	return func(s *Service) { s.observer = o }
}

// WithIDGenerator sets the example ID source.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService loads the saved state from store and returns a ready controller.
// A missing or unreadable state falls back to an empty one.
func NewService(ctx context.Context, store out.ModelStore, cfg Config, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		store:    store,
		refitter: NewFullRefitter(cfg.Vectorizer, cfg.Alpha),
		observer: nopObserver{},
		ids:      &sequentialIDs{},
		now:      time.Now,
		predict:  classification.PredictDistribution,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = s.restore(ctx)
	return s
}

var _ in.ClassifierService = (*Service)(nil)

func (s *Service) restore(ctx context.Context) *domain.ModelState {
	log := logger.WithField("store", s.store.Name())

	state, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrStateNotFound):
		log.Info("no saved model state, starting empty")
		return domain.NewModelState(s.cfg.Settings)
	case err != nil:
		log.WithError(err).Warn("failed to load model state, starting empty")
		return domain.NewModelState(s.cfg.Settings)
	}

	needsFit := !state.InSync() || (!state.IsTrained && domain.StageOf(state.Corpus) == domain.StageTrained)
	if !needsFit {
		log.WithFields(map[string]any{
			"examples": state.Corpus.Len(),
			"trained":  state.IsTrained,
		}).Info("model state loaded")
		return state
	}

	log.Warn("loaded models out of sync with corpus (%d examples), refitting", state.Corpus.Len())
	next := state.Clone()
	next.Vectorizer, next.LabelModel, next.IsTrained = nil, nil, false
	if domain.StageOf(next.Corpus) == domain.StageTrained {
		vec, lm, err := s.refitter.Refit(ctx, next.Corpus)
		if err != nil {
			log.WithError(err).Error("refit after load failed, serving untrained")
			return next
		}
		next.Vectorizer, next.LabelModel, next.IsTrained = vec, lm, true
	}
	next.UpdatedAt = s.now()
	if err := s.store.Save(ctx, next); err != nil {
		log.WithError(err).Warn("failed to save refit state, continuing in memory")
	}
	return next
}

// commit saves next and makes it the current state. Caller holds the write lock.
func (s *Service) commit(ctx context.Context, op string, next *domain.ModelState) error {
	next.UpdatedAt = s.now()

	start := time.Now()
	err := s.store.Save(ctx, next)
	s.observer.ObservePersist(s.store.Name(), err, time.Since(start))
	if err != nil {
		logger.WithContext(ctx).WithError(err).WithField("store", s.store.Name()).Error("%s: save failed, keeping previous state", op)
		return apperr.PersistenceFailed(op, err)
	}

	s.state = next
	return nil
}

// SubmitExample records a labeled example. With at least two distinct labels the
// models are refit on the whole corpus; otherwise only the corpus is saved.
func (s *Service) SubmitExample(ctx context.Context, text, label string) (*domain.TrainResult, error) {
	text, label = strings.TrimSpace(text), strings.TrimSpace(label)
	if text == "" {
		return nil, apperr.MissingField("text")
	}
	if label == "" {
		return nil, apperr.MissingField("label")
	}

	start := time.Now()
	id, err := s.ids.Generate()
	if err != nil {
		return nil, apperr.InternalWithError(fmt.Errorf("generate example id: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	next.Corpus = append(next.Corpus, domain.TrainingExample{
		ID:        id,
		Text:      text,
		Label:     label,
		CreatedAt: s.now(),
	})

	status := domain.TrainStatusPartial
	if domain.StageOf(next.Corpus) == domain.StageTrained {
		vec, lm, err := s.refitter.Refit(ctx, next.Corpus)
		if err != nil {
			return nil, apperr.InternalWithError(err)
		}
		next.Vectorizer, next.LabelModel, next.IsTrained = vec, lm, true
		status = domain.TrainStatusSuccess
	}

	if err := s.commit(ctx, "train", next); err != nil {
		return nil, err
	}

	result := &domain.TrainResult{
		Status:       status,
		IsTrained:    next.IsTrained,
		Stage:        next.Stage(),
		ExampleID:    id,
		ExampleCount: next.Corpus.Len(),
		LabelCounts:  next.Corpus.LabelCounts(),
	}
	if status == domain.TrainStatusPartial {
		result.Message = msgPartial
	}

	s.observer.ObserveTrain(status, result.ExampleCount, time.Since(start))
	logger.WithContext(ctx).WithFields(map[string]any{
		"label":    label,
		"examples": result.ExampleCount,
		"status":   string(status),
	}).WithDuration(time.Since(start)).Info("example recorded")

	return result, nil
}

// Classify predicts a label for text. The label is withheld when the calibrated
// confidence is below the threshold; the confidence is still reported.
func (s *Service) Classify(ctx context.Context, text string, strictTest bool) (*domain.Prediction, error) {
	if strictTest {
		return &domain.Prediction{Reason: domain.ReasonLiveness, Message: LivenessMessage}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	pred := s.classify(s.state, text)
	s.observer.ObserveClassify(pred.Reason, pred.Confidence, time.Since(start))
	return pred, nil
}

func (s *Service) classify(state *domain.ModelState, text string) *domain.Prediction {
	if !state.IsTrained || state.LabelModel == nil {
		return &domain.Prediction{Reason: domain.ReasonInsufficientLabels, Message: msgInsufficientLabels}
	}

	trimmed := strings.TrimSpace(text)
	calCfg := s.cfg.Calibrator
	calCfg.MinTextLength = state.Settings.MinTextLength
	cal := classification.NewCalibrator(calCfg)

	input := classification.CalibrationInput{
		LabelCounts: labelCounts(state.LabelModel),
		TextLength:  utf8.RuneCountInString(trimmed),
	}
	if input.TextLength >= calCfg.MinTextLength {
		vec := classification.Transform(trimmed, state.Vectorizer)
		input.ZeroVector = vec.IsZero()
		if !input.ZeroVector {
			input.Distribution = s.predict(vec, state.LabelModel)
		}
	}

	c := cal.Adjust(input)
	pred := &domain.Prediction{
		Confidence:  c.Confidence,
		Candidate:   c.Label,
		RawScore:    c.RawProbability,
		Penalties:   c.Penalties,
		Probability: input.Distribution,
	}

	switch {
	case c.Reason == domain.ReasonTextTooShort:
		pred.Reason, pred.Message = c.Reason, msgTextTooShort
	case c.Reason != "":
		pred.Reason, pred.Message = c.Reason, msgNoKnownTerms
	case c.Confidence >= state.Settings.ConfidenceThreshold:
		pred.Label, pred.Accepted, pred.Reason = c.Label, true, domain.ReasonAccepted
	default:
		pred.Reason, pred.Message = domain.ReasonLowConfidence, msgLowConfidence
	}
	return pred
}

// labelCounts reads per-label training counts from the fitted model,
// which matches the corpus while the state is in sync.
func labelCounts(m *domain.LabelModel) map[string]int {
	counts := make(map[string]int, len(m.Labels))
	for i, l := range m.Labels {
		counts[l] = m.ClassCounts[i]
	}
	return counts
}

// Reset discards the corpus and models and persists the empty state.
// Settings survive a reset.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := domain.NewModelState(s.state.Settings)
	if err := s.commit(ctx, "reset", next); err != nil {
		return err
	}
	logger.WithContext(ctx).Info("model state reset")
	return nil
}

// Status reports the current stage, corpus counts and settings.
func (s *Service) Status(ctx context.Context) *domain.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &domain.Status{
		Stage:          s.state.Stage(),
		IsTrained:      s.state.IsTrained,
		ExampleCount:   s.state.Corpus.Len(),
		LabelCounts:    s.state.Corpus.LabelCounts(),
		VocabularySize: s.state.Vectorizer.Features(),
		Settings:       s.state.Settings,
		Store:          s.store.Name(),
	}
}

// UpdateSettings changes the acceptance settings and persists them.
func (s *Service) UpdateSettings(ctx context.Context, update in.SettingsUpdate) (*domain.Settings, error) {
	if t := update.ConfidenceThreshold; t != nil && (*t <= 0 || *t > 1) {
		return nil, apperr.ValidationFailed("confidence_threshold must be in (0, 1]")
	}
	if m := update.MinTextLength; m != nil && *m < 0 {
		return nil, apperr.ValidationFailed("min_text_length must be >= 0")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	if update.ConfidenceThreshold != nil {
		next.Settings.ConfidenceThreshold = *update.ConfidenceThreshold
	}
	if update.MinTextLength != nil {
		next.Settings.MinTextLength = *update.MinTextLength
	}
	if err := s.commit(ctx, "update settings", next); err != nil {
		return nil, err
	}

	settings := next.Settings
	logger.WithContext(ctx).WithFields(map[string]any{
		"confidence_threshold": settings.ConfidenceThreshold,
		"min_text_length":      settings.MinTextLength,
	}).Info("settings updated")
	return &settings, nil
}

// Examples returns a page of the corpus in submission order.
func (s *Service) Examples(ctx context.Context, limit, offset int) (*in.ExamplePage, error) {
	if offset < 0 {
		return nil, apperr.ValidationFailed("offset must be >= 0")
	}
	if limit < 1 {
		return nil, apperr.ValidationFailed("limit must be >= 1")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	corpus := s.state.Corpus
	page := &in.ExamplePage{Total: corpus.Len(), Limit: limit, Offset: offset, Examples: []domain.TrainingExample{}}
	if offset >= corpus.Len() {
		return page, nil
	}
	end := min(offset+limit, corpus.Len())
	page.Examples = append(page.Examples, corpus[offset:end]...)
	return page, nil
}

// EvaluateAccuracy validates the parameters, then evaluates a snapshot of the corpus.
func (s *Service) EvaluateAccuracy(ctx context.Context, testFraction float64, folds int) (*domain.EvaluationReport, error) {
	if err := ValidateEvaluation(testFraction, folds); err != nil {
		return nil, err
	}

	s.mu.RLock()
	corpus := s.state.Corpus
	s.mu.RUnlock()

	start := time.Now()
	report, err := NewEvaluator(s.refitter, s.cfg.EvalSeed).Evaluate(ctx, corpus, testFraction, folds)
	if err != nil {
		return nil, err
	}
	s.observer.ObserveEvaluate(report.TestAccuracy, time.Since(start))
	return report, nil
}

// sequentialIDs is the fallback ID source when no generator is configured.
type sequentialIDs struct {
	mu   sync.Mutex
	last int64
}

func (g *sequentialIDs) Generate() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last++
	return g.last, nil
}

type nopObserver struct{}

func (nopObserver) ObserveTrain(domain.TrainStatus, int, time.Duration)              {}
func (nopObserver) ObserveClassify(domain.PredictionReason, float64, time.Duration) {}
func (nopObserver) ObserveEvaluate(float64, time.Duration)                          {}
func (nopObserver) ObservePersist(string, error, time.Duration)                     {}
