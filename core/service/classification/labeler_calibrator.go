package classification

import (
	"math"
	"sort"

	"labeler_server/core/domain"
)

// Penalty names reported in Calibration.Penalties.
const (
	PenaltyMargin    = "margin"
	PenaltyDominance = "dominance"
	PenaltyShortText = "short_text"
)

// CalibratorConfig holds the confidence adjustment constants.
type CalibratorConfig struct {
	MinTextLength int // texts shorter than this are rejected outright

	MarginThreshold float64 // top-second gap below which the margin penalty applies
	MarginFactor    float64

	DominanceThreshold float64 // training share above which the top label is penalized

	ShortTextLength int // texts shorter than this are scaled by length/ShortTextLength
}

// DefaultCalibratorConfig returns the production constants.
func DefaultCalibratorConfig() CalibratorConfig {
	return CalibratorConfig{
		MinTextLength:      domain.DefaultMinTextLength,
		MarginThreshold:    0.3,
		MarginFactor:       0.7,
		DominanceThreshold: 0.5,
		ShortTextLength:    20,
	}
}

// CalibrationInput is everything the calibrator looks at.
type CalibrationInput struct {
	Distribution map[string]float64
	LabelCounts  map[string]int // training examples per label
	TextLength   int            // rune length of the trimmed text
	ZeroVector   bool
}

// Calibration is the adjusted score for the most probable label.
// A rejected input has an empty Label, zero Confidence and a Reason.
type Calibration struct {
	Label          string
	Confidence     float64
	RawProbability float64
	Penalties      []string
	Reason         domain.PredictionReason
}

// Calibrator discounts raw posteriors that are likely overconfident.
type Calibrator struct {
	cfg CalibratorConfig
}

func NewCalibrator(cfg CalibratorConfig) *Calibrator {
	return &Calibrator{cfg: cfg}
}

// Adjust turns a label distribution into a calibrated confidence.
func (c *Calibrator) Adjust(in CalibrationInput) Calibration {
	if in.TextLength < c.cfg.MinTextLength {
		return Calibration{Reason: domain.ReasonTextTooShort}
	}
	if in.ZeroVector || len(in.Distribution) == 0 {
		return Calibration{Reason: domain.ReasonNoKnownTerms}
	}

	top, topProb, second := rank(in.Distribution)
	out := Calibration{Label: top, RawProbability: topProb}
	score := topProb

	if len(in.Distribution) >= 2 && topProb-second < c.cfg.MarginThreshold {
		score *= c.cfg.MarginFactor
		out.Penalties = append(out.Penalties, PenaltyMargin)
	}

	var total int
	for _, n := range in.LabelCounts {
		total += n
	}
	if total > 0 {
		freq := float64(in.LabelCounts[top]) / float64(total)
		if freq > c.cfg.DominanceThreshold {
			score *= c.cfg.DominanceThreshold / freq
			out.Penalties = append(out.Penalties, PenaltyDominance)
		}
	}

	if c.cfg.ShortTextLength > 0 && in.TextLength < c.cfg.ShortTextLength {
		score *= float64(in.TextLength) / float64(c.cfg.ShortTextLength)
		out.Penalties = append(out.Penalties, PenaltyShortText)
	}

	out.Confidence = math.Min(1, math.Max(0, score))
	return out
}

// rank returns the argmax label, its probability and the runner-up probability.
// Ties go to the lexicographically smallest label.
func rank(dist map[string]float64) (string, float64, float64) {
	labels := make([]string, 0, len(dist))
	for l := range dist {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	top, topProb, second := "", math.Inf(-1), 0.0
	for _, l := range labels {
		p := dist[l]
		if p > topProb {
			if top != "" {
				second = topProb
			}
			top, topProb = l, p
		} else if p > second {
			second = p
		}
	}
	return top, topProb, second
}
