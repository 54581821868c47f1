package domain

import (
	"sort"
	"time"
)

// TrainingExample is one labeled text submitted by the user.
// Examples are immutable once recorded; only a full reset removes them.
type TrainingExample struct {
	ID        int64     `json:"id"` // snowflake, time-sortable
	Text      string    `json:"text"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

// Corpus is the ordered set of recorded examples.
// Insertion order is preserved so refits are reproducible.
type Corpus []TrainingExample

// Len returns the number of examples.
func (c Corpus) Len() int {
	return len(c)
}

// Texts returns the example texts in corpus order.
func (c Corpus) Texts() []string {
	texts := make([]string, len(c))
	for i, ex := range c {
		texts[i] = ex.Text
	}
	return texts
}

// Labels returns the example labels in corpus order.
func (c Corpus) Labels() []string {
	labels := make([]string, len(c))
	for i, ex := range c {
		labels[i] = ex.Label
	}
	return labels
}

// LabelCounts returns how many examples carry each label.
func (c Corpus) LabelCounts() map[string]int {
	counts := make(map[string]int)
	for _, ex := range c {
		counts[ex.Label]++
	}
	return counts
}

// DistinctLabels returns the sorted set of labels present in the corpus.
func (c Corpus) DistinctLabels() []string {
	counts := c.LabelCounts()
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Clone returns a copy that shares no backing array with c.
func (c Corpus) Clone() Corpus {
	if c == nil {
		return Corpus{}
	}
	out := make(Corpus, len(c))
	copy(out, c)
	return out
}

// TrainingStage is the controller state derived from the corpus.
type TrainingStage string

const (
	StageUntrained        TrainingStage = "untrained"         // no examples
	StagePartiallyTrained TrainingStage = "partially_trained" // examples, but fewer than 2 labels
	StageTrained          TrainingStage = "trained"
)

// MinDistinctLabels is the number of labels a corpus needs before a model can be fitted.
const MinDistinctLabels = 2

// StageOf reports the training stage a corpus supports.
func StageOf(c Corpus) TrainingStage {
	switch {
	case len(c) == 0:
		return StageUntrained
	case len(c.LabelCounts()) < MinDistinctLabels:
		return StagePartiallyTrained
	default:
		return StageTrained
	}
}
