package classification

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minTokenRunes is the shortest token kept by the tokenizer.
const minTokenRunes = 2

// Tokenizer turns free text into unigram and bigram terms.
// It is stateless and safe for concurrent use.
type Tokenizer struct {
	ngramMax int
	stops    stopSet
}

// NewTokenizer returns a tokenizer emitting n-grams up to ngramMax (1 or 2).
func NewTokenizer(ngramMax int) *Tokenizer {
	if ngramMax < 1 {
		ngramMax = 1
	}
	if ngramMax > 2 {
		ngramMax = 2
	}
	return &Tokenizer{ngramMax: ngramMax, stops: englishStopWords}
}

// Normalize applies NFKC compatibility folding, strips combining accents and case-folds.
func (t *Tokenizer) Normalize(text string) string {
	// transformers carry state, so the chain is built per call
	chain := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFKC)
	folded, _, err := transform.String(chain, text)
	if err != nil {
		folded = text
	}
	return cases.Fold().String(folded)
}

// Words returns the normalized tokens that survive length and stop-word filtering.
func (t *Tokenizer) Words(text string) []string {
	fields := strings.FieldsFunc(t.Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	words := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < minTokenRunes || t.stops.contains(f) {
			continue
		}
		words = append(words, f)
	}
	return words
}

// Terms returns unigrams followed by bigrams of adjacent surviving words.
func (t *Tokenizer) Terms(text string) []string {
	words := t.Words(text)
	if t.ngramMax < 2 || len(words) < 2 {
		return words
	}

	terms := make([]string, 0, 2*len(words)-1)
	terms = append(terms, words...)
	for i := 0; i+1 < len(words); i++ {
		terms = append(terms, words[i]+" "+words[i+1])
	}
	return terms
}
