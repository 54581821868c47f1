package classification

import (
	"math"
	"sort"

	"labeler_server/core/domain"
)

// SparseVector is a document vector over the fitted vocabulary.
// Indices are ascending and Values holds the weight for each index.
type SparseVector struct {
	Indices []int
	Values  []float64
}

// IsZero reports whether the vector has no non-zero weight.
func (v SparseVector) IsZero() bool {
	for _, w := range v.Values {
		if w != 0 {
			return false
		}
	}
	return true
}

// Norm returns the L2 norm of v.
func (v SparseVector) Norm() float64 {
	var sum float64
	for _, w := range v.Values {
		sum += w * w
	}
	return math.Sqrt(sum)
}

// VectorizerOptions controls vocabulary construction.
type VectorizerOptions struct {
	NGramMax    int // 1 = unigrams, 2 = unigrams + bigrams
	MinDF       int // minimum number of documents a term must appear in
	MaxFeatures int // vocabulary cap, keeps highest corpus-wide counts
}

// DefaultVectorizerOptions returns unigrams+bigrams, MinDF 2, 1000 features.
func DefaultVectorizerOptions() VectorizerOptions {
	return VectorizerOptions{NGramMax: 2, MinDF: 2, MaxFeatures: 1000}
}

type termStats struct {
	df    int
	count int
}

// FitVectorizer learns a TF-IDF vocabulary from texts.
//
// Terms seen in fewer than MinDF documents are dropped. When that leaves nothing,
// the fit falls back to MinDF 1 and records the effective value in the model.
func FitVectorizer(texts []string, opts VectorizerOptions) *domain.VectorizerModel {
	if opts.NGramMax < 1 {
		opts.NGramMax = 1
	}
	if opts.MinDF < 1 {
		opts.MinDF = 1
	}

	tok := NewTokenizer(opts.NGramMax)
	stats := make(map[string]*termStats)
	for _, text := range texts {
		seen := make(map[string]bool)
		for _, term := range tok.Terms(text) {
			st, ok := stats[term]
			if !ok {
				st = &termStats{}
				stats[term] = st
			}
			st.count++
			if !seen[term] {
				st.df++
				seen[term] = true
			}
		}
	}

	minDF := opts.MinDF
	kept := selectTerms(stats, minDF)
	if len(kept) == 0 && minDF > 1 {
		minDF = 1
		kept = selectTerms(stats, minDF)
	}

	if opts.MaxFeatures > 0 && len(kept) > opts.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			ci, cj := stats[kept[i]].count, stats[kept[j]].count
			if ci != cj {
				return ci > cj
			}
			return kept[i] < kept[j]
		})
		kept = kept[:opts.MaxFeatures]
	}
	sort.Strings(kept)

	n := float64(len(texts))
	vocab := make(map[string]int, len(kept))
	idf := make([]float64, len(kept))
	for i, term := range kept {
		vocab[term] = i
		idf[i] = math.Log((1+n)/(1+float64(stats[term].df))) + 1
	}

	return &domain.VectorizerModel{
		Vocabulary:  vocab,
		IDF:         idf,
		NGramMax:    opts.NGramMax,
		MinDF:       minDF,
		MaxFeatures: opts.MaxFeatures,
		FittedOn:    len(texts),
	}
}

func selectTerms(stats map[string]*termStats, minDF int) []string {
	kept := make([]string, 0, len(stats))
	for term, st := range stats {
		if st.df >= minDF {
			kept = append(kept, term)
		}
	}
	return kept
}

// Transform maps text to an L2-normalized TF-IDF vector. Unknown terms are ignored.
func Transform(text string, model *domain.VectorizerModel) SparseVector {
	if model == nil || len(model.Vocabulary) == 0 {
		return SparseVector{}
	}

	counts := make(map[int]int)
	for _, term := range NewTokenizer(model.NGramMax).Terms(text) {
		if idx, ok := model.Vocabulary[term]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return SparseVector{}
	}

	indices := make([]int, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	values := make([]float64, len(indices))
	var sumSq float64
	for i, idx := range indices {
		w := float64(counts[idx]) * model.IDF[idx]
		values[i] = w
		sumSq += w * w
	}
	if norm := math.Sqrt(sumSq); norm > 0 {
		for i := range values {
			values[i] /= norm
		}
	}

	return SparseVector{Indices: indices, Values: values}
}

// TransformAll maps every text with the same model.
func TransformAll(texts []string, model *domain.VectorizerModel) []SparseVector {
	out := make([]SparseVector, len(texts))
	for i, text := range texts {
		out[i] = Transform(text, model)
	}
	return out
}
