package store

import (
	"math"
	"sort"
)

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or a zero vector yield 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// EuclideanDistance computes the L2 distance between two vectors.
// Mismatched lengths yield +Inf so such pairs always rank last.
func EuclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}

	return math.Sqrt(sum)
}

// DotProduct computes the inner product of two vectors. Mismatched lengths
// yield 0.
func DotProduct(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}

	return dot
}

// Similarity scores two vectors under the given metric, normalized so that
// higher always means more similar:
//
//   - cosine: clamp(1-d, 0, 1) for cosine distance d in [0,2]
//   - l2:     1/(1+d), mapping [0,inf) onto (0,1]
//   - dot:    the raw inner product (unbounded)
func Similarity(m Metric, a, b []float64) float64 {
	switch m {
	case MetricL2:
		return 1 / (1 + EuclideanDistance(a, b))
	case MetricDot:
		return DotProduct(a, b)
	default:
		return NormalizeCosineDistance(1 - CosineSimilarity(a, b))
	}
}

// NormalizeCosineDistance converts a cosine distance d in [0,2] into a
// similarity score clamped to [0,1].
func NormalizeCosineDistance(d float64) float64 {
	return clamp01(1 - d)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SortByScore orders entries by descending score (ties broken by ascending
// id for determinism) and truncates to limit. A non-positive limit keeps
// everything.
func SortByScore(entries []*Entry, limit int) []*Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].ID < entries[j].ID
	})

	if limit > 0 && len(entries) > limit {
		return entries[:limit]
	}

	return entries
}

// Refine re-scores candidates with the exact metric against the query vector
// and truncates to limit. Backends use it after over-fetching from an
// approximate index, correcting for the index's internal scoring shortcuts.
// Candidates without an embedding are dropped.
func Refine(m Metric, query []float64, candidates []*Entry, limit int) []*Entry {
	refined := candidates[:0]
	for _, e := range candidates {
		if e.Embedding == nil {
			continue
		}
		e.Score = Similarity(m, query, e.Embedding)
		refined = append(refined, e)
	}

	return SortByScore(refined, limit)
}

// FetchLimit computes the raw candidate count to over-fetch when scope
// filters must be applied after the index scan. With a positive multiplier it
// returns max(limit*multiplier, DefaultFetchFloor); otherwise limit.
func FetchLimit(limit, multiplier int) int {
	if multiplier <= 0 {
		return limit
	}
	n := limit * multiplier
	if n < DefaultFetchFloor {
		n = DefaultFetchFloor
	}
	return n
}

// MatchesFilters reports whether the entry's metadata satisfies every
// equality filter. Nil or empty filters match everything; a missing key never
// matches.
func MatchesFilters(e *Entry, filters map[string]interface{}) bool {
	if len(filters) == 0 {
		return true
	}
	if e.Metadata == nil {
		return false
	}
	for k, want := range filters {
		got, ok := e.Metadata[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// FilterMinScore drops entries scoring below min. With min <= 0 it returns
// the input unchanged.
func FilterMinScore(entries []*Entry, min float64) []*Entry {
	if min <= 0 {
		return entries
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.Score >= min {
			kept = append(kept, e)
		}
	}
	return kept
}
