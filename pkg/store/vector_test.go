package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 0}, []float64{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)

	// Mismatched lengths and zero vectors score 0.
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 0}))
}

func TestEuclideanDistance(t *testing.T) {
	assert.InDelta(t, 5.0, EuclideanDistance([]float64{0, 0}, []float64{3, 4}), 1e-9)
	assert.Equal(t, 0.0, EuclideanDistance([]float64{1, 2}, []float64{1, 2}))
	assert.True(t, math.IsInf(EuclideanDistance([]float64{1}, []float64{1, 2}), 1))
}

func TestDotProduct(t *testing.T) {
	assert.InDelta(t, 11.0, DotProduct([]float64{1, 2}, []float64{3, 4}), 1e-9)
	assert.Equal(t, 0.0, DotProduct([]float64{1}, []float64{1, 2}))
}

func TestSimilarityNormalization(t *testing.T) {
	a := []float64{1, 0}

	// Identical vectors are maximally similar under every metric.
	assert.InDelta(t, 1.0, Similarity(MetricCosine, a, a), 1e-9)
	assert.InDelta(t, 1.0, Similarity(MetricL2, a, a), 1e-9)
	assert.InDelta(t, 1.0, Similarity(MetricDot, a, a), 1e-9)

	// Opposite vectors clamp to 0 under cosine rather than going negative.
	assert.Equal(t, 0.0, Similarity(MetricCosine, a, []float64{-1, 0}))

	// L2 maps distance onto (0,1]; farther is smaller.
	near := Similarity(MetricL2, a, []float64{1, 0.1})
	far := Similarity(MetricL2, a, []float64{1, 5})
	assert.Greater(t, near, far)

	// Dot stays raw and can be negative.
	assert.InDelta(t, -1.0, Similarity(MetricDot, a, []float64{-1, 0}), 1e-9)
}

func TestSortByScore(t *testing.T) {
	entries := []*Entry{
		{ID: 3, Score: 0.5},
		{ID: 1, Score: 0.9},
		{ID: 2, Score: 0.5},
	}

	sorted := SortByScore(entries, 0)
	require.Len(t, sorted, 3)
	assert.Equal(t, int64(1), sorted[0].ID)
	// Equal scores break ties by ascending id.
	assert.Equal(t, int64(2), sorted[1].ID)
	assert.Equal(t, int64(3), sorted[2].ID)

	truncated := SortByScore(entries, 2)
	assert.Len(t, truncated, 2)
}

func TestRefine(t *testing.T) {
	query := []float64{1, 0}
	candidates := []*Entry{
		{ID: 1, Embedding: []float64{0, 1}, Score: 0.99}, // stale score from an approximate index
		{ID: 2, Embedding: []float64{1, 0}, Score: 0.01},
		{ID: 3, Embedding: nil, Score: 0.5},
	}

	refined := Refine(MetricCosine, query, candidates, 0)
	require.Len(t, refined, 2, "candidates without embeddings are dropped")
	assert.Equal(t, int64(2), refined[0].ID, "exact rescore reorders")
	assert.InDelta(t, 1.0, refined[0].Score, 1e-9)
}

func TestFetchLimit(t *testing.T) {
	assert.Equal(t, 10, FetchLimit(10, 0))
	assert.Equal(t, DefaultFetchFloor, FetchLimit(10, 3), "small products hit the floor")
	assert.Equal(t, 120, FetchLimit(40, 3))
}

func TestFilterMinScore(t *testing.T) {
	entries := []*Entry{
		{ID: 1, Score: 0.9},
		{ID: 2, Score: 0.2},
		{ID: 3, Score: -0.5},
	}

	assert.Len(t, FilterMinScore(entries, 0), 3, "zero threshold keeps everything, negatives included")

	kept := FilterMinScore([]*Entry{{ID: 1, Score: 0.9}, {ID: 2, Score: 0.2}}, 0.5)
	require.Len(t, kept, 1)
	assert.Equal(t, int64(1), kept[0].ID)
}

func TestEntryClone(t *testing.T) {
	original := &Entry{
		ID:        1,
		Embedding: []float64{1, 2},
		Metadata:  map[string]interface{}{"k": "v"},
	}

	clone := original.Clone()
	clone.Embedding[0] = 99
	clone.Metadata["k"] = "changed"

	assert.Equal(t, 1.0, original.Embedding[0])
	assert.Equal(t, "v", original.Metadata["k"])

	var nilEntry *Entry
	assert.Nil(t, nilEntry.Clone())
}
