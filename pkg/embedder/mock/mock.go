// Package mock provides a deterministic in-process embedding provider for
// tests and offline development.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// Mock implements embedder.Provider without network access. Unless a canned
// response is registered for a text, it derives a deterministic unit vector
// from an FNV hash of the text, so identical inputs always embed identically.
type Mock struct {
	mu         sync.Mutex
	dimensions int
	responses  map[string][]float64
	err        error
	calls      int
}

// New creates a mock provider emitting vectors of the given dimension.
func New(dimensions int) *Mock {
	return &Mock{
		dimensions: dimensions,
		responses:  make(map[string][]float64),
	}
}

// SetResponse registers a canned embedding for a specific text.
func (m *Mock) SetResponse(text string, embedding []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[text] = embedding
}

// SetError makes every subsequent call fail with err. Pass nil to clear.
func (m *Mock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls reports how many embedding calls were made, counting each text in a
// batch separately.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Embed returns the canned or derived embedding for text.
func (m *Mock) Embed(ctx context.Context, text string) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	if canned, ok := m.responses[text]; ok {
		out := make([]float64, len(canned))
		copy(out, canned)
		return out, nil
	}

	return m.derive(text), nil
}

// EmbedBatch embeds each text independently, preserving order.
func (m *Mock) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the configured vector dimension.
func (m *Mock) Dimensions() int {
	return m.dimensions
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

// derive builds a unit vector seeded by the FNV-1a hash of the text. Caller
// holds the lock.
func (m *Mock) derive(text string) []float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float64, m.dimensions)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float64(int64(seed)) / float64(math.MaxInt64)
		norm += vec[i] * vec[i]
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}

	return vec
}
