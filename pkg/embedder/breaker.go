package embedder

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// Breaker wraps a Provider with a circuit breaker so that a failing embedding
// backend sheds load fast instead of timing out on every call. While the
// circuit is open, calls fail immediately with gobreaker.ErrOpenState.
type Breaker struct {
	provider Provider
	cb       *gobreaker.CircuitBreaker
}

// NewBreaker wraps provider with default breaker settings: the circuit opens
// after 3 consecutive failures, stays open for 30 seconds, and allows 2
// probe requests while half-open.
func NewBreaker(provider Provider) *Breaker {
	settings := gobreaker.Settings{
		Name:        "embedder",
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}

	return &Breaker{
		provider: provider,
		cb:       gobreaker.NewCircuitBreaker(settings),
	}
}

// Embed delegates to the wrapped provider through the breaker.
func (b *Breaker) Embed(ctx context.Context, text string) ([]float64, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.provider.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return result.([]float64), nil
}

// EmbedBatch delegates to the wrapped provider through the breaker.
func (b *Breaker) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.provider.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return result.([][]float64), nil
}

// Dimensions returns the wrapped provider's dimension.
func (b *Breaker) Dimensions() int {
	return b.provider.Dimensions()
}

// Close closes the wrapped provider.
func (b *Breaker) Close() error {
	return b.provider.Close()
}
