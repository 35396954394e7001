package embedder

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-ai/mnemo-go/pkg/embedder/mock"
)

func TestBreakerPassesThrough(t *testing.T) {
	m := mock.New(4)
	b := NewBreaker(m)

	vec, err := b.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, 4, b.Dimensions())

	batch, err := b.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, batch, 2)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	m := mock.New(4)
	m.SetError(errors.New("provider down"))
	b := NewBreaker(m)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.Embed(ctx, "x")
		require.Error(t, err)
	}

	before := m.Calls()
	_, err := b.Embed(ctx, "x")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, before, m.Calls(), "open circuit sheds load without calling the provider")
}
