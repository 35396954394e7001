package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-ai/mnemo-go/pkg/store"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(&Config{
		DBPath:        filepath.Join(t.TempDir(), "test.db"),
		EmbeddingDims: 3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	entry := &store.Entry{
		ID:             1,
		UserID:         "u1",
		ConversationID: "c1",
		Role:           store.RoleUser,
		Content:        "hello sqlite",
		Embedding:      []float64{1, 0, 0},
		Metadata:       map[string]interface{}{"source": "test"},
		TokenCount:     3,
		Importance:     0.5,
		CreatedAt:      time.Now().UTC(),
	}

	require.NoError(t, c.Add(ctx, entry))

	got, err := c.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello sqlite", got.Content)
	assert.Equal(t, store.RoleUser, got.Role)
	assert.Equal(t, []float64{1, 0, 0}, got.Embedding)
	assert.Equal(t, "test", got.Metadata["source"])
	assert.Equal(t, 3, got.TokenCount)
}

func TestGetMissingReturnsNil(t *testing.T) {
	c := newTestClient(t)

	got, err := c.Get(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDuplicateAddConflicts(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Add(ctx, &store.Entry{ID: 1, UserID: "u1", Role: store.RoleUser, Content: "first"}))

	err := c.Add(ctx, &store.Entry{ID: 1, UserID: "u1", Role: store.RoleUser, Content: "second"})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestNonDuplicateConstraintIsNotConflict(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	// A unique index on content makes a constraint violation possible that is
	// not a duplicate id.
	_, err := c.db.ExecContext(ctx, "CREATE UNIQUE INDEX idx_unique_content ON entries(content)")
	require.NoError(t, err)

	require.NoError(t, c.Add(ctx, &store.Entry{ID: 1, UserID: "u1", Role: store.RoleUser, Content: "same"}))

	err = c.Add(ctx, &store.Entry{ID: 2, UserID: "u1", Role: store.RoleUser, Content: "same"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrConflict)

	var backendErr *store.BackendError
	assert.ErrorAs(t, err, &backendErr)
}

func TestUpdate(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Add(ctx, &store.Entry{ID: 1, UserID: "u1", Role: store.RoleUser, Content: "old"}))
	require.NoError(t, c.Update(ctx, &store.Entry{ID: 1, UserID: "u1", Role: store.RoleUser, Content: "new"}))

	got, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Content)

	err = c.Update(ctx, &store.Entry{ID: 99, UserID: "u1", Role: store.RoleUser, Content: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Add(ctx, &store.Entry{ID: 1, UserID: "u1", Role: store.RoleUser, Content: "x"}))
	require.NoError(t, c.Delete(ctx, 1))
	require.NoError(t, c.Delete(ctx, 1))
}

func TestDimensionMismatch(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	err := c.Add(ctx, &store.Entry{ID: 1, Role: store.RoleUser, Embedding: []float64{1}})
	assert.ErrorIs(t, err, store.ErrDimensionMismatch)

	_, err = c.SemanticSearch(ctx, []float64{1}, &store.SearchOptions{Limit: 5})
	assert.ErrorIs(t, err, store.ErrDimensionMismatch)
}

func TestListOrdering(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, c.Add(ctx, &store.Entry{
			ID:             i,
			UserID:         "u1",
			ConversationID: "c1",
			Role:           store.RoleUser,
			Content:        "msg",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := c.ListByUser(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].ID)
	assert.Equal(t, int64(2), entries[1].ID)

	entries, err = c.ListByConversation(ctx, "c1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestSemanticSearch(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Add(ctx, &store.Entry{ID: 1, UserID: "u1", Role: store.RoleUser, Content: "x", Embedding: []float64{1, 0, 0}}))
	require.NoError(t, c.Add(ctx, &store.Entry{ID: 2, UserID: "u1", Role: store.RoleUser, Content: "y", Embedding: []float64{0, 1, 0}}))
	require.NoError(t, c.Add(ctx, &store.Entry{ID: 3, UserID: "u2", Role: store.RoleUser, Content: "other user", Embedding: []float64{1, 0, 0}}))
	require.NoError(t, c.Add(ctx, &store.Entry{ID: 4, UserID: "u1", Role: store.RoleUser, Content: "no vector"}))

	results, err := c.SemanticSearch(ctx, []float64{1, 0, 0}, &store.SearchOptions{UserID: "u1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 2, "other users and embedding-less entries are excluded")
	assert.Equal(t, int64(1), results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)

	results, err = c.SemanticSearch(ctx, []float64{1, 0, 0}, &store.SearchOptions{UserID: "u1", Limit: 10, MinScore: 0.5})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
