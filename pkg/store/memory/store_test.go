package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-ai/mnemo-go/pkg/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(&Config{EmbeddingDims: 3})
}

func TestAddAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := &store.Entry{
		ID:        1,
		UserID:    "u1",
		Role:      store.RoleUser,
		Content:   "hello",
		Embedding: []float64{1, 0, 0},
		CreatedAt: time.Now(),
	}

	require.NoError(t, s.Add(ctx, entry))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "u1", got.UserID)
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAddDuplicateConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := &store.Entry{ID: 1, UserID: "u1", Content: "first"}
	require.NoError(t, s.Add(ctx, entry))

	err := s.Add(ctx, &store.Entry{ID: 1, UserID: "u1", Content: "second"})
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Content, "the original entry survives")
}

func TestUpdateMissingFails(t *testing.T) {
	s := newTestStore(t)

	err := s.Update(context.Background(), &store.Entry{ID: 99, Content: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, &store.Entry{ID: 1, UserID: "u1", Content: "old"}))
	require.NoError(t, s.Update(ctx, &store.Entry{ID: 1, UserID: "u1", Content: "new"}))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Content)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, &store.Entry{ID: 1, UserID: "u1", Content: "x"}))
	require.NoError(t, s.Delete(ctx, 1))
	require.NoError(t, s.Delete(ctx, 1), "deleting a missing entry is a no-op")

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDimensionMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Add(ctx, &store.Entry{ID: 1, Embedding: []float64{1, 0}})
	assert.ErrorIs(t, err, store.ErrDimensionMismatch)

	_, err = s.SemanticSearch(ctx, []float64{1, 0}, &store.SearchOptions{Limit: 5})
	assert.ErrorIs(t, err, store.ErrDimensionMismatch)
}

func TestEmbeddinglessEntryAllowed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, &store.Entry{ID: 1, UserID: "u1", Content: "no vector"}))

	// Visible to listing.
	entries, err := s.ListByUser(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Invisible to similarity search.
	results, err := s.SemanticSearch(ctx, []float64{1, 0, 0}, &store.SearchOptions{UserID: "u1", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestListOrderingAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, s.Add(ctx, &store.Entry{
			ID:        i,
			UserID:    "u1",
			Content:   "msg",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := s.ListByUser(ctx, "u1", 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(1), entries[0].ID)
	assert.Equal(t, int64(3), entries[2].ID)
}

func TestListByConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, &store.Entry{ID: 1, UserID: "u1", ConversationID: "c1", Content: "a"}))
	require.NoError(t, s.Add(ctx, &store.Entry{ID: 2, UserID: "u1", ConversationID: "c2", Content: "b"}))

	entries, err := s.ListByConversation(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ID)
}

func TestSemanticSearchRanking(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// One-hot vectors make the expected ranking unambiguous.
	require.NoError(t, s.Add(ctx, &store.Entry{ID: 1, UserID: "u1", Content: "x axis", Embedding: []float64{1, 0, 0}}))
	require.NoError(t, s.Add(ctx, &store.Entry{ID: 2, UserID: "u1", Content: "y axis", Embedding: []float64{0, 1, 0}}))
	require.NoError(t, s.Add(ctx, &store.Entry{ID: 3, UserID: "u1", Content: "diagonal", Embedding: []float64{1, 1, 0}}))

	results, err := s.SemanticSearch(ctx, []float64{1, 0, 0}, &store.SearchOptions{UserID: "u1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, int64(3), results[1].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestSemanticSearchScopeFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, &store.Entry{ID: 1, UserID: "u1", ConversationID: "c1", Content: "a", Embedding: []float64{1, 0, 0}}))
	require.NoError(t, s.Add(ctx, &store.Entry{ID: 2, UserID: "u2", ConversationID: "c1", Content: "b", Embedding: []float64{1, 0, 0}}))

	results, err := s.SemanticSearch(ctx, []float64{1, 0, 0}, &store.SearchOptions{UserID: "u1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)

	results, err = s.SemanticSearch(ctx, []float64{1, 0, 0}, &store.SearchOptions{ConversationID: "c1", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSemanticSearchMinScore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, &store.Entry{ID: 1, UserID: "u1", Content: "close", Embedding: []float64{1, 0, 0}}))
	require.NoError(t, s.Add(ctx, &store.Entry{ID: 2, UserID: "u1", Content: "far", Embedding: []float64{0, 1, 0}}))

	results, err := s.SemanticSearch(ctx, []float64{1, 0, 0}, &store.SearchOptions{UserID: "u1", Limit: 10, MinScore: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)

	// Zero threshold keeps everything.
	results, err = s.SemanticSearch(ctx, []float64{1, 0, 0}, &store.SearchOptions{UserID: "u1", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSemanticSearchMetadataFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, &store.Entry{
		ID: 1, UserID: "u1", Content: "tagged", Embedding: []float64{1, 0, 0},
		Metadata: map[string]interface{}{"source": "chat"},
	}))
	require.NoError(t, s.Add(ctx, &store.Entry{
		ID: 2, UserID: "u1", Content: "untagged", Embedding: []float64{1, 0, 0},
	}))

	results, err := s.SemanticSearch(ctx, []float64{1, 0, 0}, &store.SearchOptions{
		UserID:  "u1",
		Limit:   10,
		Filters: map[string]interface{}{"source": "chat"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
}

func TestSemanticSearchEmptyStore(t *testing.T) {
	s := newTestStore(t)

	results, err := s.SemanticSearch(context.Background(), []float64{1, 0, 0}, &store.SearchOptions{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCallerCannotMutateStoredState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := &store.Entry{ID: 1, UserID: "u1", Content: "x", Embedding: []float64{1, 0, 0}}
	require.NoError(t, s.Add(ctx, entry))

	entry.Embedding[0] = 99

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Embedding[0])

	got.Content = "mutated"
	again, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "x", again.Content)
}
