package core

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-ai/mnemo-go/pkg/embedder/mock"
	"github.com/mnemo-ai/mnemo-go/pkg/prompt"
	memstore "github.com/mnemo-ai/mnemo-go/pkg/store/memory"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(&Config{
		Embedder: EmbedderConfig{Provider: "mock", Dimensions: 8},
		Store:    StoreConfig{Backend: "memory"},
		Retrieval: RetrievalConfig{
			RecentLimit:   10,
			SemanticLimit: 5,
			TokenBudget:   2048,
			Metric:        "cosine",
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestRememberAndGet(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	entry, err := c.Remember(ctx, "u1", "I like dry rieslings",
		WithConversation("c1"),
		WithMetadata(map[string]interface{}{"source": "test"}),
	)
	require.NoError(t, err)
	assert.NotZero(t, entry.ID, "ids are assigned by the client")
	assert.Equal(t, RoleUser, entry.Role)
	assert.Len(t, entry.Embedding, 8)
	assert.Greater(t, entry.TokenCount, 0)

	got, err := c.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "I like dry rieslings", got.Content)
	assert.Equal(t, "test", got.Metadata["source"])
}

func TestRememberValidation(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Remember(ctx, "", "content")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = c.Remember(ctx, "u1", "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetMissingReturnsNil(t *testing.T) {
	c := newTestClient(t)

	got, err := c.Get(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSearch(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Remember(ctx, "u1", "I like dry rieslings")
	require.NoError(t, err)
	_, err = c.Remember(ctx, "u1", "the weather is cloudy today")
	require.NoError(t, err)

	// The mock embedder is deterministic, so the same text ranks first.
	result, err := c.Search(ctx, "u1", "I like dry rieslings", WithLimit(2))
	require.NoError(t, err)
	require.NotEmpty(t, result.Entries)
	assert.Equal(t, "I like dry rieslings", result.Entries[0].Content)
	assert.InDelta(t, 1.0, result.Entries[0].Score, 1e-9)

	// Blank queries return empty results without error.
	empty, err := c.Search(ctx, "u1", "  ")
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)
}

func TestUpdateAndDelete(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	entry, err := c.Remember(ctx, "u1", "original")
	require.NoError(t, err)

	entry.Content = "revised"
	updated, err := c.Update(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, "revised", updated.Content)
	assert.Len(t, updated.Embedding, 8, "changed content is re-embedded")

	missing := &Entry{ID: 424242, UserID: "u1", Content: "x"}
	_, err = c.Update(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Delete(ctx, entry.ID))
	require.NoError(t, c.Delete(ctx, entry.ID), "idempotent")

	got, err := c.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListScopes(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Remember(ctx, "u1", "in conv", WithConversation("c1"))
	require.NoError(t, err)
	_, err = c.Remember(ctx, "u1", "outside conv")
	require.NoError(t, err)

	byUser, err := c.ListByUser(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byConv, err := c.ListByConversation(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, byConv, 1)
	assert.Equal(t, "in conv", byConv[0].Content)
}

func TestBuildContextAndPrompt(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Remember(ctx, "u1", "I love bold red wines", WithConversation("c1"))
	require.NoError(t, err)
	_, err = c.Remember(ctx, "u1", "Noted, malbec it is",
		WithConversation("c1"), WithRole(RoleAssistant))
	require.NoError(t, err)

	pc, err := c.BuildContext(ctx, "u1",
		WithConversationForBuild("c1"),
		WithQuery("I love bold red wines"),
	)
	require.NoError(t, err)
	assert.NotEmpty(t, pc.RecentLines)
	assert.NotEmpty(t, pc.SemanticLines)
	assert.Equal(t, "I love bold red wines", pc.Preferences)
	assert.Greater(t, pc.TotalTokens, 0)

	messages, err := c.Prompt(ctx, "u1", "what wine did I say I liked?",
		WithConversationForBuild("c1"))
	require.NoError(t, err)
	require.NotEmpty(t, messages)
	last := messages[len(messages)-1]
	assert.Equal(t, "user", last.Role)
	assert.Contains(t, last.Content, "what wine did I say I liked?")
}

func TestRememberSurvivesEmbedderOutage(t *testing.T) {
	ctx := context.Background()

	m := mock.New(8)
	m.SetError(errors.New("provider down"))

	st := memstore.New(&memstore.Config{EmbeddingDims: 8})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	client := &Client{
		config:   &Config{},
		store:    st,
		embedder: m,
		builder:  prompt.NewBuilder(nil),
		node:     node,
		counter:  prompt.HeuristicCounter{},
	}

	entry, err := client.Remember(ctx, "u1", "stored either way")
	require.NoError(t, err, "an embedder outage degrades, it does not fail the write")
	assert.Nil(t, entry.Embedding)

	all, err := client.ListByUser(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, entry.ID, all[0].ID)

	// Invisible to similarity search until re-embedded.
	m.SetError(nil)
	result, err := client.Search(ctx, "u1", "stored either way")
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
}

func TestConvertRoundTrip(t *testing.T) {
	original := &Entry{
		ID:             7,
		UserID:         "u1",
		ConversationID: "c1",
		Role:           RoleAssistant,
		Content:        "hi",
		Embedding:      []float64{1, 2},
		Metadata:       map[string]interface{}{"k": "v"},
		TokenCount:     3,
		Importance:     0.5,
		Score:          0.9,
	}

	back := fromStoreEntry(toStoreEntry(original))
	assert.Equal(t, original, back)
}

func TestNewClientRejectsBadConfig(t *testing.T) {
	_, err := NewClient(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewClient(&Config{
		Embedder: EmbedderConfig{Provider: "mock", Dimensions: 8},
		Store:    StoreConfig{Backend: "redis"},
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewClient(&Config{
		Embedder: EmbedderConfig{Provider: "carrier-pigeon", Dimensions: 8},
		Store:    StoreConfig{Backend: "memory"},
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
