// Package chromem provides an embedded, pure-Go vector implementation of the
// entry store contract, built on chromem-go.
//
// chromem-go is a similarity index, not a general record store: it has no
// list-all or scan API. The client therefore keeps an authoritative in-process
// map of entries for CRUD and listing, and mirrors embedded entries into a
// chromem collection for similarity search. Both live in memory only; the
// store is volatile.
package chromem

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/mnemo-ai/mnemo-go/pkg/store"
)

var errEmbeddingFuncCalled = errors.New("entries must carry precomputed embeddings")

// Client implements store.EntryStore using chromem-go as the similarity index.
type Client struct {
	mu         sync.RWMutex
	entries    map[int64]*store.Entry
	collection *chromemgo.Collection
	dimensions int
	tuning     store.Tuning
}

// Config contains configuration for creating a chromem client.
type Config struct {
	// Collection is the chromem collection name. Defaults to "entries".
	Collection string

	// EmbeddingDims is the embedding dimension enforced on writes and
	// queries.
	EmbeddingDims int

	// Tuning controls similarity scoring.
	Tuning store.Tuning
}

// NewClient creates an in-memory chromem-backed store.
func NewClient(cfg *Config) (*Client, error) {
	name := cfg.Collection
	if name == "" {
		name = "entries"
	}

	db := chromemgo.NewDB()

	// Embeddings always arrive precomputed, so the embedding func must never
	// be called. chromem requires one anyway.
	col, err := db.CreateCollection(name, nil, func(ctx context.Context, text string) ([]float32, error) {
		return nil, store.NewBackendError("embed", errEmbeddingFuncCalled)
	})
	if err != nil {
		return nil, store.NewBackendError("NewChromemClient", err)
	}

	return &Client{
		entries:    make(map[int64]*store.Entry),
		collection: col,
		dimensions: cfg.EmbeddingDims,
		tuning:     cfg.Tuning,
	}, nil
}

// Add inserts an entry. A duplicate id fails with store.ErrConflict.
func (c *Client) Add(ctx context.Context, entry *store.Entry) error {
	if entry.Embedding != nil && len(entry.Embedding) != c.dimensions {
		return store.ErrDimensionMismatch
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[entry.ID]; exists {
		return store.ErrConflict
	}

	if entry.Embedding != nil {
		if err := c.indexLocked(ctx, entry); err != nil {
			return err
		}
	}

	c.entries[entry.ID] = entry.Clone()
	return nil
}

// Get returns the entry, or (nil, nil) when absent.
func (c *Client) Get(ctx context.Context, id int64) (*store.Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil, nil
	}

	return entry.Clone(), nil
}

// Update replaces the stored entry, failing with store.ErrNotFound when the
// id is absent. The collection document is replaced along with the map entry.
func (c *Client) Update(ctx context.Context, entry *store.Entry) error {
	if entry.Embedding != nil && len(entry.Embedding) != c.dimensions {
		return store.ErrDimensionMismatch
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	old, ok := c.entries[entry.ID]
	if !ok {
		return store.ErrNotFound
	}

	if old.Embedding != nil {
		if err := c.collection.Delete(ctx, nil, nil, docID(entry.ID)); err != nil {
			return store.NewBackendError("Update", err)
		}
	}

	if entry.Embedding != nil {
		if err := c.indexLocked(ctx, entry); err != nil {
			return err
		}
	}

	c.entries[entry.ID] = entry.Clone()
	return nil
}

// Delete removes the entry. Missing ids are a no-op.
func (c *Client) Delete(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil
	}

	if entry.Embedding != nil {
		if err := c.collection.Delete(ctx, nil, nil, docID(id)); err != nil {
			return store.NewBackendError("Delete", err)
		}
	}

	delete(c.entries, id)
	return nil
}

// ListByUser returns the user's entries ordered by creation time.
func (c *Client) ListByUser(ctx context.Context, userID string, limit int) ([]*store.Entry, error) {
	return c.list(func(e *store.Entry) bool { return e.UserID == userID }, limit), nil
}

// ListByConversation returns the conversation's entries ordered by creation
// time.
func (c *Client) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*store.Entry, error) {
	return c.list(func(e *store.Entry) bool { return e.ConversationID == conversationID }, limit), nil
}

func (c *Client) list(match func(*store.Entry) bool, limit int) []*store.Entry {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*store.Entry
	for _, e := range c.entries {
		if match(e) {
			out = append(out, e.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if len(out) > limit {
		out = out[:limit]
	}

	return out
}

// SemanticSearch queries the chromem collection. Scope filters are pushed into
// the collection's metadata where-filter. With tuning.RefineFactor set, the
// query over-fetches and re-scores candidates with the exact metric against
// the map's embeddings.
func (c *Client) SemanticSearch(ctx context.Context, embedding []float64, opts *store.SearchOptions) ([]*store.Entry, error) {
	if len(embedding) != c.dimensions {
		return nil, store.ErrDimensionMismatch
	}
	if opts == nil {
		opts = &store.SearchOptions{}
	}
	if opts.Limit <= 0 {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	fetch := opts.Limit
	if c.tuning.RefineFactor > 0 {
		fetch = opts.Limit * c.tuning.RefineFactor
	}
	if count := c.collection.Count(); fetch > count {
		fetch = count
	}
	if fetch == 0 {
		return nil, nil
	}

	where := map[string]string{}
	if opts.UserID != "" {
		where["user_id"] = opts.UserID
	}
	if opts.ConversationID != "" {
		where["conversation_id"] = opts.ConversationID
	}
	if len(where) == 0 {
		where = nil
	}

	query := toFloat32(embedding)

	// chromem rejects nResults above the count of documents matching the
	// where filter, and that count is not exposed. Retry with smaller limits.
	var results []chromemgo.Result
	for n := fetch; n >= 1; n-- {
		var err error
		results, err = c.collection.QueryEmbedding(ctx, query, n, where, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if n == 1 {
				return nil, nil
			}
			continue
		}
		return nil, store.NewBackendError("SemanticSearch", err)
	}

	var matches []*store.Entry
	for _, res := range results {
		id, err := strconv.ParseInt(res.ID, 10, 64)
		if err != nil {
			return nil, store.NewBackendError("SemanticSearch", err)
		}
		entry, ok := c.entries[id]
		if !ok {
			continue
		}
		if !store.MatchesFilters(entry, opts.Filters) {
			continue
		}
		out := entry.Clone()
		out.Score = clampScore(float64(res.Similarity))
		matches = append(matches, out)
	}

	metric := c.tuning.MetricOrDefault()
	if c.tuning.RefineFactor > 0 || metric != store.MetricCosine {
		// chromem ranks by cosine only; other metrics need an exact rescore.
		matches = store.Refine(metric, embedding, matches, opts.Limit)
	} else {
		matches = store.SortByScore(matches, opts.Limit)
	}

	return store.FilterMinScore(matches, opts.MinScore), nil
}

// Dimensions returns the configured embedding dimension.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close releases the store. The data is volatile, so this only drops the map.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[int64]*store.Entry)
	return nil
}

// indexLocked mirrors an embedded entry into the chromem collection. Caller
// holds the write lock.
func (c *Client) indexLocked(ctx context.Context, entry *store.Entry) error {
	metadata := map[string]string{}
	if entry.UserID != "" {
		metadata["user_id"] = entry.UserID
	}
	if entry.ConversationID != "" {
		metadata["conversation_id"] = entry.ConversationID
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	doc := chromemgo.Document{
		ID:        docID(entry.ID),
		Content:   entry.Content,
		Embedding: toFloat32(entry.Embedding),
		Metadata:  metadata,
	}

	if err := c.collection.AddDocument(ctx, doc); err != nil {
		return store.NewBackendError("index", err)
	}

	return nil
}

// isInsufficientDocsError reports whether err is chromem's complaint about
// nResults exceeding the matching document count.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
