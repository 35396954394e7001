// Package memory provides a volatile in-process implementation of the entry
// store contract.
//
// Entries live in a map guarded by a read-write mutex; nothing is persisted.
// Similarity search is always exact: it scores every embedded entry in scope
// and keeps the top results. Suitable for tests, examples, and single-process
// deployments that do not need durability.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mnemo-ai/mnemo-go/pkg/store"
)

// Store implements store.EntryStore over an in-process map.
type Store struct {
	mu         sync.RWMutex
	entries    map[int64]*store.Entry
	dimensions int
	tuning     store.Tuning
}

// Config contains configuration for the in-memory store.
type Config struct {
	// EmbeddingDims is the embedding dimension enforced on writes and
	// queries.
	EmbeddingDims int

	// Tuning controls similarity scoring. Only the metric applies here; the
	// scan is always exhaustive.
	Tuning store.Tuning
}

// New creates an empty in-memory store.
func New(cfg *Config) *Store {
	return &Store{
		entries:    make(map[int64]*store.Entry),
		dimensions: cfg.EmbeddingDims,
		tuning:     cfg.Tuning,
	}
}

// Add inserts an entry, failing with store.ErrConflict on a duplicate id.
func (s *Store) Add(ctx context.Context, entry *store.Entry) error {
	if entry.Embedding != nil && len(entry.Embedding) != s.dimensions {
		return store.ErrDimensionMismatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.ID]; ok {
		return store.ErrConflict
	}

	s.entries[entry.ID] = entry.Clone()
	return nil
}

// Get returns the entry, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, id int64) (*store.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.entries[id].Clone(), nil
}

// Update replaces the stored entry, failing with store.ErrNotFound when the
// id is absent.
func (s *Store) Update(ctx context.Context, entry *store.Entry) error {
	if entry.Embedding != nil && len(entry.Embedding) != s.dimensions {
		return store.ErrDimensionMismatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.ID]; !ok {
		return store.ErrNotFound
	}

	s.entries[entry.ID] = entry.Clone()
	return nil
}

// Delete removes the entry. Missing ids are a no-op.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
	return nil
}

// ListByUser returns the user's entries ordered by creation time.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]*store.Entry, error) {
	return s.list(func(e *store.Entry) bool { return e.UserID == userID }, limit), nil
}

// ListByConversation returns the conversation's entries ordered by creation
// time.
func (s *Store) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*store.Entry, error) {
	return s.list(func(e *store.Entry) bool { return e.ConversationID == conversationID }, limit), nil
}

func (s *Store) list(match func(*store.Entry) bool, limit int) []*store.Entry {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.Entry
	for _, e := range s.entries {
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

// SemanticSearch scores every embedded entry in scope against the query
// vector and returns the top opts.Limit by descending similarity.
func (s *Store) SemanticSearch(ctx context.Context, embedding []float64, opts *store.SearchOptions) ([]*store.Entry, error) {
	if len(embedding) != s.dimensions {
		return nil, store.ErrDimensionMismatch
	}
	if opts == nil {
		opts = &store.SearchOptions{}
	}
	if opts.Limit <= 0 {
		return nil, nil
	}

	metric := s.tuning.MetricOrDefault()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*store.Entry
	for _, e := range s.entries {
		if e.Embedding == nil {
			continue
		}
		if opts.UserID != "" && e.UserID != opts.UserID {
			continue
		}
		if opts.ConversationID != "" && e.ConversationID != opts.ConversationID {
			continue
		}
		if !store.MatchesFilters(e, opts.Filters) {
			continue
		}

		c := e.Clone()
		c.Score = store.Similarity(metric, embedding, c.Embedding)
		if opts.MinScore <= 0 || c.Score >= opts.MinScore {
			matches = append(matches, c)
		}
	}

	return store.SortByScore(matches, opts.Limit), nil
}

// Dimensions returns the configured embedding dimension.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
