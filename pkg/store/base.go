// Package store defines the capability contract shared by all memory entry
// backends.
//
// It declares the EntryStore interface that every backend (in-memory, SQLite,
// MySQL, PostgreSQL/pgvector, chromem) must satisfy, the Entry type they
// persist, search and tuning options, and the typed errors they return.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Role identifies the speaker of a stored conversational entry.
type Role string

const (
	// RoleUser marks an entry authored by the end user.
	RoleUser Role = "user"

	// RoleAssistant marks an entry authored by the assistant.
	RoleAssistant Role = "assistant"

	// RoleSystem marks an entry injected by the application itself.
	RoleSystem Role = "system"
)

// Entry is one stored unit of conversational memory.
//
// This type is defined in the store package so backends do not depend on the
// core package. The core package mirrors it with a public Entry type.
type Entry struct {
	// ID is the unique identifier, assigned at creation and immutable.
	ID int64

	// Content is the text of the entry. Updates replace it wholesale.
	Content string

	// Embedding is the vector used for similarity search. It is nil until an
	// embedding step populates it; when present its length must equal the
	// store's configured dimension.
	Embedding []float64

	// UserID scopes the entry to a user (optional).
	UserID string

	// ConversationID scopes the entry to a conversation (optional).
	ConversationID string

	// Role records who authored the entry.
	Role Role

	// CreatedAt is the creation time.
	CreatedAt time.Time

	// TokenCount is an optional precomputed token estimate (0 = unknown).
	TokenCount int

	// Importance is an advisory 0.0-1.0 score, unused by core retrieval.
	Importance float64

	// Metadata carries additional structured information.
	Metadata map[string]interface{}

	// Score is the normalized similarity score filled in by search
	// operations (higher = more similar). Zero otherwise.
	Score float64
}

// Clone returns a deep copy of the entry. Backends that hand out entries from
// shared structures return clones so callers can never mutate stored state.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := *e
	if e.Embedding != nil {
		out.Embedding = make([]float64, len(e.Embedding))
		copy(out.Embedding, e.Embedding)
	}
	if e.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// Metric defines the distance metric for vector similarity.
type Metric string

const (
	// MetricCosine scores by cosine similarity. Default; assumes embeddings
	// are comparably normalized across writes and queries.
	MetricCosine Metric = "cosine"

	// MetricL2 scores by Euclidean distance.
	MetricL2 Metric = "l2"

	// MetricDot scores by inner product.
	MetricDot Metric = "dot"
)

// DefaultFetchFloor is the minimum raw candidate count a backend over-fetches
// when it has to post-filter a top-k result set in memory. Post-filtering a
// bare top-k can return fewer than limit rows once out-of-scope entries are
// removed.
const DefaultFetchFloor = 50

// DefaultListLimit bounds ListByUser and ListByConversation when the caller
// passes a non-positive limit, so listings never grow without bound.
const DefaultListLimit = 200

// Tuning controls how a backend executes similarity search. It is fixed at
// store construction; changing it concurrently with in-flight queries is
// undefined and must be serialized by the caller.
type Tuning struct {
	// Metric selects the distance metric. Must stay fixed for the lifetime
	// of a collection; changing it after data has been written invalidates
	// ranking consistency. Empty means MetricCosine.
	Metric Metric

	// Exact forces brute-force scoring over all candidates. Correct but O(n)
	// per query; the escape hatch and correctness oracle regardless of
	// backend scale. In-process backends are always exact.
	Exact bool

	// Breadth is the approximate-mode search breadth (hnsw.ef_search or
	// ivfflat.probes on the postgres backend). Higher improves recall at the
	// cost of latency. 0 keeps the backend default.
	Breadth int

	// RefineFactor over-fetches limit*RefineFactor raw candidates and
	// re-scores them with exact distance before truncating to limit,
	// correcting for approximation error in the index. 0 disables refining.
	RefineFactor int

	// FetchMultiplier is the over-fetch multiplier used when scope filters
	// cannot be pushed down into the index scan. The effective fetch size is
	// max(limit*FetchMultiplier, DefaultFetchFloor). 0 disables over-fetch.
	FetchMultiplier int
}

// MetricOrDefault returns the configured metric, defaulting to cosine.
func (t Tuning) MetricOrDefault() Metric {
	if t.Metric == "" {
		return MetricCosine
	}
	return t.Metric
}

// SearchOptions narrows and bounds a semantic search.
type SearchOptions struct {
	// UserID restricts results to one user when non-empty.
	UserID string

	// ConversationID restricts results to one conversation when non-empty.
	ConversationID string

	// Limit caps the number of results. Non-positive means no results.
	Limit int

	// MinScore drops results whose normalized score is below it.
	// 0 keeps everything.
	MinScore float64

	// Filters are additional metadata equality filters (backend-dependent).
	Filters map[string]interface{}
}

// IndexType names a vector index kind for backends that build one.
type IndexType string

const (
	// IndexHNSW is a navigable small world graph index.
	IndexHNSW IndexType = "hnsw"

	// IndexIVFFlat is an inverted file index over flat vectors.
	IndexIVFFlat IndexType = "ivfflat"
)

// IndexConfig describes a vector index to create on a backend that supports
// approximate search.
type IndexConfig struct {
	// Name is the index name.
	Name string

	// Type selects the index kind.
	Type IndexType

	// M is the per-node connection count (HNSW).
	M int

	// EfConstruction is the build-time search depth (HNSW).
	EfConstruction int

	// Lists is the cluster count (IVFFlat).
	Lists int
}

// EntryStore is the uniform capability contract over all backends: point
// CRUD, scoped listing, and similarity search.
//
// Implementations must be safe for concurrent readers and writers from
// independent requests. Every mutation is atomic at single-entry granularity;
// there are no multi-entry transactions.
type EntryStore interface {
	// Add inserts an entry. It fails with ErrConflict when the id already
	// exists; the insert-only policy is uniform across backends.
	Add(ctx context.Context, entry *Entry) error

	// Get returns the entry with the given id, or (nil, nil) when it does
	// not exist. Absence is not an error.
	Get(ctx context.Context, id int64) (*Entry, error)

	// Update replaces the stored entry with the same id. It fails with
	// ErrNotFound when the id is absent.
	Update(ctx context.Context, entry *Entry) error

	// Delete removes the entry. Deleting a missing id is a no-op, not an
	// error.
	Delete(ctx context.Context, id int64) error

	// ListByUser returns up to limit entries belonging to the user. A
	// non-positive limit applies DefaultListLimit.
	ListByUser(ctx context.Context, userID string, limit int) ([]*Entry, error)

	// ListByConversation returns up to limit entries belonging to the
	// conversation. A non-positive limit applies DefaultListLimit.
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]*Entry, error)

	// SemanticSearch returns at most opts.Limit entries ranked by descending
	// normalized similarity, with Entry.Score populated. Entries without an
	// embedding are never returned. A query vector whose length differs from
	// Dimensions fails with ErrDimensionMismatch before any I/O. An empty
	// collection yields an empty slice, not an error.
	SemanticSearch(ctx context.Context, embedding []float64, opts *SearchOptions) ([]*Entry, error)

	// Dimensions returns the configured embedding dimension.
	Dimensions() int

	// Close releases backend resources.
	Close() error
}

// Typed errors returned by EntryStore implementations.
var (
	// ErrNotFound indicates the update target does not exist.
	ErrNotFound = errors.New("entry not found")

	// ErrConflict indicates an insert collided with an existing id.
	ErrConflict = errors.New("entry id already exists")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// store's configured dimension. A caller bug, surfaced immediately.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// BackendError wraps an I/O or connectivity failure from a persistent
// backend. Callers treat it as "no results available" and degrade gracefully
// rather than failing the whole request.
type BackendError struct {
	// Op is the store operation that failed.
	Op string

	// Err is the underlying driver error.
	Err error
}

// Error formats as "store: <Op>: <Err>".
func (e *BackendError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is / errors.As.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError wraps err with the failing operation name. Returns nil when
// err is nil so call sites can wrap unconditionally.
func NewBackendError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Err: err}
}
