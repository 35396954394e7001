// Package postgres provides a vector-native PostgreSQL implementation of the
// entry store contract, built on the pgvector extension.
//
// Similarity search runs inside the database: scope filters are pushed down
// into the WHERE clause of the index scan, approximate search breadth is set
// per query via hnsw.ef_search / ivfflat.probes, exact mode disables index
// scans entirely, and an optional refine pass re-scores over-fetched
// candidates with exact distance in process.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/mnemo-ai/mnemo-go/pkg/store"
)

// pgUniqueViolation is the PostgreSQL error code for a duplicate key.
const pgUniqueViolation = "23505"

// Client implements store.EntryStore using PostgreSQL + pgvector.
type Client struct {
	db         *sql.DB
	table      string
	dimensions int
	tuning     store.Tuning
	indexType  store.IndexType
}

// Config contains PostgreSQL connection configuration.
type Config struct {
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	Table         string
	EmbeddingDims int
	SSLMode       string
	Tuning        store.Tuning
}

// NewClient connects to PostgreSQL, enables the pgvector extension, and
// ensures the entry table exists.
func NewClient(cfg *Config) (*Client, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, store.NewBackendError("NewPostgresClient", err)
	}

	if err := db.Ping(); err != nil {
		return nil, store.NewBackendError("NewPostgresClient", err)
	}

	table := cfg.Table
	if table == "" {
		table = "entries"
	}

	client := &Client{
		db:         db,
		table:      table,
		dimensions: cfg.EmbeddingDims,
		tuning:     cfg.Tuning,
		indexType:  store.IndexHNSW,
	}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

func (c *Client) initTables(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return store.NewBackendError("initTables", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			user_id VARCHAR(128),
			conversation_id VARCHAR(128),
			role VARCHAR(16) NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d),
			metadata JSONB,
			token_count INT DEFAULT 0,
			importance FLOAT DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, c.table, c.dimensions)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return store.NewBackendError("initTables", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_scope ON %s(user_id, conversation_id)
	`, c.table, c.table)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return store.NewBackendError("initTables", err)
	}

	return nil
}

// EnsureIndex creates the vector index used by approximate search. Should be
// called once at startup, never concurrently with queries.
func (c *Client) EnsureIndex(ctx context.Context, cfg *store.IndexConfig) error {
	ops := opsClass(c.tuning.MetricOrDefault())

	switch cfg.Type {
	case store.IndexHNSW:
		m := cfg.M
		if m == 0 {
			m = 16
		}
		efc := cfg.EfConstruction
		if efc == 0 {
			efc = 64
		}
		query := fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s ON %s
			USING hnsw (embedding %s)
			WITH (m = %d, ef_construction = %d)
		`, cfg.Name, c.table, ops, m, efc)
		if _, err := c.db.ExecContext(ctx, query); err != nil {
			return store.NewBackendError("EnsureIndex", err)
		}
	case store.IndexIVFFlat:
		lists := cfg.Lists
		if lists == 0 {
			lists = 100
		}
		query := fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s ON %s
			USING ivfflat (embedding %s)
			WITH (lists = %d)
		`, cfg.Name, c.table, ops, lists)
		if _, err := c.db.ExecContext(ctx, query); err != nil {
			return store.NewBackendError("EnsureIndex", err)
		}
	default:
		return store.NewBackendError("EnsureIndex", fmt.Errorf("unsupported index type: %s", cfg.Type))
	}

	c.indexType = cfg.Type
	return nil
}

// Add inserts an entry. A duplicate id fails with store.ErrConflict.
func (c *Client) Add(ctx context.Context, entry *store.Entry) error {
	if entry.Embedding != nil && len(entry.Embedding) != c.dimensions {
		return store.ErrDimensionMismatch
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, user_id, conversation_id, role, content, embedding, metadata, token_count, importance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.table)

	metadataJSON, err := encodeMetadata(entry.Metadata)
	if err != nil {
		return store.NewBackendError("Add", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = c.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.ConversationID,
		string(entry.Role),
		entry.Content,
		embeddingParam(entry.Embedding),
		metadataJSON,
		entry.TokenCount,
		entry.Importance,
		createdAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
		return store.ErrConflict
	}
	if err != nil {
		return store.NewBackendError("Add", err)
	}

	return nil
}

// Get returns the entry, or (nil, nil) when absent.
func (c *Client) Get(ctx context.Context, id int64) (*store.Entry, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, conversation_id, role, content, embedding::text, metadata,
		       token_count, importance, created_at
		FROM %s
		WHERE id = $1
	`, c.table)

	entry, err := scanEntry(c.db.QueryRowContext(ctx, query, id), false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.NewBackendError("Get", err)
	}

	return entry, nil
}

// Update replaces the stored entry, failing with store.ErrNotFound when the
// id is absent.
func (c *Client) Update(ctx context.Context, entry *store.Entry) error {
	if entry.Embedding != nil && len(entry.Embedding) != c.dimensions {
		return store.ErrDimensionMismatch
	}

	metadataJSON, err := encodeMetadata(entry.Metadata)
	if err != nil {
		return store.NewBackendError("Update", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET user_id = $1, conversation_id = $2, role = $3, content = $4,
		    embedding = $5, metadata = $6, token_count = $7, importance = $8
		WHERE id = $9
	`, c.table)

	result, err := c.db.ExecContext(ctx, query,
		entry.UserID,
		entry.ConversationID,
		string(entry.Role),
		entry.Content,
		embeddingParam(entry.Embedding),
		metadataJSON,
		entry.TokenCount,
		entry.Importance,
		entry.ID,
	)
	if err != nil {
		return store.NewBackendError("Update", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return store.NewBackendError("Update", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return nil
}

// Delete removes the entry. Missing ids are a no-op.
func (c *Client) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", c.table)

	if _, err := c.db.ExecContext(ctx, query, id); err != nil {
		return store.NewBackendError("Delete", err)
	}

	return nil
}

// ListByUser returns the user's entries ordered by creation time.
func (c *Client) ListByUser(ctx context.Context, userID string, limit int) ([]*store.Entry, error) {
	return c.list(ctx, "user_id", userID, limit)
}

// ListByConversation returns the conversation's entries ordered by creation
// time.
func (c *Client) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*store.Entry, error) {
	return c.list(ctx, "conversation_id", conversationID, limit)
}

func (c *Client) list(ctx context.Context, column, value string, limit int) ([]*store.Entry, error) {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, conversation_id, role, content, embedding::text, metadata,
		       token_count, importance, created_at
		FROM %s
		WHERE %s = $1
		ORDER BY created_at, id
		LIMIT $2
	`, c.table, column)

	rows, err := c.db.QueryContext(ctx, query, value, limit)
	if err != nil {
		return nil, store.NewBackendError("List", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows, false)
}

// SemanticSearch ranks entries by vector distance inside the database.
//
// Scope filters are pushed into the WHERE clause so they apply during the
// index scan. In approximate mode with filters present, the query over-fetches
// (tuning.FetchMultiplier) because a filtered top-k can come back short; with
// tuning.RefineFactor set, the over-fetched candidates are re-scored with
// exact distance in process before final truncation.
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

	metric := c.tuning.MetricOrDefault()
	operator := distanceOperator(metric)

	fetch := opts.Limit
	if c.tuning.RefineFactor > 0 {
		fetch = opts.Limit * c.tuning.RefineFactor
	}
	if !c.tuning.Exact && (opts.UserID != "" || opts.ConversationID != "" || len(opts.Filters) > 0) {
		if n := store.FetchLimit(opts.Limit, c.tuning.FetchMultiplier); n > fetch {
			fetch = n
		}
	}

	whereClause, filterArgs := buildWhereClause(opts.UserID, opts.ConversationID, 2)

	query := fmt.Sprintf(`
		SELECT id, user_id, conversation_id, role, content, embedding::text, metadata,
		       token_count, importance, created_at,
		       embedding %s $1 AS distance
		FROM %s
		%s
		ORDER BY embedding %s $1
		LIMIT $%d
	`, operator, c.table, whereClause, operator, len(filterArgs)+2)

	args := []interface{}{embeddingParam(embedding)}
	args = append(args, filterArgs...)
	args = append(args, fetch)

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, store.NewBackendError("SemanticSearch", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := c.applyTuning(ctx, tx); err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewBackendError("SemanticSearch", err)
	}

	entries, err := scanEntries(rows, true)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, store.NewBackendError("SemanticSearch", err)
	}

	// Metadata filters are not pushed down; JSONB containment would bypass
	// the vector index anyway.
	if len(opts.Filters) > 0 {
		kept := entries[:0]
		for _, e := range entries {
			if store.MatchesFilters(e, opts.Filters) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	for _, e := range entries {
		e.Score = normalizeDistance(metric, e.Score)
	}

	if c.tuning.RefineFactor > 0 {
		entries = store.Refine(metric, embedding, entries, opts.Limit)
	} else {
		entries = store.SortByScore(entries, opts.Limit)
	}

	return store.FilterMinScore(entries, opts.MinScore), nil
}

// applyTuning issues the per-transaction settings for exact mode and search
// breadth. SET LOCAL scopes them to this query.
func (c *Client) applyTuning(ctx context.Context, tx *sql.Tx) error {
	if c.tuning.Exact {
		if _, err := tx.ExecContext(ctx, "SET LOCAL enable_indexscan = off"); err != nil {
			return store.NewBackendError("SemanticSearch", err)
		}
		return nil
	}

	if c.tuning.Breadth > 0 {
		var setting string
		if c.indexType == store.IndexIVFFlat {
			setting = fmt.Sprintf("SET LOCAL ivfflat.probes = %d", c.tuning.Breadth)
		} else {
			setting = fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", c.tuning.Breadth)
		}
		if _, err := tx.ExecContext(ctx, setting); err != nil {
			return store.NewBackendError("SemanticSearch", err)
		}
	}

	return nil
}

// Dimensions returns the configured embedding dimension.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// embeddingParam converts an embedding to a pgvector query parameter,
// preserving NULL for absent embeddings.
func embeddingParam(embedding []float64) interface{} {
	if embedding == nil {
		return nil
	}
	f32 := make([]float32, len(embedding))
	for i, v := range embedding {
		f32[i] = float32(v)
	}
	return pgvector.NewVector(f32)
}

func encodeMetadata(metadata map[string]interface{}) (interface{}, error) {
	if metadata == nil {
		return nil, nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
