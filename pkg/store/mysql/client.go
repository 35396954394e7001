// Package mysql provides a relational MySQL implementation of the entry
// store contract.
//
// Stock MySQL has no vector type, so embeddings are stored as JSON strings in
// LONGTEXT columns and similarity is computed in process after loading the
// scoped candidate set, the same way the SQLite backend works. Search is
// always exact.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/mnemo-ai/mnemo-go/pkg/store"
)

// mysqlDuplicateEntry is the server error number for a duplicate primary key.
const mysqlDuplicateEntry = 1062

// Client implements store.EntryStore using MySQL as the backend.
type Client struct {
	db         *sql.DB
	table      string
	dimensions int
	tuning     store.Tuning
}

// Config contains MySQL connection configuration.
type Config struct {
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	Table         string
	EmbeddingDims int
	Tuning        store.Tuning
}

// NewClient connects to MySQL and ensures the entry table exists.
func NewClient(cfg *Config) (*Client, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, store.NewBackendError("NewMySQLClient", err)
	}

	if err := db.Ping(); err != nil {
		return nil, store.NewBackendError("NewMySQLClient", err)
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
	}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			user_id VARCHAR(128),
			conversation_id VARCHAR(128),
			role VARCHAR(16) NOT NULL,
			content LONGTEXT NOT NULL,
			embedding LONGTEXT,
			metadata JSON,
			token_count INT DEFAULT 0,
			importance DOUBLE DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_scope (user_id, conversation_id)
		)
	`, c.table)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return store.NewBackendError("initTables", err)
	}

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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.table)

	embeddingJSON, metadataJSON, err := encodeColumns(entry)
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
		embeddingJSON,
		metadataJSON,
		entry.TokenCount,
		entry.Importance,
		createdAt,
	)

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
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
		SELECT id, user_id, conversation_id, role, content, embedding, metadata,
		       token_count, importance, created_at
		FROM %s
		WHERE id = ?
	`, c.table)

	entry, err := scanEntry(c.db.QueryRowContext(ctx, query, id))
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

	embeddingJSON, metadataJSON, err := encodeColumns(entry)
	if err != nil {
		return store.NewBackendError("Update", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET user_id = ?, conversation_id = ?, role = ?, content = ?,
		    embedding = ?, metadata = ?, token_count = ?, importance = ?
		WHERE id = ?
	`, c.table)

	result, err := c.db.ExecContext(ctx, query,
		entry.UserID,
		entry.ConversationID,
		string(entry.Role),
		entry.Content,
		embeddingJSON,
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
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.table)

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
		SELECT id, user_id, conversation_id, role, content, embedding, metadata,
		       token_count, importance, created_at
		FROM %s
		WHERE %s = ?
		ORDER BY created_at, id
		LIMIT ?
	`, c.table, column)

	rows, err := c.db.QueryContext(ctx, query, value, limit)
	if err != nil {
		return nil, store.NewBackendError("List", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

// SemanticSearch loads the scoped candidate set and scores it in process.
// Entries without an embedding are excluded in SQL.
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

	whereClause, args := buildWhereClause(opts.UserID, opts.ConversationID)

	query := fmt.Sprintf(`
		SELECT id, user_id, conversation_id, role, content, embedding, metadata,
		       token_count, importance, created_at
		FROM %s
		%s
		ORDER BY id
	`, c.table, whereClause)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewBackendError("SemanticSearch", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}

	metric := c.tuning.MetricOrDefault()

	var matches []*store.Entry
	for _, e := range candidates {
		if !store.MatchesFilters(e, opts.Filters) {
			continue
		}
		e.Score = store.Similarity(metric, embedding, e.Embedding)
		if opts.MinScore <= 0 || e.Score >= opts.MinScore {
			matches = append(matches, e)
		}
	}

	return store.SortByScore(matches, opts.Limit), nil
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
