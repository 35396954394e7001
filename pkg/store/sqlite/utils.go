package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mnemo-ai/mnemo-go/pkg/store"
)

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// buildWhereClause builds the WHERE clause for similarity search. Entries
// without an embedding never qualify.
func buildWhereClause(userID, conversationID string) (string, []interface{}) {
	conditions := []string{"embedding IS NOT NULL"}
	args := []interface{}{}

	if userID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, userID)
	}

	if conversationID != "" {
		conditions = append(conditions, "conversation_id = ?")
		args = append(args, conversationID)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// encodeColumns serializes the embedding and metadata columns. A nil
// embedding stays NULL so the entry is invisible to similarity search.
func encodeColumns(entry *store.Entry) (interface{}, interface{}, error) {
	var embeddingJSON interface{}
	if entry.Embedding != nil {
		b, err := json.Marshal(entry.Embedding)
		if err != nil {
			return nil, nil, err
		}
		embeddingJSON = string(b)
	}

	var metadataJSON interface{}
	if entry.Metadata != nil {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return nil, nil, err
		}
		metadataJSON = string(b)
	}

	return embeddingJSON, metadataJSON, nil
}

// scanEntry scans one entry from a row.
func scanEntry(s rowScanner) (*store.Entry, error) {
	var entry store.Entry
	var role string
	var embeddingStr sql.NullString
	var metadataStr sql.NullString

	err := s.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.ConversationID,
		&role,
		&entry.Content,
		&embeddingStr,
		&metadataStr,
		&entry.TokenCount,
		&entry.Importance,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Role = store.Role(role)

	if embeddingStr.Valid {
		if err := json.Unmarshal([]byte(embeddingStr.String), &entry.Embedding); err != nil {
			return nil, fmt.Errorf("parse embedding: %w", err)
		}
	}

	if metadataStr.Valid && metadataStr.String != "" {
		if err := json.Unmarshal([]byte(metadataStr.String), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	}

	return &entry, nil
}

// scanEntries drains rows into entries.
func scanEntries(rows *sql.Rows) ([]*store.Entry, error) {
	var entries []*store.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, store.NewBackendError("scan", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, store.NewBackendError("scan", err)
	}

	return entries, nil
}
