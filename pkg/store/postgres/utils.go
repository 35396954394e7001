package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mnemo-ai/mnemo-go/pkg/store"
)

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// distanceOperator returns the pgvector operator for the metric.
func distanceOperator(m store.Metric) string {
	switch m {
	case store.MetricL2:
		return "<->"
	case store.MetricDot:
		return "<#>"
	default:
		return "<=>"
	}
}

// opsClass returns the pgvector operator class used when building an index
// for the metric.
func opsClass(m store.Metric) string {
	switch m {
	case store.MetricL2:
		return "vector_l2_ops"
	case store.MetricDot:
		return "vector_ip_ops"
	default:
		return "vector_cosine_ops"
	}
}

// normalizeDistance converts the operator's raw distance into a similarity
// score where higher means more similar. The <#> operator returns the negated
// inner product so that smaller still means closer.
func normalizeDistance(m store.Metric, d float64) float64 {
	switch m {
	case store.MetricL2:
		return 1 / (1 + d)
	case store.MetricDot:
		return -d
	default:
		return store.NormalizeCosineDistance(d)
	}
}

// buildWhereClause builds the WHERE clause pushed into the similarity query.
// Entries without an embedding never qualify. Placeholders start at $startIdx
// because $1 carries the query vector.
func buildWhereClause(userID, conversationID string, startIdx int) (string, []interface{}) {
	conditions := []string{"embedding IS NOT NULL"}
	args := []interface{}{}

	if userID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", startIdx+len(args)))
		args = append(args, userID)
	}

	if conversationID != "" {
		conditions = append(conditions, fmt.Sprintf("conversation_id = $%d", startIdx+len(args)))
		args = append(args, conversationID)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// parseVectorString parses pgvector's text representation "[1,2,3]" into a
// float64 slice.
func parseVectorString(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	vec := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %d: %w", i, err)
		}
		vec[i] = v
	}

	return vec, nil
}

// scanEntry scans one entry from a row. With withDistance set, the row carries
// a trailing distance column which lands in Score un-normalized.
func scanEntry(s rowScanner, withDistance bool) (*store.Entry, error) {
	var entry store.Entry
	var role string
	var userID, conversationID sql.NullString
	var embeddingStr, metadataStr sql.NullString

	dest := []interface{}{
		&entry.ID,
		&userID,
		&conversationID,
		&role,
		&entry.Content,
		&embeddingStr,
		&metadataStr,
		&entry.TokenCount,
		&entry.Importance,
		&entry.CreatedAt,
	}
	if withDistance {
		dest = append(dest, &entry.Score)
	}

	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	entry.Role = store.Role(role)
	entry.UserID = userID.String
	entry.ConversationID = conversationID.String

	if embeddingStr.Valid {
		vec, err := parseVectorString(embeddingStr.String)
		if err != nil {
			return nil, err
		}
		entry.Embedding = vec
	}

	if metadataStr.Valid && metadataStr.String != "" {
		if err := json.Unmarshal([]byte(metadataStr.String), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	}

	return &entry, nil
}

// scanEntries drains rows into entries.
func scanEntries(rows *sql.Rows, withDistance bool) ([]*store.Entry, error) {
	var entries []*store.Entry
	for rows.Next() {
		entry, err := scanEntry(rows, withDistance)
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
