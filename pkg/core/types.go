package core

import "time"

// Role identifies who authored an entry.
type Role string

const (
	// RoleUser marks entries authored by the end user.
	RoleUser Role = "user"

	// RoleAssistant marks entries authored by the assistant.
	RoleAssistant Role = "assistant"

	// RoleSystem marks entries injected by the application.
	RoleSystem Role = "system"
)

// Entry represents a single remembered message or fact.
//
// Example:
//
//	entry := &core.Entry{
//	    UserID:         "user_001",
//	    ConversationID: "conv_42",
//	    Role:           core.RoleUser,
//	    Content:        "I prefer window seats on long flights",
//	}
type Entry struct {
	// ID is the unique identifier of the entry. Assigned by the client on
	// Remember; callers never set it.
	ID int64 `json:"id"`

	// UserID identifies the user who owns this entry.
	UserID string `json:"user_id"`

	// ConversationID identifies the conversation this entry belongs to
	// (optional).
	ConversationID string `json:"conversation_id,omitempty"`

	// Role identifies the author of the entry.
	Role Role `json:"role"`

	// Content is the text content of the entry.
	Content string `json:"content"`

	// Embedding is the vector embedding used for similarity search.
	// Omitted from JSON to reduce payload size. Entries stored while the
	// embedding provider was unavailable have none and stay invisible to
	// similarity search until updated.
	Embedding []float64 `json:"embedding,omitempty"`

	// Metadata contains additional structured information about the entry.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// TokenCount is the estimated token cost of the content.
	TokenCount int `json:"token_count,omitempty"`

	// Importance is an application-assigned weight (optional).
	Importance float64 `json:"importance,omitempty"`

	// CreatedAt is when the entry was created.
	CreatedAt time.Time `json:"created_at"`

	// Score is the similarity score from search operations. Higher scores
	// indicate better matches. Only populated on search results.
	Score float64 `json:"score,omitempty"`
}

// SearchResult contains the results of a similarity search.
type SearchResult struct {
	// Entries is the list of matching entries, best match first.
	Entries []*Entry

	// Query is the query text the search ran with.
	Query string
}
