package core

import (
	"github.com/mnemo-ai/mnemo-go/pkg/store"
)

// toStoreEntry converts a core.Entry to store.Entry.
//
// This function is used internally to convert between package types
// to avoid circular dependencies.
func toStoreEntry(e *Entry) *store.Entry {
	return &store.Entry{
		ID:             e.ID,
		UserID:         e.UserID,
		ConversationID: e.ConversationID,
		Role:           store.Role(e.Role),
		Content:        e.Content,
		Embedding:      e.Embedding,
		Metadata:       e.Metadata,
		TokenCount:     e.TokenCount,
		Importance:     e.Importance,
		CreatedAt:      e.CreatedAt,
		Score:          e.Score,
	}
}

// fromStoreEntry converts a store.Entry to core.Entry.
func fromStoreEntry(e *store.Entry) *Entry {
	return &Entry{
		ID:             e.ID,
		UserID:         e.UserID,
		ConversationID: e.ConversationID,
		Role:           Role(e.Role),
		Content:        e.Content,
		Embedding:      e.Embedding,
		Metadata:       e.Metadata,
		TokenCount:     e.TokenCount,
		Importance:     e.Importance,
		CreatedAt:      e.CreatedAt,
		Score:          e.Score,
	}
}

// fromStoreEntries converts a slice of store.Entry to a slice of core.Entry.
func fromStoreEntries(entries []*store.Entry) []*Entry {
	result := make([]*Entry, len(entries))
	for i, e := range entries {
		result[i] = fromStoreEntry(e)
	}
	return result
}
