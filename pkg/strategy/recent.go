package strategy

import (
	"context"

	"github.com/mnemo-ai/mnemo-go/pkg/log"
	"github.com/mnemo-ai/mnemo-go/pkg/store"
)

// DefaultRecentLimit is the number of trailing messages the recent strategy
// keeps when no limit is configured.
const DefaultRecentLimit = 10

// Recent returns the trailing messages of the active conversation in
// chronological order. When the request has no conversation id, it falls back
// to the user's most recent entries across conversations.
type Recent struct {
	store store.EntryStore
	limit int
}

// NewRecent creates a recent-conversation strategy. A non-positive limit uses
// DefaultRecentLimit.
func NewRecent(s store.EntryStore, limit int) *Recent {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &Recent{store: s, limit: limit}
}

// Name identifies the strategy in logs.
func (r *Recent) Name() string { return "recent" }

// Produce lists the scoped entries and keeps the trailing limit, preserving
// chronological order so the conversation reads top to bottom.
func (r *Recent) Produce(ctx context.Context, req *Request) Result {
	var entries []*store.Entry
	var err error

	if req.ConversationID != "" {
		entries, err = r.store.ListByConversation(ctx, req.ConversationID, 0)
	} else {
		entries, err = r.store.ListByUser(ctx, req.UserID, 0)
	}
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("strategy", r.Name()).Msg("retrieval failed, skipping")
		return Empty{}
	}

	if len(entries) == 0 {
		return Empty{}
	}

	if len(entries) > r.limit {
		entries = entries[len(entries)-r.limit:]
	}

	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = formatLine(e)
	}

	return Messages{Category: CategoryRecent, Lines: lines}
}
