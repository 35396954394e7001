package strategy

import (
	"context"
	"strings"

	"github.com/mnemo-ai/mnemo-go/pkg/embedder"
	"github.com/mnemo-ai/mnemo-go/pkg/log"
	"github.com/mnemo-ai/mnemo-go/pkg/store"
)

// DefaultSemanticLimit is the number of similar entries the semantic strategy
// keeps when no limit is configured.
const DefaultSemanticLimit = 5

// Semantic retrieves entries similar to the current query by embedding the
// query and running a vector search scoped to the requesting user. The search
// deliberately ignores the conversation id: cross-conversation memories are
// the point of this strategy, while conversation-local recall belongs to
// Recent.
type Semantic struct {
	store    store.EntryStore
	provider embedder.Provider
	limit    int
	minScore float64
}

// NewSemantic creates a semantic-similarity strategy. A non-positive limit
// uses DefaultSemanticLimit; minScore 0 disables threshold filtering.
func NewSemantic(s store.EntryStore, provider embedder.Provider, limit int, minScore float64) *Semantic {
	if limit <= 0 {
		limit = DefaultSemanticLimit
	}
	return &Semantic{store: s, provider: provider, limit: limit, minScore: minScore}
}

// Name identifies the strategy in logs.
func (s *Semantic) Name() string { return "semantic" }

// Produce embeds the query and searches for similar entries. A blank query
// short-circuits to Empty without touching the embedder or the store. The
// threshold filter runs here rather than in the store so that "everything was
// filtered" can be told apart from "nothing matched" and logged.
func (s *Semantic) Produce(ctx context.Context, req *Request) Result {
	if strings.TrimSpace(req.Query) == "" {
		return Empty{}
	}

	queryVec, err := s.provider.Embed(ctx, req.Query)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("strategy", s.Name()).Msg("query embedding failed, skipping")
		return Empty{}
	}

	opts := &store.SearchOptions{
		UserID: req.UserID,
		Limit:  s.limit,
	}

	candidates, err := s.store.SemanticSearch(ctx, queryVec, opts)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("strategy", s.Name()).Msg("similarity search failed, skipping")
		return Empty{}
	}

	var kept []*store.Entry
	for _, e := range candidates {
		if s.minScore <= 0 || e.Score >= s.minScore {
			kept = append(kept, e)
		}
	}

	if len(kept) == 0 {
		if len(candidates) > 0 {
			log.FromCtx(ctx).Warn().
				Str("strategy", s.Name()).
				Int("candidates", len(candidates)).
				Float64("min_score", s.minScore).
				Msg("all candidates below score threshold")
		}
		return Empty{}
	}

	lines := make([]string, len(kept))
	for i, e := range kept {
		lines[i] = formatLine(e)
	}

	return Messages{Category: CategorySemantic, Lines: lines}
}
