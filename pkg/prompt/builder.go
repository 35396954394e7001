package prompt

import (
	"context"
	"time"

	"github.com/mnemo-ai/mnemo-go/pkg/log"
	"github.com/mnemo-ai/mnemo-go/pkg/strategy"
)

// DefaultTokenBudget caps the assembled context when no budget is configured.
const DefaultTokenBudget = 2048

// Context is the assembled, budgeted material ready for formatting.
type Context struct {
	SystemPreamble string
	Preferences    string
	RecentLines    []string
	SemanticLines  []string

	UserID         string
	ConversationID string

	// TotalTokens is the estimated token cost of everything kept.
	TotalTokens int

	// MessageCount is the number of retrieved lines kept after truncation.
	MessageCount int

	// BuildTime is how long assembly took.
	BuildTime time.Duration
}

// Builder runs retrieval strategies in order and assembles their results
// under a token budget.
type Builder struct {
	strategies []strategy.Strategy
	budget     int
	counter    TokenCounter
	preamble   string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithTokenBudget sets the token budget. Non-positive values keep the
// default.
func WithTokenBudget(budget int) BuilderOption {
	return func(b *Builder) {
		if budget > 0 {
			b.budget = budget
		}
	}
}

// WithTokenCounter replaces the token counter.
func WithTokenCounter(counter TokenCounter) BuilderOption {
	return func(b *Builder) {
		if counter != nil {
			b.counter = counter
		}
	}
}

// WithSystemPreamble sets a fixed system preamble included in every context.
// The preamble is never truncated.
func WithSystemPreamble(preamble string) BuilderOption {
	return func(b *Builder) {
		b.preamble = preamble
	}
}

// NewBuilder creates a builder running the given strategies in order.
func NewBuilder(strategies []strategy.Strategy, opts ...BuilderOption) *Builder {
	b := &Builder{
		strategies: strategies,
		budget:     DefaultTokenBudget,
		counter:    HeuristicCounter{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs every strategy and assembles the results under the token budget.
// It never fails: strategies degrade internally, and over-budget material is
// truncated, never errored on.
//
// Truncation drops semantic lines first, from the end of the ranking (the
// most marginal matches), then recent lines from the front (the oldest
// messages). The preferences summary and the system preamble are never
// dropped.
func (b *Builder) Build(ctx context.Context, req *strategy.Request) *Context {
	start := time.Now()

	out := &Context{
		SystemPreamble: b.preamble,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
	}

	for _, s := range b.strategies {
		switch res := s.Produce(ctx, req).(type) {
		case strategy.Messages:
			switch res.Category {
			case strategy.CategorySemantic:
				out.SemanticLines = append(out.SemanticLines, res.Lines...)
			default:
				out.RecentLines = append(out.RecentLines, res.Lines...)
			}
		case strategy.Preferences:
			out.Preferences = res.Summary
		case strategy.Empty:
		}
	}

	b.truncate(ctx, out)

	out.MessageCount = len(out.RecentLines) + len(out.SemanticLines)
	out.BuildTime = time.Since(start)

	log.FromCtx(ctx).Debug().
		Str("user_id", req.UserID).
		Int("total_tokens", out.TotalTokens).
		Int("message_count", out.MessageCount).
		Dur("build_time", out.BuildTime).
		Msg("context assembled")

	return out
}

// truncate enforces the token budget, recording the final cost in
// out.TotalTokens.
func (b *Builder) truncate(ctx context.Context, out *Context) {
	fixed := b.counter.Count(out.SystemPreamble) + b.counter.Count(out.Preferences)

	recentCost := linesCost(b.counter, out.RecentLines)
	semanticCost := linesCost(b.counter, out.SemanticLines)
	total := fixed + recentCost + semanticCost

	if total <= b.budget {
		out.TotalTokens = total
		return
	}

	dropped := 0

	for total > b.budget && len(out.SemanticLines) > 0 {
		last := out.SemanticLines[len(out.SemanticLines)-1]
		out.SemanticLines = out.SemanticLines[:len(out.SemanticLines)-1]
		total -= b.counter.Count(last)
		dropped++
	}

	for total > b.budget && len(out.RecentLines) > 0 {
		first := out.RecentLines[0]
		out.RecentLines = out.RecentLines[1:]
		total -= b.counter.Count(first)
		dropped++
	}

	out.TotalTokens = total

	log.FromCtx(ctx).Debug().
		Int("dropped_lines", dropped).
		Int("budget", b.budget).
		Int("total_tokens", total).
		Msg("context truncated to budget")
}

func linesCost(counter TokenCounter, lines []string) int {
	var total int
	for _, line := range lines {
		total += counter.Count(line)
	}
	return total
}
