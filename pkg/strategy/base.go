// Package strategy implements retrieval strategies that pull relevant
// material out of the entry store for prompt assembly. Each strategy is
// infallible from the caller's point of view: failures inside a strategy are
// logged and produce an empty result, so one broken source never sinks the
// whole context build.
package strategy

import (
	"context"
	"fmt"
	"unicode"

	"github.com/mnemo-ai/mnemo-go/pkg/store"
)

// Category labels message lines by the strategy that produced them, so the
// context builder can apply category-specific truncation.
type Category string

const (
	// CategoryRecent marks lines from the recent-conversation strategy.
	CategoryRecent Category = "recent"

	// CategorySemantic marks lines from the semantic-similarity strategy.
	CategorySemantic Category = "semantic"
)

// Request carries the inputs a strategy works from.
type Request struct {
	// UserID scopes retrieval to one user. Required.
	UserID string

	// ConversationID scopes retrieval to one conversation when set.
	ConversationID string

	// Query is the current user question. Strategies that rank by similarity
	// embed it; others may ignore it.
	Query string
}

// Result is the sealed union of strategy outputs. The concrete types are
// Messages, Preferences, and Empty.
type Result interface {
	isResult()
}

// Messages is an ordered list of formatted conversation lines.
type Messages struct {
	Category Category
	Lines    []string
}

// Preferences is a single summary line describing the user's stated
// preferences.
type Preferences struct {
	Summary string
}

// Empty is the result of a strategy that found nothing or failed.
type Empty struct{}

func (Messages) isResult()    {}
func (Preferences) isResult() {}
func (Empty) isResult()       {}

// Strategy produces retrieval results for a request. Implementations never
// return an error; they degrade to Empty and log the cause.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Produce runs the retrieval and returns its result.
	Produce(ctx context.Context, req *Request) Result
}

// formatLine renders one entry as a conversation line, e.g.
// "User: what did I say about wine?".
func formatLine(e *store.Entry) string {
	role := string(e.Role)
	if role == "" {
		role = string(store.RoleUser)
	}
	return fmt.Sprintf("%s: %s", capitalize(role), e.Content)
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
