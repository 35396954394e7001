package core

// RememberOption is a function type for configuring Remember operations.
//
// Options are applied using the functional options pattern, allowing
// flexible configuration without requiring all parameters.
type RememberOption func(*RememberOptions)

// RememberOptions contains configuration options for Remember operations.
type RememberOptions struct {
	// ConversationID identifies the conversation the entry belongs to.
	ConversationID string

	// Role identifies the author of the entry. Defaults to RoleUser.
	Role Role

	// Metadata contains additional structured information.
	Metadata map[string]interface{}

	// Importance is an application-assigned weight.
	Importance float64
}

// WithConversation sets the conversation ID for Remember operations.
//
// Example:
//
//	entry, _ := client.Remember(ctx, "user_001", "content",
//	    core.WithConversation("conv_42"))
func WithConversation(conversationID string) RememberOption {
	return func(opts *RememberOptions) {
		opts.ConversationID = conversationID
	}
}

// WithRole sets the author role for Remember operations.
//
// Example:
//
//	entry, _ := client.Remember(ctx, "user_001", "content",
//	    core.WithRole(core.RoleAssistant))
func WithRole(role Role) RememberOption {
	return func(opts *RememberOptions) {
		opts.Role = role
	}
}

// WithMetadata sets metadata for Remember operations.
//
// Example:
//
//	entry, _ := client.Remember(ctx, "user_001", "content",
//	    core.WithMetadata(map[string]interface{}{
//	        "source": "conversation",
//	    }),
//	)
func WithMetadata(metadata map[string]interface{}) RememberOption {
	return func(opts *RememberOptions) {
		opts.Metadata = metadata
	}
}

// WithImportance sets an importance weight for Remember operations.
func WithImportance(importance float64) RememberOption {
	return func(opts *RememberOptions) {
		opts.Importance = importance
	}
}

// SearchOption is a function type for configuring Search operations.
type SearchOption func(*SearchOptions)

// SearchOptions contains configuration options for Search operations.
type SearchOptions struct {
	// ConversationID narrows the search to one conversation when set.
	ConversationID string

	// Limit is the maximum number of results. Defaults to the configured
	// semantic limit.
	Limit int

	// MinScore drops results scoring below it. Defaults to the configured
	// threshold; 0 disables filtering.
	MinScore float64

	// Filters are metadata equality filters applied to candidates.
	Filters map[string]interface{}
}

// WithConversationForSearch narrows Search operations to one conversation.
//
// Example:
//
//	result, _ := client.Search(ctx, "user_001", "query",
//	    core.WithConversationForSearch("conv_42"))
func WithConversationForSearch(conversationID string) SearchOption {
	return func(opts *SearchOptions) {
		opts.ConversationID = conversationID
	}
}

// WithLimit sets the maximum number of results for Search operations.
func WithLimit(limit int) SearchOption {
	return func(opts *SearchOptions) {
		opts.Limit = limit
	}
}

// WithMinScore sets the similarity threshold for Search operations.
func WithMinScore(minScore float64) SearchOption {
	return func(opts *SearchOptions) {
		opts.MinScore = minScore
	}
}

// WithFilters applies metadata equality filters to Search operations.
//
// Example:
//
//	result, _ := client.Search(ctx, "user_001", "query",
//	    core.WithFilters(map[string]interface{}{"source": "chat"}))
func WithFilters(filters map[string]interface{}) SearchOption {
	return func(opts *SearchOptions) {
		opts.Filters = filters
	}
}

// BuildOption is a function type for configuring BuildContext operations.
type BuildOption func(*BuildOptions)

// BuildOptions contains configuration options for BuildContext operations.
type BuildOptions struct {
	// ConversationID scopes the recent-conversation strategy when set.
	ConversationID string

	// Query is the current user question, used by the semantic strategy.
	Query string
}

// WithConversationForBuild scopes BuildContext to one conversation.
func WithConversationForBuild(conversationID string) BuildOption {
	return func(opts *BuildOptions) {
		opts.ConversationID = conversationID
	}
}

// WithQuery sets the current question for BuildContext operations.
//
// Example:
//
//	pc, _ := client.BuildContext(ctx, "user_001",
//	    core.WithQuery("what wine did I say I liked?"))
func WithQuery(query string) BuildOption {
	return func(opts *BuildOptions) {
		opts.Query = query
	}
}
