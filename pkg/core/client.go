package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/mnemo-ai/mnemo-go/pkg/embedder"
	"github.com/mnemo-ai/mnemo-go/pkg/embedder/mock"
	"github.com/mnemo-ai/mnemo-go/pkg/embedder/openai"
	"github.com/mnemo-ai/mnemo-go/pkg/log"
	"github.com/mnemo-ai/mnemo-go/pkg/prompt"
	"github.com/mnemo-ai/mnemo-go/pkg/store"
	chromemstore "github.com/mnemo-ai/mnemo-go/pkg/store/chromem"
	memstore "github.com/mnemo-ai/mnemo-go/pkg/store/memory"
	mysqlstore "github.com/mnemo-ai/mnemo-go/pkg/store/mysql"
	pgstore "github.com/mnemo-ai/mnemo-go/pkg/store/postgres"
	sqlitestore "github.com/mnemo-ai/mnemo-go/pkg/store/sqlite"
	"github.com/mnemo-ai/mnemo-go/pkg/strategy"
)

// Client is the main Mnemo client.
//
// It owns the entry store, the embedding provider (behind a circuit breaker),
// the retrieval strategies, and the context builder.
//
// Example:
//
//	config, _ := core.LoadConfigFromEnv()
//	client, err := core.NewClient(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	entry, _ := client.Remember(ctx, "user_001", "I like dry rieslings",
//	    core.WithConversation("conv_42"))
type Client struct {
	config   *Config
	store    store.EntryStore
	embedder embedder.Provider
	builder  *prompt.Builder
	node     *snowflake.Node
	counter  prompt.TokenCounter
}

// NewClient creates a new Mnemo client from the given configuration.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, NewMemoryError("NewClient", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	entryStore, err := initStore(config)
	if err != nil {
		return nil, err
	}

	provider, err := initEmbedder(config)
	if err != nil {
		_ = entryStore.Close()
		return nil, err
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		_ = entryStore.Close()
		_ = provider.Close()
		return nil, NewMemoryError("NewClient", err)
	}

	counter := prompt.TokenCounter(prompt.HeuristicCounter{})

	strategies := []strategy.Strategy{
		strategy.NewRecent(entryStore, config.Retrieval.RecentLimit),
		strategy.NewSemantic(entryStore, provider, config.Retrieval.SemanticLimit, config.Retrieval.MinScore),
		strategy.NewUserPreferences(entryStore),
	}

	builder := prompt.NewBuilder(strategies,
		prompt.WithTokenBudget(config.Retrieval.TokenBudget),
		prompt.WithTokenCounter(counter),
		prompt.WithSystemPreamble(config.Retrieval.SystemPreamble),
	)

	return &Client{
		config:   config,
		store:    entryStore,
		embedder: provider,
		builder:  builder,
		node:     node,
		counter:  counter,
	}, nil
}

// Remember stores a new entry for the user, embedding its content for
// similarity search.
//
// When the embedding provider fails, the entry is stored without an
// embedding rather than lost: it stays visible to listing and the recent
// strategy, and joins similarity search once updated with an embedding.
func (c *Client) Remember(ctx context.Context, userID, content string, opts ...RememberOption) (*Entry, error) {
	if userID == "" {
		return nil, NewMemoryError("Remember", fmt.Errorf("%w: user id is required", ErrInvalidInput))
	}
	if strings.TrimSpace(content) == "" {
		return nil, NewMemoryError("Remember", fmt.Errorf("%w: content is empty", ErrInvalidInput))
	}

	options := &RememberOptions{Role: RoleUser}
	for _, opt := range opts {
		opt(options)
	}
	if options.Role == "" {
		options.Role = RoleUser
	}

	entry := &Entry{
		ID:             c.node.Generate().Int64(),
		UserID:         userID,
		ConversationID: options.ConversationID,
		Role:           options.Role,
		Content:        content,
		Metadata:       options.Metadata,
		Importance:     options.Importance,
		TokenCount:     c.counter.Count(content),
		CreatedAt:      time.Now(),
	}

	embedding, err := c.embedder.Embed(ctx, content)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).
			Str("user_id", userID).
			Msg("embedding failed, storing entry without one")
	} else {
		entry.Embedding = embedding
	}

	if err := c.store.Add(ctx, toStoreEntry(entry)); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, NewMemoryError("Remember", ErrDuplicateEntry)
		}
		return nil, NewMemoryError("Remember", err)
	}

	return entry, nil
}

// Search finds entries similar to the query, scoped to the user.
func (c *Client) Search(ctx context.Context, userID, query string, opts ...SearchOption) (*SearchResult, error) {
	if userID == "" {
		return nil, NewMemoryError("Search", fmt.Errorf("%w: user id is required", ErrInvalidInput))
	}
	if strings.TrimSpace(query) == "" {
		return &SearchResult{Query: query}, nil
	}

	options := &SearchOptions{
		Limit:    c.config.Retrieval.SemanticLimit,
		MinScore: c.config.Retrieval.MinScore,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.Limit <= 0 {
		options.Limit = strategy.DefaultSemanticLimit
	}

	queryVec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, NewMemoryError("Search", fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err))
	}

	entries, err := c.store.SemanticSearch(ctx, queryVec, &store.SearchOptions{
		UserID:         userID,
		ConversationID: options.ConversationID,
		Limit:          options.Limit,
		MinScore:       options.MinScore,
		Filters:        options.Filters,
	})
	if err != nil {
		return nil, NewMemoryError("Search", err)
	}

	return &SearchResult{
		Entries: fromStoreEntries(entries),
		Query:   query,
	}, nil
}

// Get retrieves an entry by id. Returns (nil, nil) when the entry does not
// exist.
func (c *Client) Get(ctx context.Context, id int64) (*Entry, error) {
	entry, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, NewMemoryError("Get", err)
	}
	if entry == nil {
		return nil, nil
	}
	return fromStoreEntry(entry), nil
}

// Update replaces an existing entry. Changed content is re-embedded.
func (c *Client) Update(ctx context.Context, entry *Entry) (*Entry, error) {
	if entry == nil || entry.ID == 0 {
		return nil, NewMemoryError("Update", fmt.Errorf("%w: entry id is required", ErrInvalidInput))
	}
	if strings.TrimSpace(entry.Content) == "" {
		return nil, NewMemoryError("Update", fmt.Errorf("%w: content is empty", ErrInvalidInput))
	}

	existing, err := c.store.Get(ctx, entry.ID)
	if err != nil {
		return nil, NewMemoryError("Update", err)
	}
	if existing == nil {
		return nil, NewMemoryError("Update", ErrNotFound)
	}

	updated := *entry
	updated.TokenCount = c.counter.Count(updated.Content)
	if updated.CreatedAt.IsZero() {
		updated.CreatedAt = existing.CreatedAt
	}

	if updated.Content != existing.Content || updated.Embedding == nil {
		embedding, err := c.embedder.Embed(ctx, updated.Content)
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).
				Int64("id", updated.ID).
				Msg("re-embedding failed, keeping entry without one")
			updated.Embedding = nil
		} else {
			updated.Embedding = embedding
		}
	}

	if err := c.store.Update(ctx, toStoreEntry(&updated)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewMemoryError("Update", ErrNotFound)
		}
		return nil, NewMemoryError("Update", err)
	}

	return &updated, nil
}

// Delete removes an entry by id. Deleting a missing entry is a no-op.
func (c *Client) Delete(ctx context.Context, id int64) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return NewMemoryError("Delete", err)
	}
	return nil
}

// ListByUser returns the user's entries in chronological order.
func (c *Client) ListByUser(ctx context.Context, userID string, limit int) ([]*Entry, error) {
	entries, err := c.store.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, NewMemoryError("ListByUser", err)
	}
	return fromStoreEntries(entries), nil
}

// ListByConversation returns the conversation's entries in chronological
// order.
func (c *Client) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*Entry, error) {
	entries, err := c.store.ListByConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, NewMemoryError("ListByConversation", err)
	}
	return fromStoreEntries(entries), nil
}

// BuildContext runs the retrieval strategies and assembles a token-budgeted
// context for the user. It never fails on retrieval problems; broken sources
// degrade to empty sections.
func (c *Client) BuildContext(ctx context.Context, userID string, opts ...BuildOption) (*prompt.Context, error) {
	if userID == "" {
		return nil, NewMemoryError("BuildContext", fmt.Errorf("%w: user id is required", ErrInvalidInput))
	}

	options := &BuildOptions{}
	for _, opt := range opts {
		opt(options)
	}

	req := &strategy.Request{
		UserID:         userID,
		ConversationID: options.ConversationID,
		Query:          options.Query,
	}

	return c.builder.Build(ctx, req), nil
}

// Prompt assembles a context and renders it into chat messages ending with
// the question.
func (c *Client) Prompt(ctx context.Context, userID, question string, opts ...BuildOption) ([]prompt.Message, error) {
	opts = append(opts, WithQuery(question))
	pc, err := c.BuildContext(ctx, userID, opts...)
	if err != nil {
		return nil, err
	}
	return prompt.Format(pc, question), nil
}

// Store exposes the underlying entry store, for callers needing direct
// access (index management, migration).
func (c *Client) Store() store.EntryStore {
	return c.store
}

// Close releases the store and the embedding provider.
func (c *Client) Close() error {
	var firstErr error
	if err := c.store.Close(); err != nil {
		firstErr = err
	}
	if err := c.embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return NewMemoryError("Close", firstErr)
}

// initStore creates the entry store for the configured backend.
func initStore(config *Config) (store.EntryStore, error) {
	cfg := config.Store.Config
	dims := config.Embedder.Dimensions

	tuning := store.Tuning{
		Metric:          store.Metric(config.Retrieval.Metric),
		Exact:           config.Retrieval.Exact,
		Breadth:         config.Retrieval.Breadth,
		RefineFactor:    config.Retrieval.RefineFactor,
		FetchMultiplier: config.Retrieval.FetchMultiplier,
	}

	switch config.Store.Backend {
	case "memory":
		return memstore.New(&memstore.Config{
			EmbeddingDims: dims,
			Tuning:        tuning,
		}), nil
	case "sqlite":
		client, err := sqlitestore.NewClient(&sqlitestore.Config{
			DBPath:        getConfigString(cfg, "db_path", "./mnemo.db"),
			Table:         getConfigString(cfg, "table", "entries"),
			EmbeddingDims: dims,
			Tuning:        tuning,
		})
		if err != nil {
			return nil, NewMemoryError("NewClient", fmt.Errorf("%w: %v", ErrConnectionFailed, err))
		}
		return client, nil
	case "mysql":
		client, err := mysqlstore.NewClient(&mysqlstore.Config{
			Host:          getConfigString(cfg, "host", "127.0.0.1"),
			Port:          getConfigInt(cfg, "port", 3306),
			User:          getConfigString(cfg, "user", "root"),
			Password:      getConfigString(cfg, "password", ""),
			DBName:        getConfigString(cfg, "db_name", "mnemo"),
			Table:         getConfigString(cfg, "table", "entries"),
			EmbeddingDims: dims,
			Tuning:        tuning,
		})
		if err != nil {
			return nil, NewMemoryError("NewClient", fmt.Errorf("%w: %v", ErrConnectionFailed, err))
		}
		return client, nil
	case "postgres":
		client, err := pgstore.NewClient(&pgstore.Config{
			Host:          getConfigString(cfg, "host", "localhost"),
			Port:          getConfigInt(cfg, "port", 5432),
			User:          getConfigString(cfg, "user", "postgres"),
			Password:      getConfigString(cfg, "password", ""),
			DBName:        getConfigString(cfg, "db_name", "mnemo"),
			Table:         getConfigString(cfg, "table", "entries"),
			EmbeddingDims: dims,
			SSLMode:       getConfigString(cfg, "ssl_mode", "disable"),
			Tuning:        tuning,
		})
		if err != nil {
			return nil, NewMemoryError("NewClient", fmt.Errorf("%w: %v", ErrConnectionFailed, err))
		}
		return client, nil
	case "chromem":
		client, err := chromemstore.NewClient(&chromemstore.Config{
			Collection:    getConfigString(cfg, "collection", "entries"),
			EmbeddingDims: dims,
			Tuning:        tuning,
		})
		if err != nil {
			return nil, NewMemoryError("NewClient", err)
		}
		return client, nil
	default:
		return nil, NewMemoryError("NewClient",
			fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, config.Store.Backend))
	}
}

// initEmbedder creates the embedding provider and wraps it in a circuit
// breaker so a failing provider sheds load fast.
func initEmbedder(config *Config) (embedder.Provider, error) {
	var provider embedder.Provider

	switch config.Embedder.Provider {
	case "openai":
		client, err := openai.NewClient(&openai.Config{
			APIKey:     config.Embedder.APIKey,
			Model:      config.Embedder.Model,
			BaseURL:    config.Embedder.BaseURL,
			Dimensions: config.Embedder.Dimensions,
		})
		if err != nil {
			return nil, NewMemoryError("NewClient", err)
		}
		provider = client
	case "mock":
		provider = mock.New(config.Embedder.Dimensions)
	default:
		return nil, NewMemoryError("NewClient",
			fmt.Errorf("%w: unknown embedder provider %q", ErrInvalidConfig, config.Embedder.Provider))
	}

	return embedder.NewBreaker(provider), nil
}

// getConfigString extracts a string from backend config with a default.
func getConfigString(cfg map[string]interface{}, key, defaultValue string) string {
	if cfg == nil {
		return defaultValue
	}
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return defaultValue
}

// getConfigInt extracts an int from backend config with a default. JSON
// decoding yields float64, so both are accepted.
func getConfigInt(cfg map[string]interface{}, key string, defaultValue int) int {
	if cfg == nil {
		return defaultValue
	}
	switch v := cfg[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return defaultValue
}
