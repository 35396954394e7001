package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config contains the complete configuration for a Mnemo client.
//
// Example:
//
//	config := &core.Config{
//	    Embedder: core.EmbedderConfig{
//	        Provider:   "openai",
//	        APIKey:     "sk-...",
//	        Model:      "text-embedding-3-small",
//	        Dimensions: 1536,
//	    },
//	    Store: core.StoreConfig{
//	        Backend: "sqlite",
//	        Config: map[string]interface{}{
//	            "db_path": "./mnemo.db",
//	        },
//	    },
//	}
type Config struct {
	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder"`

	// Store contains entry store configuration.
	Store StoreConfig `json:"store"`

	// Retrieval contains retrieval and context assembly configuration.
	Retrieval RetrievalConfig `json:"retrieval"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: openai, mock
type EmbedderConfig struct {
	// Provider is the embedding provider name (openai, mock).
	Provider string `json:"provider"`

	// APIKey is the API key for the embedding provider.
	APIKey string `json:"api_key"`

	// Model is the embedding model name (e.g., "text-embedding-3-small").
	Model string `json:"model"`

	// BaseURL is the base URL for the API (optional, uses provider default
	// if empty).
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors (e.g., 1536).
	Dimensions int `json:"dimensions,omitempty"`
}

// StoreConfig contains configuration for the entry store.
//
// Supported backends: memory, sqlite, mysql, postgres, chromem
type StoreConfig struct {
	// Backend is the entry store backend name.
	Backend string `json:"backend"`

	// Config contains backend-specific configuration.
	// For SQLite: db_path, table
	// For MySQL/PostgreSQL: host, port, user, password, db_name, table
	// For chromem: collection
	Config map[string]interface{} `json:"config"`
}

// RetrievalConfig contains retrieval and context assembly configuration.
type RetrievalConfig struct {
	// RecentLimit is how many trailing conversation messages the recent
	// strategy keeps. Default 10.
	RecentLimit int `json:"recent_limit,omitempty"`

	// SemanticLimit is how many similar entries the semantic strategy keeps.
	// Default 5.
	SemanticLimit int `json:"semantic_limit,omitempty"`

	// MinScore is the similarity threshold below which semantic matches are
	// dropped. 0 disables filtering.
	MinScore float64 `json:"min_score,omitempty"`

	// TokenBudget caps the assembled context. Default 2048.
	TokenBudget int `json:"token_budget,omitempty"`

	// Metric is the similarity metric (cosine, l2, dot). Default cosine.
	Metric string `json:"metric,omitempty"`

	// Exact forces exhaustive search on backends with approximate indexes.
	Exact bool `json:"exact,omitempty"`

	// Breadth widens approximate index scans (hnsw.ef_search or
	// ivfflat.probes on PostgreSQL). 0 keeps the backend default.
	Breadth int `json:"breadth,omitempty"`

	// RefineFactor over-fetches candidates by this factor and re-scores them
	// exactly in process. 0 disables refinement.
	RefineFactor int `json:"refine_factor,omitempty"`

	// FetchMultiplier over-fetches when scope filters apply after an
	// approximate index scan. 0 disables over-fetching.
	FetchMultiplier int `json:"fetch_multiplier,omitempty"`

	// SystemPreamble is a fixed system message included in every assembled
	// context. Never truncated.
	SystemPreamble string `json:"system_preamble,omitempty"`
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - MEMORY_BACKEND (memory, sqlite, mysql, postgres, chromem)
//   - SQLITE_PATH, SQLITE_TABLE
//   - MYSQL_HOST, MYSQL_PORT, MYSQL_USER, MYSQL_PASSWORD, MYSQL_DATABASE, MYSQL_TABLE
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD,
//     POSTGRES_DATABASE, POSTGRES_TABLE, POSTGRES_SSLMODE
//   - CHROMEM_COLLECTION
//   - EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL,
//     EMBEDDING_BASE_URL, EMBEDDING_DIMENSIONS
//   - RECENT_LIMIT, SEMANTIC_LIMIT, MIN_SCORE, TOKEN_BUDGET
//   - METRIC, SEARCH_EXACT, SEARCH_BREADTH, SEARCH_REFINE_FACTOR,
//     SEARCH_FETCH_MULTIPLIER, SYSTEM_PREAMBLE
//
// Malformed numeric values are configuration errors, not silent defaults.
func LoadConfigFromEnv() (*Config, error) {
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	backend := getEnvOrDefault("MEMORY_BACKEND", "memory")

	storeConfig := make(map[string]interface{})

	switch backend {
	case "memory":
	case "sqlite":
		storeConfig = map[string]interface{}{
			"db_path": getEnvOrDefault("SQLITE_PATH", "./mnemo.db"),
			"table":   getEnvOrDefault("SQLITE_TABLE", "entries"),
		}
	case "mysql":
		port, err := envInt("MYSQL_PORT", 3306)
		if err != nil {
			return nil, err
		}
		storeConfig = map[string]interface{}{
			"host":     getEnvOrDefault("MYSQL_HOST", "127.0.0.1"),
			"port":     port,
			"user":     getEnvOrDefault("MYSQL_USER", "root"),
			"password": os.Getenv("MYSQL_PASSWORD"),
			"db_name":  getEnvOrDefault("MYSQL_DATABASE", "mnemo"),
			"table":    getEnvOrDefault("MYSQL_TABLE", "entries"),
		}
	case "postgres":
		port, err := envInt("POSTGRES_PORT", 5432)
		if err != nil {
			return nil, err
		}
		storeConfig = map[string]interface{}{
			"host":     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			"port":     port,
			"user":     getEnvOrDefault("POSTGRES_USER", "postgres"),
			"password": os.Getenv("POSTGRES_PASSWORD"),
			"db_name":  getEnvOrDefault("POSTGRES_DATABASE", "mnemo"),
			"table":    getEnvOrDefault("POSTGRES_TABLE", "entries"),
			"ssl_mode": getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	case "chromem":
		storeConfig = map[string]interface{}{
			"collection": getEnvOrDefault("CHROMEM_COLLECTION", "entries"),
		}
	default:
		return nil, NewMemoryError("LoadConfigFromEnv",
			fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, backend))
	}

	dims, err := envInt("EMBEDDING_DIMENSIONS", 1536)
	if err != nil {
		return nil, err
	}

	embedderProvider := getEnvOrDefault("EMBEDDING_PROVIDER", "openai")
	embedderModel := os.Getenv("EMBEDDING_MODEL")
	if embedderModel == "" && embedderProvider == "openai" {
		embedderModel = "text-embedding-3-small"
	}

	recentLimit, err := envInt("RECENT_LIMIT", 10)
	if err != nil {
		return nil, err
	}
	semanticLimit, err := envInt("SEMANTIC_LIMIT", 5)
	if err != nil {
		return nil, err
	}
	minScore, err := envFloat("MIN_SCORE", 0)
	if err != nil {
		return nil, err
	}
	tokenBudget, err := envInt("TOKEN_BUDGET", 2048)
	if err != nil {
		return nil, err
	}
	breadth, err := envInt("SEARCH_BREADTH", 0)
	if err != nil {
		return nil, err
	}
	refineFactor, err := envInt("SEARCH_REFINE_FACTOR", 0)
	if err != nil {
		return nil, err
	}
	fetchMultiplier, err := envInt("SEARCH_FETCH_MULTIPLIER", 0)
	if err != nil {
		return nil, err
	}
	exact, err := envBool("SEARCH_EXACT", false)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Embedder: EmbedderConfig{
			Provider:   embedderProvider,
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Model:      embedderModel,
			BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
			Dimensions: dims,
		},
		Store: StoreConfig{
			Backend: backend,
			Config:  storeConfig,
		},
		Retrieval: RetrievalConfig{
			RecentLimit:     recentLimit,
			SemanticLimit:   semanticLimit,
			MinScore:        minScore,
			TokenBudget:     tokenBudget,
			Metric:          getEnvOrDefault("METRIC", "cosine"),
			Exact:           exact,
			Breadth:         breadth,
			RefineFactor:    refineFactor,
			FetchMultiplier: fetchMultiplier,
			SystemPreamble:  os.Getenv("SYSTEM_PREAMBLE"),
		},
	}

	return config, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	return &config, nil
}

// Validate validates the configuration.
//
// Checks that the store backend and embedder provider are set, the metric
// is known, and the numeric retrieval settings are non-negative.
func (c *Config) Validate() error {
	if c.Store.Backend == "" {
		return NewMemoryError("Validate",
			fmt.Errorf("%w: store backend is required", ErrInvalidConfig))
	}
	if c.Embedder.Provider == "" {
		return NewMemoryError("Validate",
			fmt.Errorf("%w: embedder provider is required", ErrInvalidConfig))
	}
	if c.Embedder.Dimensions <= 0 {
		return NewMemoryError("Validate",
			fmt.Errorf("%w: embedder dimensions must be positive", ErrInvalidConfig))
	}

	switch c.Retrieval.Metric {
	case "", "cosine", "l2", "dot":
	default:
		return NewMemoryError("Validate",
			fmt.Errorf("%w: unknown metric %q", ErrInvalidConfig, c.Retrieval.Metric))
	}

	if c.Retrieval.MinScore < 0 {
		return NewMemoryError("Validate",
			fmt.Errorf("%w: min score must not be negative", ErrInvalidConfig))
	}
	if c.Retrieval.RecentLimit < 0 || c.Retrieval.SemanticLimit < 0 ||
		c.Retrieval.TokenBudget < 0 || c.Retrieval.Breadth < 0 ||
		c.Retrieval.RefineFactor < 0 || c.Retrieval.FetchMultiplier < 0 {
		return NewMemoryError("Validate",
			fmt.Errorf("%w: retrieval settings must not be negative", ErrInvalidConfig))
	}

	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envInt parses an integer environment variable. Unset uses the default;
// malformed values are configuration errors.
func envInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, NewMemoryError("LoadConfigFromEnv",
			fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, raw))
	}
	return v, nil
}

// envFloat parses a float environment variable with the same semantics as
// envInt.
func envFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, NewMemoryError("LoadConfigFromEnv",
			fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, key, raw))
	}
	return v, nil
}

// envBool parses a boolean environment variable with the same semantics as
// envInt.
func envBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, NewMemoryError("LoadConfigFromEnv",
			fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, key, raw))
	}
	return v, nil
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
