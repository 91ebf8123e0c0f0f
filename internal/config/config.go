// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override, SAGE_ prefix)
//  2. Config file (~/.sage/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: model selection, temperature, max tokens, embedder
//   - Retrieval: search result count, relevance threshold, embedding cache capacity
//   - Conversation: context character budget, retention window
//   - Tools: admin tool channel endpoint and credentials
//   - Serve: HTTP listen address, CORS origins
//   - Tracing: OTLP trace export (see tracing.go)
//
// Security: the backend API token is never logged; the config directory uses 0750 permissions.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbeddingDims indicates the embedding dimensionality is out of range.
	ErrInvalidEmbeddingDims = errors.New("invalid embedding dimensions")

	// ErrInvalidMaxSearchResults indicates the search result count is out of range.
	ErrInvalidMaxSearchResults = errors.New("invalid max search results")

	// ErrInvalidCacheCapacity indicates the embedding cache capacity is out of range.
	ErrInvalidCacheCapacity = errors.New("invalid cache capacity")

	// ErrInvalidContextBudget indicates the conversation context budget is too small.
	ErrInvalidContextBudget = errors.New("invalid context budget")

	// ErrInvalidRetention indicates the conversation retention window is invalid.
	ErrInvalidRetention = errors.New("invalid retention window")

	// ErrInvalidHTTPAddr indicates the HTTP listen address is invalid.
	ErrInvalidHTTPAddr = errors.New("invalid HTTP address")

	// ErrInvalidToolChannelURL indicates the tool channel endpoint is malformed.
	ErrInvalidToolChannelURL = errors.New("invalid tool channel URL")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to lower dimensionality via
	// OutputDimensionality (Matryoshka Representation Learning); the corpus
	// vectors and query vectors must share one dimensionality.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbeddingDims is the default embedding vector dimensionality.
	DefaultEmbeddingDims = 1536

	// DefaultMaxSearchResults is the default number of documents returned per search.
	DefaultMaxSearchResults = 5

	// DefaultCacheCapacity is the default embedding cache capacity.
	DefaultCacheCapacity = 100

	// DefaultContextCharBudget is the default character budget for rendered
	// conversation history, the proxy for the model's context window.
	DefaultContextCharBudget = 16000

	// DefaultRetentionHours is how long an idle conversation is kept.
	DefaultRetentionHours = 24
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderGoogleAI = "googleai"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"`
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Embedding configuration
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbeddingDims int    `mapstructure:"embedding_dims" json:"embedding_dims"`

	// Retrieval configuration
	MaxSearchResults   int     `mapstructure:"max_search_results" json:"max_search_results"`
	RelevanceThreshold float64 `mapstructure:"relevance_threshold" json:"relevance_threshold"`
	CacheCapacity      int     `mapstructure:"cache_capacity" json:"cache_capacity"`

	// Conversation configuration
	ContextCharBudget int `mapstructure:"context_char_budget" json:"context_char_budget"`
	RetentionHours    int `mapstructure:"retention_hours" json:"retention_hours"`

	// Admin tool channel configuration. An empty URL disables tool calling;
	// the assistant then answers from documentation only.
	ToolChannelURL string `mapstructure:"tool_channel_url" json:"tool_channel_url"`
	BackendToken   string `mapstructure:"backend_token" json:"backend_token"` // SENSITIVE: masked in MarshalJSON

	// Serve mode configuration
	HTTPAddr    string   `mapstructure:"http_addr" json:"http_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`

	// Tracing configuration (see tracing.go for type definition)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.sage/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".sage")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	// Configure Viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	// Set default values
	setDefaults()

	// Bind environment variables
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 1.0)
	viper.SetDefault("max_tokens", 4000)

	// Embedding defaults
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedding_dims", DefaultEmbeddingDims)

	// Retrieval defaults
	viper.SetDefault("max_search_results", DefaultMaxSearchResults)
	viper.SetDefault("relevance_threshold", 0.3)
	viper.SetDefault("cache_capacity", DefaultCacheCapacity)

	// Conversation defaults
	viper.SetDefault("context_char_budget", DefaultContextCharBudget)
	viper.SetDefault("retention_hours", DefaultRetentionHours)

	// Tool channel defaults (admin backend's MCP endpoint)
	viper.SetDefault("tool_channel_url", "http://localhost:3001/mcp")

	// Serve defaults
	viper.SetDefault("http_addr", ":8081")
	viper.SetDefault("cors_origins", []string{"http://localhost:5173", "http://localhost:3000"})

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4318")
	viper.SetDefault("tracing.service_name", "sage")
	viper.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds environment variables explicitly.
// GEMINI_API_KEY is read directly by Genkit (not via Viper); its presence is
// checked in cfg.Validate().
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// AI provider and model overrides
	mustBind("provider", "SAGE_PROVIDER")
	mustBind("model_name", "SAGE_MODEL_NAME")
	mustBind("embedder_model", "SAGE_EMBEDDER_MODEL")

	// Backend tool channel
	mustBind("tool_channel_url", "SAGE_TOOL_CHANNEL_URL")
	mustBind("backend_token", "SAGE_BACKEND_TOKEN")

	// Serve mode
	mustBind("http_addr", "SAGE_HTTP_ADDR")
	mustBind("cors_origins", "SAGE_CORS_ORIGINS")

	// Tracing
	mustBind("tracing.enabled", "SAGE_TRACING_ENABLED")
	mustBind("tracing.endpoint", "SAGE_OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full-width blocks U+2588) to avoid substring matching
// against real secret material.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
//
// THREAT MODEL: This defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - BackendToken
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.BackendToken = maskSecret(a.BackendToken)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Example: "googleai/gemini-2.5-flash".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return ProviderGoogleAI + "/" + c.ModelName
}

// FullEmbedderName returns the provider-qualified embedder name for Genkit.
func (c *Config) FullEmbedderName() string {
	if strings.Contains(c.EmbedderModel, "/") {
		return c.EmbedderModel
	}
	return ProviderGoogleAI + "/" + c.EmbedderModel
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
