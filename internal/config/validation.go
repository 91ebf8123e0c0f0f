package config

import (
	"fmt"
	"net/url"
	"os"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. API Key validation (required for all AI operations)
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	// 2. Model configuration validation
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity)
	// Reference: Gemini API documentation
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	// MaxTokens range: 1 to 2097152 (Gemini 2.5 max context window)
	// Reference: https://ai.google.dev/gemini-api/docs/models
	if c.MaxTokens < 1 || c.MaxTokens > 2097152 {
		return fmt.Errorf("%w: must be between 1 and 2,097,152, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	// 3. Embedding configuration validation
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// gemini-embedding-001 supports output dimensionality up to 3072
	if c.EmbeddingDims < 1 || c.EmbeddingDims > 3072 {
		return fmt.Errorf("%w: must be between 1 and 3072, got %d", ErrInvalidEmbeddingDims, c.EmbeddingDims)
	}

	// 4. Retrieval configuration validation
	if c.MaxSearchResults < 1 || c.MaxSearchResults > 20 {
		return fmt.Errorf("%w: must be between 1 and 20, got %d", ErrInvalidMaxSearchResults, c.MaxSearchResults)
	}

	if c.CacheCapacity < 1 {
		return fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidCacheCapacity, c.CacheCapacity)
	}

	// 5. Conversation configuration validation
	// A budget below one short exchange would force pressure mode permanently.
	if c.ContextCharBudget < 500 {
		return fmt.Errorf("%w: must be at least 500 characters, got %d", ErrInvalidContextBudget, c.ContextCharBudget)
	}

	if c.RetentionHours < 1 {
		return fmt.Errorf("%w: must be at least 1 hour, got %d", ErrInvalidRetention, c.RetentionHours)
	}

	// 6. Tool channel validation (empty URL disables tool calling)
	if c.ToolChannelURL != "" {
		u, err := url.Parse(c.ToolChannelURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %q must be an absolute http(s) URL", ErrInvalidToolChannelURL, c.ToolChannelURL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidToolChannelURL, u.Scheme)
		}
	}

	// 7. Serve mode validation
	if c.HTTPAddr == "" {
		return fmt.Errorf("%w: http_addr cannot be empty", ErrInvalidHTTPAddr)
	}

	return nil
}
