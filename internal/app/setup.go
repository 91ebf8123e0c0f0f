package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/medkitlab/sage/internal/assistant"
	"github.com/medkitlab/sage/internal/config"
	"github.com/medkitlab/sage/internal/conversation"
	"github.com/medkitlab/sage/internal/knowledge"
	"github.com/medkitlab/sage/internal/log"
	"github.com/medkitlab/sage/internal/observability"
	"github.com/medkitlab/sage/internal/toolbox"
)

// Identity reported to the tool channel during the MCP handshake.
const (
	clientName    = "sage"
	clientVersion = "0.1.0"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	a := &App{Config: cfg, logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing first so Genkit's TracerProvider is ready before Init.
	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Index = provideIndex(ctx, cfg, embedder, logger)
	a.Store = provideStore(cfg, logger)

	catalog, toolRefs := provideToolbox(ctx, g, cfg, logger)
	a.Catalog = catalog

	asst, err := provideAssistant(a, toolRefs)
	if err != nil {
		return nil, err
	}
	a.Assistant = asst

	return a, nil
}

// provideOtelShutdown sets up OTLP tracing before Genkit initialization.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if !cfg.Tracing.Enabled {
		return func() {}
	}

	shutdown, err := observability.SetupTracing(ctx, observability.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.Tracing.Environment,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		logger.Warn("setting up tracing", "error", err)
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the configured AI provider.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, fmt.Errorf("initializing genkit with provider %q", cfg.Provider)
	}
	logger.Info("initialized genkit", "provider", cfg.Provider, "model", cfg.ModelName)
	return g, nil
}

// provideIndex builds the in-memory knowledge index over the static corpus
// and warms the document embeddings. Embedding failure is non-fatal: the
// index serves keyword search until the next process start.
func provideIndex(ctx context.Context, cfg *config.Config, embedder ai.Embedder, logger log.Logger) *knowledge.Index {
	embed := knowledge.NewEmbedFunc(embedder, cfg.EmbeddingDims)
	cache := knowledge.NewEmbeddingCache(embed, cfg.CacheCapacity, logger)
	index := knowledge.NewIndex(knowledge.Corpus(), embed, cache, logger)

	if err := index.InitEmbeddings(ctx); err != nil {
		logger.Warn("corpus embedding failed, semantic search disabled", "error", err)
	}
	return index
}

// provideStore creates the in-memory conversation store.
func provideStore(cfg *config.Config, logger log.Logger) *conversation.Store {
	return conversation.NewStore(conversation.Config{
		CharBudget: cfg.ContextCharBudget,
		Retention:  time.Duration(cfg.RetentionHours) * time.Hour,
	}, logger)
}

// provideToolbox connects to the remote tool channel and registers its
// tools with Genkit. Connection failure is non-fatal: the assistant runs
// tool-less with documentation-only answers.
func provideToolbox(ctx context.Context, g *genkit.Genkit, cfg *config.Config, logger log.Logger) (*toolbox.Catalog, []ai.ToolRef) {
	if cfg.ToolChannelURL == "" {
		logger.Info("no tool channel configured, running tool-less")
		return nil, nil
	}

	catalog, err := toolbox.Connect(ctx, toolbox.Config{
		Endpoint:      cfg.ToolChannelURL,
		Token:         cfg.BackendToken,
		ClientName:    clientName,
		ClientVersion: clientVersion,
	}, logger)
	if err != nil {
		logger.Warn("tool channel unavailable, running tool-less",
			"endpoint", cfg.ToolChannelURL,
			"error", err)
		return nil, nil
	}

	refs := toolbox.RegisterTools(g, catalog)
	logger.Info("tool channel connected", "tools", len(refs))
	return catalog, refs
}

// provideAssistant creates the response engine over the wired components.
func provideAssistant(a *App, toolRefs []ai.ToolRef) (*assistant.Assistant, error) {
	cfg := assistant.Config{
		Genkit:             a.Genkit,
		ModelName:          a.Config.FullModelName(),
		Index:              a.Index,
		Store:              a.Store,
		Logger:             a.logger,
		Temperature:        a.Config.Temperature,
		MaxTokens:          a.Config.MaxTokens,
		MaxSearchResults:   a.Config.MaxSearchResults,
		RelevanceThreshold: a.Config.RelevanceThreshold,
	}
	if a.Catalog != nil {
		cfg.Tools = toolRefs
		cfg.Runner = a.Catalog
	}
	return assistant.New(cfg)
}
