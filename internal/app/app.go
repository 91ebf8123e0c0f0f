// Package app provides application initialization and dependency injection.
//
// App is the container that wires the knowledge index, conversation store,
// tool catalog and assistant together. Construction is explicit: every
// component is built once in Setup and handed to its consumers, with
// lifecycle tied to App.Close.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/medkitlab/sage/internal/assistant"
	"github.com/medkitlab/sage/internal/config"
	"github.com/medkitlab/sage/internal/conversation"
	"github.com/medkitlab/sage/internal/knowledge"
	"github.com/medkitlab/sage/internal/log"
	"github.com/medkitlab/sage/internal/toolbox"
)

// App is the core application container.
type App struct {
	Config *config.Config

	// Core services
	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	Index     *knowledge.Index
	Store     *conversation.Store
	Catalog   *toolbox.Catalog // nil when the tool channel is unavailable
	Assistant *assistant.Assistant

	logger      log.Logger
	otelCleanup func()
}

// Close gracefully shuts down all resources: the assistant's background
// summarizer is drained first, then the tool channel session, then the
// trace exporter is flushed.
func (a *App) Close() error {
	a.logger.Info("shutting down application")

	if a.Assistant != nil {
		a.Assistant.Close()
	}

	if a.Catalog != nil {
		if err := a.Catalog.Close(); err != nil {
			a.logger.Warn("closing tool channel", "error", err)
		}
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
