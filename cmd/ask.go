package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/medkitlab/sage/internal/app"
	"github.com/medkitlab/sage/internal/assistant"
	"github.com/medkitlab/sage/internal/config"
	"github.com/medkitlab/sage/internal/log"
)

// runAsk answers a one-shot question on the command line, streaming
// content to stdout as it is generated.
func runAsk(logger log.Logger) error {
	question := strings.TrimSpace(strings.Join(os.Args[2:], " "))
	if question == "" {
		return fmt.Errorf("usage: sage ask <question>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	var sources []string
	for ev, streamErr := range a.Assistant.Stream(ctx, assistant.Request{
		ConversationID: "cli",
		Message:        question,
	}) {
		if streamErr != nil {
			return fmt.Errorf("generating answer: %w", streamErr)
		}
		switch ev.Type {
		case assistant.EventContent:
			fmt.Print(ev.Content)
		case assistant.EventSources:
			for _, doc := range ev.Sources {
				sources = append(sources, fmt.Sprintf("%s (%s)", doc.Title, doc.Category))
			}
		case assistant.EventFunctionCalling:
			fmt.Fprintf(os.Stderr, "[calling %s]\n", ev.Name)
		case assistant.EventError:
			return fmt.Errorf("%s", ev.Error)
		}
	}

	fmt.Println()
	if len(sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, s := range sources {
			fmt.Printf("  - %s\n", s)
		}
	}
	return nil
}
