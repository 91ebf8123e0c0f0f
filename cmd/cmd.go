// Package cmd provides CLI commands for Sage.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - ask: One-shot question from the command line
//
// Signal handling and graceful shutdown are implemented
// for all commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/medkitlab/sage/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Execute is the main entry point for the Sage CLI application.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "ask":
		return runAsk(logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Sage - AI assistant for the SMART-on-FHIR admin platform")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sage serve [addr]       Start HTTP API server (default: 127.0.0.1:8081)")
	fmt.Println("  sage ask <question>     Ask a one-shot question")
	fmt.Println("  sage --version          Show version information")
	fmt.Println("  sage --help             Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY          Required: Gemini API key")
	fmt.Println("  SAGE_TOOL_CHANNEL_URL   Optional: admin tool channel endpoint")
	fmt.Println("  SAGE_RATE_BURST         Optional: per-IP rate limiter burst size")
	fmt.Println("  SAGE_TRUST_PROXY        Optional: trust X-Forwarded-For headers")
	fmt.Println("  DEBUG                   Optional: Enable debug logging")
	fmt.Println()
	fmt.Println("Configuration file: ~/.sage/config.yaml")
}

func runVersion() {
	fmt.Printf("Sage v%s\n", Version)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
}
