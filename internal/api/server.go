package api

import (
	"errors"
	"net/http"

	"github.com/medkitlab/sage/internal/conversation"
	"github.com/medkitlab/sage/internal/knowledge"
	"github.com/medkitlab/sage/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      log.Logger
	Assistant   Responder           // Required
	Store       *conversation.Store // Required
	Index       *knowledge.Index    // Required
	CORSOrigins []string            // Allowed origins for CORS
	TrustProxy  bool                // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst   int                 // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Assistant == nil {
		return nil, errors.New("assistant is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("conversation store is required")
	}
	if cfg.Index == nil {
		return nil, errors.New("knowledge index is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{
		assistant: cfg.Assistant,
		logger:    logger,
	}
	ih := &infoHandler{
		modelAvailable: true,
		index:          cfg.Index,
		store:          cfg.Store,
		logger:         logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /ai/chat", ch.send)
	mux.HandleFunc("POST /ai/chat/stream", ch.stream)
	mux.HandleFunc("GET /ai/conversations/stats", ih.conversationStats)
	mux.HandleFunc("GET /ai/knowledge/stats", ih.knowledgeStats)
	mux.HandleFunc("/", ih.root)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → Logging → CORS → RateLimit → Routes
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Use a top-level mux to separate health probes from middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", ih.health)
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
