package api

import (
	"net/http"
	"time"

	"github.com/medkitlab/sage/internal/conversation"
	"github.com/medkitlab/sage/internal/knowledge"
	"github.com/medkitlab/sage/internal/log"
)

// healthResponse reports service readiness.
type healthResponse struct {
	Status              string    `json:"status"`
	ModelAvailable      bool      `json:"model_available"`
	KnowledgeBaseLoaded bool      `json:"knowledge_base_loaded"`
	Timestamp           time.Time `json:"timestamp"`
}

// serviceInfo describes the service at the root endpoint.
type serviceInfo struct {
	Service   string   `json:"service"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

type infoHandler struct {
	modelAvailable bool
	index          *knowledge.Index
	store          *conversation.Store
	logger         log.Logger
}

func (h *infoHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:              "healthy",
		ModelAvailable:      h.modelAvailable,
		KnowledgeBaseLoaded: h.index != nil && h.index.Stats().TotalDocuments > 0,
		Timestamp:           time.Now().UTC(),
	}, h.logger)
}

func (h *infoHandler) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not_found", "resource not found", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, serviceInfo{
		Service: "sage",
		Version: "0.1.0",
		Endpoints: []string{
			"GET /health",
			"POST /ai/chat",
			"POST /ai/chat/stream",
			"GET /ai/conversations/stats",
			"GET /ai/knowledge/stats",
		},
	}, h.logger)
}

func (h *infoHandler) conversationStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Stats(), h.logger)
}

func (h *infoHandler) knowledgeStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.index.Stats(), h.logger)
}
