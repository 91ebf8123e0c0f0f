package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/medkitlab/sage/internal/assistant"
	"github.com/medkitlab/sage/internal/knowledge"
	"github.com/medkitlab/sage/internal/log"
)

// maxRequestBody bounds chat request size.
const maxRequestBody = 1024 * 1024

// Responder produces the event stream for one user turn.
// Implemented by assistant.Assistant.
type Responder interface {
	Respond(ctx context.Context, req assistant.Request, emit assistant.EventCallback) error
}

// chatRequest is the request body for both chat endpoints.
type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	PageContext    string `json:"page_context,omitempty"`
}

// chatResponse is the synchronous chat response.
type chatResponse struct {
	Answer     string                    `json:"answer"`
	Sources    []knowledge.DocumentChunk `json:"sources"`
	Confidence float64                   `json:"confidence"`
	Mode       string                    `json:"mode"`
	Timestamp  time.Time                 `json:"timestamp"`
}

type chatHandler struct {
	assistant Responder
	logger    log.Logger
}

// send handles POST /ai/chat: the full event stream is collected and
// returned as one JSON document.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	var (
		answer     string
		sources    []knowledge.DocumentChunk
		mode       string
		confidence float64
		errMsg     string
	)

	err := h.assistant.Respond(r.Context(), assistant.Request{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		PageContext:    req.PageContext,
	}, func(_ context.Context, ev assistant.Event) error {
		switch ev.Type {
		case assistant.EventSources:
			sources = ev.Sources
		case assistant.EventContent:
			answer += ev.Content
		case assistant.EventError:
			errMsg = ev.Error
		case assistant.EventDone:
			mode = ev.Mode
			confidence = ev.Confidence
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, "invalid_request", "message is required", h.logger)
			return
		}
		h.logger.Error("chat request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "error generating response", h.logger)
		return
	}
	if errMsg != "" {
		writeError(w, http.StatusInternalServerError, "generation_failed", errMsg, h.logger)
		return
	}

	if sources == nil {
		sources = []knowledge.DocumentChunk{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Answer:     answer,
		Sources:    sources,
		Confidence: confidence,
		Mode:       mode,
		Timestamp:  time.Now().UTC(),
	}, h.logger)
}

// stream handles POST /ai/chat/stream: every assistant event is forwarded
// as one SSE data frame as it is produced.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	req, ok := h.decodeSSE(w, flusher, r)
	if !ok {
		return
	}

	ctx := r.Context()
	h.logger.Debug("SSE stream started", "conversation", req.ConversationID)

	err := h.assistant.Respond(ctx, assistant.Request{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		PageContext:    req.PageContext,
	}, func(_ context.Context, ev assistant.Event) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return writeSSE(w, flusher, ev)
	})
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyMessage) {
			_ = writeSSE(w, flusher, assistant.Event{
				Type:  assistant.EventError,
				Error: "message is required",
			})
			return
		}
		// Write failure usually means the client disconnected.
		h.logger.Info("SSE stream interrupted", "conversation", req.ConversationID, "error", err)
		return
	}

	h.logger.Debug("SSE stream completed", "conversation", req.ConversationID)
}

// decode parses and validates the request body for the JSON endpoint.
func (h *chatHandler) decode(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return req, false
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "message is required", h.logger)
		return req, false
	}
	// Requests without a conversation get their own history rather than
	// sharing one anonymous thread.
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}
	return req, true
}

// decodeSSE parses the request body for the SSE endpoint; validation
// failures are reported in-stream since headers are already sent.
func (h *chatHandler) decodeSSE(w http.ResponseWriter, flusher http.Flusher, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = writeSSE(w, flusher, assistant.Event{
			Type:  assistant.EventError,
			Error: "invalid request body",
		})
		return req, false
	}
	if req.Message == "" {
		_ = writeSSE(w, flusher, assistant.Event{
			Type:  assistant.EventError,
			Error: "message is required",
		})
		return req, false
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}
	return req, true
}

// writeSSE writes one event as an SSE data frame: "data: {json}\n\n".
func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev assistant.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	flusher.Flush()
	return nil
}
