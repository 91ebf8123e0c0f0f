package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/medkitlab/sage/internal/assistant"
	"github.com/medkitlab/sage/internal/knowledge"
	"github.com/medkitlab/sage/internal/log"
	"github.com/medkitlab/sage/internal/testutil"
)

// scriptedResponder replays a fixed event sequence and records the request.
type scriptedResponder struct {
	events []assistant.Event
	err    error
	got    assistant.Request
}

func (s *scriptedResponder) Respond(ctx context.Context, req assistant.Request, emit assistant.EventCallback) error {
	s.got = req
	if s.err != nil {
		return s.err
	}
	for _, ev := range s.events {
		if err := emit(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func answerEvents(text string) []assistant.Event {
	return []assistant.Event{
		{Type: assistant.EventSources, Sources: []knowledge.DocumentChunk{
			{ID: "user-management", Title: "User Management", Category: "admin-ui", RelevanceScore: 0.82},
		}},
		{Type: assistant.EventContent, Content: text},
		{Type: assistant.EventDone, Mode: assistant.ModeAnswered, Confidence: 0.9},
	}
}

func newTestChatHandler(r *scriptedResponder) *chatHandler {
	return &chatHandler{assistant: r, logger: log.NewNop()}
}

func chatBody(t *testing.T, message, conversationID string) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"message":         message,
		"conversation_id": conversationID,
	})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewReader(body)
}

func TestChatSend_CollectsEvents(t *testing.T) {
	t.Parallel()

	resp := &scriptedResponder{events: answerEvents("You can manage users from the Users section.")}
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/ai/chat", chatBody(t, "how do I add a user", "conv-1"))

	newTestChatHandler(resp).send(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("send() status = %d, want %d\nbody: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var out chatResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Answer != "You can manage users from the Users section." {
		t.Errorf("answer = %q", out.Answer)
	}
	if out.Mode != assistant.ModeAnswered {
		t.Errorf("mode = %q, want %q", out.Mode, assistant.ModeAnswered)
	}
	if out.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", out.Confidence)
	}
	if len(out.Sources) != 1 || out.Sources[0].ID != "user-management" {
		t.Errorf("sources = %+v", out.Sources)
	}
	if out.Timestamp.IsZero() {
		t.Error("timestamp is zero")
	}

	if resp.got.ConversationID != "conv-1" {
		t.Errorf("conversation id = %q, want conv-1", resp.got.ConversationID)
	}
	if resp.got.Message != "how do I add a user" {
		t.Errorf("message = %q", resp.got.Message)
	}
}

func TestChatSend_ConcatenatesContentChunks(t *testing.T) {
	t.Parallel()

	resp := &scriptedResponder{events: []assistant.Event{
		{Type: assistant.EventContent, Content: "Hello"},
		{Type: assistant.EventContent, Content: ", world"},
		{Type: assistant.EventDone, Mode: assistant.ModeAnswered, Confidence: 0.9},
	}}
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/ai/chat", chatBody(t, "hi", ""))

	newTestChatHandler(resp).send(w, r)

	var out chatResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Answer != "Hello, world" {
		t.Errorf("answer = %q, want %q", out.Answer, "Hello, world")
	}
	if out.Sources == nil {
		t.Error("sources should be an empty array, not null")
	}
}

func TestChatSend_EmptyMessage(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/ai/chat", chatBody(t, "", "conv-1"))

	newTestChatHandler(&scriptedResponder{}).send(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("send() status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestChatSend_InvalidBody(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/ai/chat", strings.NewReader("{not json"))

	newTestChatHandler(&scriptedResponder{}).send(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("send() status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestChatSend_TerminalErrorEvent(t *testing.T) {
	t.Parallel()

	resp := &scriptedResponder{events: []assistant.Event{
		{Type: assistant.EventSources, Sources: nil},
		{Type: assistant.EventError, Error: "The request took too long. Please try a shorter question."},
	}}
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/ai/chat", chatBody(t, "slow question", ""))

	newTestChatHandler(resp).send(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("send() status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var out errorBody
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if !strings.Contains(out.Message, "took too long") {
		t.Errorf("message = %q", out.Message)
	}
}

func TestChatStream_ForwardsEventsAsFrames(t *testing.T) {
	t.Parallel()

	resp := &scriptedResponder{events: answerEvents("Streamed answer.")}
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/ai/chat/stream", chatBody(t, "how do I add a user", "conv-2"))

	newTestChatHandler(resp).stream(w, r)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}
	if ab := w.Header().Get("X-Accel-Buffering"); ab != "no" {
		t.Errorf("X-Accel-Buffering = %q, want no", ab)
	}

	frames := testutil.ParseSSEData(t, w.Body.String())
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3\nbody: %s", len(frames), w.Body.String())
	}

	var types []string
	for _, frame := range frames {
		var ev assistant.Event
		if err := json.Unmarshal([]byte(frame), &ev); err != nil {
			t.Fatalf("unmarshal frame %q: %v", frame, err)
		}
		types = append(types, string(ev.Type))
	}
	want := []string{"sources", "content", "done"}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("frame %d type = %q, want %q", i, types[i], want[i])
		}
	}

	var done assistant.Event
	if err := json.Unmarshal([]byte(frames[2]), &done); err != nil {
		t.Fatalf("unmarshal done frame: %v", err)
	}
	if done.Mode != assistant.ModeAnswered || done.Confidence != 0.9 {
		t.Errorf("done = %+v", done)
	}
}

func TestChatStream_EmptyMessageReportedInStream(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/ai/chat/stream", chatBody(t, "", ""))

	newTestChatHandler(&scriptedResponder{}).stream(w, r)

	// Headers are already committed, so the failure arrives as an error frame.
	if w.Code != http.StatusOK {
		t.Fatalf("stream() status = %d, want %d", w.Code, http.StatusOK)
	}
	frames := testutil.ParseSSEData(t, w.Body.String())
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	var ev assistant.Event
	if err := json.Unmarshal([]byte(frames[0]), &ev); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if ev.Type != assistant.EventError {
		t.Errorf("frame type = %q, want error", ev.Type)
	}
	if ev.Error != "message is required" {
		t.Errorf("error = %q", ev.Error)
	}
}

func TestChatStream_InvalidBodyReportedInStream(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/ai/chat/stream", strings.NewReader("{not json"))

	newTestChatHandler(&scriptedResponder{}).stream(w, r)

	frames := testutil.ParseSSEData(t, w.Body.String())
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	var ev assistant.Event
	if err := json.Unmarshal([]byte(frames[0]), &ev); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if ev.Type != assistant.EventError {
		t.Errorf("frame type = %q, want error", ev.Type)
	}
}
