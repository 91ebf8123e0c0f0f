package assistant

import (
	"context"

	"github.com/medkitlab/sage/internal/knowledge"
)

// EventType tags an event in the response stream.
type EventType string

const (
	// EventSources carries the retrieved documentation chunks.
	// Emitted at most once, and only when no tools are available,
	// since tool results supersede documentation.
	EventSources EventType = "sources"

	// EventFunctionCalling signals that the model requested a tool call.
	EventFunctionCalling EventType = "function_calling"

	// EventFunctionExecuted reports the outcome of one tool call.
	EventFunctionExecuted EventType = "function_executed"

	// EventContent carries a chunk of answer text. Repeatable.
	EventContent EventType = "content"

	// EventError is a terminal event carrying a user-safe error message.
	EventError EventType = "error"

	// EventDone is the terminal event of a successful response.
	EventDone EventType = "done"
)

// Response modes reported in the done event.
const (
	ModeAnswered          = "answered-without-tools"
	ModeAnsweredWithTools = "answered-with-tools"
	ModeRuleBased         = "rule-based"
)

// Event is one element of the response stream.
// Only the fields relevant to Type are populated.
type Event struct {
	Type EventType `json:"type"`

	// Sources payload.
	Sources []knowledge.DocumentChunk `json:"sources,omitempty"`

	// Function call payload (function_calling and function_executed).
	Name    string `json:"name,omitempty"`
	Success bool   `json:"success,omitempty"`

	// Content payload.
	Content string `json:"content,omitempty"`

	// Error payload (function_executed failures and the terminal error event).
	Error string `json:"error,omitempty"`

	// Done payload.
	Mode       string  `json:"mode,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// EventCallback receives each event as it is produced.
// Returning an error stops the stream; in-flight provider or tool calls
// are not proactively cancelled.
type EventCallback func(ctx context.Context, ev Event) error

func sourcesEvent(docs []knowledge.DocumentChunk) Event {
	return Event{Type: EventSources, Sources: docs}
}

func functionCallingEvent(name string) Event {
	return Event{Type: EventFunctionCalling, Name: name}
}

func functionExecutedEvent(name string, err error) Event {
	ev := Event{Type: EventFunctionExecuted, Name: name, Success: err == nil}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

func contentEvent(text string) Event {
	return Event{Type: EventContent, Content: text}
}

func errorEvent(message string) Event {
	return Event{Type: EventError, Error: message}
}

func doneEvent(mode string, confidence float64) Event {
	return Event{Type: EventDone, Mode: mode, Confidence: confidence}
}
