package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medkitlab/sage/internal/conversation"
	"github.com/medkitlab/sage/internal/knowledge"
	"github.com/medkitlab/sage/internal/log"
	"github.com/medkitlab/sage/internal/testutil"
)

// collector records every emitted event in order.
type collector struct {
	events []Event
}

func (c *collector) emit(_ context.Context, ev Event) error {
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) types() []EventType {
	out := make([]EventType, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type
	}
	return out
}

func (c *collector) content() string {
	var s string
	for _, ev := range c.events {
		if ev.Type == EventContent {
			s += ev.Content
		}
	}
	return s
}

func (c *collector) last() Event {
	return c.events[len(c.events)-1]
}

// terminals counts terminal events; every response must emit exactly one.
func (c *collector) terminals() int {
	n := 0
	for _, ev := range c.events {
		if ev.Type == EventDone || ev.Type == EventError {
			n++
		}
	}
	return n
}

var fixtureDocs = []knowledge.DocumentChunk{
	{
		ID:       "user-management",
		Title:    "User Management",
		Category: "admin-ui",
		Source:   "admin-guide",
		Content:  "Manage healthcare users and their FHIR Person associations from the Users section.",
	},
	{
		ID:       "scopes",
		Title:    "Scopes and Permissions",
		Category: "smart-on-fhir",
		Source:   "smart-guide",
		Content:  "SMART scopes control access to FHIR resources with patient, user and system contexts.",
	},
}

type fixture struct {
	assistant *Assistant
	mock      *testutil.MockLLM
	store     *conversation.Store
	genkit    *genkit.Genkit
}

// newFixture builds an assistant over a keyword-only index and a mock
// model. mutate adjusts the config before construction.
func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()

	g := genkit.Init(context.Background())
	mock := testutil.NewMockLLM("I can help with that.")
	model := mock.RegisterModel(g)

	store := conversation.NewStore(conversation.Config{
		CharBudget: 100_000,
		Retention:  time.Hour,
	}, log.NewNop())

	cfg := Config{
		Genkit: g,
		Model:  model,
		Index:  knowledge.NewIndex(fixtureDocs, nil, nil, log.NewNop()),
		Store:  store,
		Logger: log.NewNop(),
		RetryConfig: RetryConfig{
			MaxRetries:      1,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	return &fixture{assistant: a, mock: mock, store: store, genkit: g}
}

// stubRunner records tool calls and returns a canned result.
type stubRunner struct {
	calls  []string
	args   []map[string]any
	result string
	err    error
}

func (r *stubRunner) Call(_ context.Context, name string, args map[string]any) (string, error) {
	r.calls = append(r.calls, name)
	r.args = append(r.args, args)
	if r.err != nil {
		return "", r.err
	}
	return r.result, nil
}

// defineListUsersTool registers a tool on the test registry so it can be
// offered to the model.
func defineListUsersTool(g *genkit.Genkit) ai.ToolRef {
	schema := map[string]any{"type": "object", "properties": map[string]any{}}
	return genkit.DefineToolWithInputSchema(g, "list_healthcare_users", "List healthcare users",
		schema, func(_ *ai.ToolContext, _ any) (string, error) {
			return "", errors.New("executed out of band")
		})
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{
			name:        "nil genkit",
			mutate:      func(cfg *Config) { *cfg = Config{} },
			errContains: "genkit instance is required",
		},
		{
			name:        "missing model",
			mutate:      func(cfg *Config) { cfg.Model = nil; cfg.ModelName = "" },
			errContains: "model or model name is required",
		},
		{
			name:        "missing index",
			mutate:      func(cfg *Config) { cfg.Index = nil },
			errContains: "knowledge index is required",
		},
		{
			name:        "missing store",
			mutate:      func(cfg *Config) { cfg.Store = nil },
			errContains: "conversation store is required",
		},
		{
			name:        "missing logger",
			mutate:      func(cfg *Config) { cfg.Logger = nil },
			errContains: "logger is required",
		},
		{
			name: "tools without runner",
			mutate: func(cfg *Config) {
				cfg.Tools = []ai.ToolRef{defineListUsersTool(cfg.Genkit)}
				cfg.Runner = nil
			},
			errContains: "tool runner is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := genkit.Init(context.Background())
			mock := testutil.NewMockLLM("ok")
			cfg := Config{
				Genkit: g,
				Model:  mock.RegisterModel(g),
				Index:  knowledge.NewIndex(fixtureDocs, nil, nil, log.NewNop()),
				Store:  conversation.NewStore(conversation.Config{CharBudget: 1000}, log.NewNop()),
				Logger: log.NewNop(),
			}
			tt.mutate(&cfg)
			_, err := New(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestRespondEmptyMessage(t *testing.T) {
	f := newFixture(t, nil)
	err := f.assistant.Respond(context.Background(), Request{Message: "   "}, (&collector{}).emit)
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestRespondAnswersWithoutTools(t *testing.T) {
	f := newFixture(t, nil)
	f.mock.AddResponse("scopes", "Scopes gate access to FHIR resources.")

	var c collector
	err := f.assistant.Respond(context.Background(), Request{
		ConversationID: "conv-1",
		Message:        "How do scopes work?",
	}, c.emit)
	require.NoError(t, err)

	require.Equal(t, []EventType{EventSources, EventContent, EventDone}, c.types())
	assert.Equal(t, "Scopes gate access to FHIR resources.", c.content())

	done := c.last()
	assert.Equal(t, ModeAnswered, done.Mode)
	assert.InDelta(t, 0.9, done.Confidence, 1e-9)
	assert.Equal(t, 1, c.terminals())

	// Retrieval found the scopes document.
	require.NotEmpty(t, c.events[0].Sources)
	assert.Equal(t, "scopes", c.events[0].Sources[0].ID)

	// Both turns persisted with dense indices.
	assert.Equal(t, 2, f.store.Len("conv-1"))
	user, err := f.store.GetMessage("conv-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "How do scopes work?", user)
}

func TestRespondPageContextReachesModel(t *testing.T) {
	f := newFixture(t, nil)
	f.mock.AddResponse("scopes", "Answer.")

	var c collector
	err := f.assistant.Respond(context.Background(), Request{
		Message:     "What are scopes?",
		PageContext: "Scope Management page with 12 templates",
	}, c.emit)
	require.NoError(t, err)

	calls := f.mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].UserMessage, "[Current Page Context]")
	assert.Contains(t, calls[0].UserMessage, "12 templates")
}

func TestRespondNoRelevantDocs(t *testing.T) {
	f := newFixture(t, nil)

	var c collector
	err := f.assistant.Respond(context.Background(), Request{Message: "xylophone zeppelin"}, c.emit)
	require.NoError(t, err)

	require.Equal(t, []EventType{EventSources, EventContent, EventDone}, c.types())
	assert.Empty(t, c.events[0].Sources)
	assert.Equal(t, generalHelp, c.content())
	assert.Equal(t, ModeRuleBased, c.last().Mode)
	assert.InDelta(t, 0.5, c.last().Confidence, 1e-9)

	// The model is never consulted without retrieved context.
	assert.Empty(t, f.mock.Calls())
}

func TestRespondExecutesRequestedTools(t *testing.T) {
	runner := &stubRunner{result: `{"users": []}`}
	f := newFixture(t, func(cfg *Config) {
		cfg.Tools = []ai.ToolRef{defineListUsersTool(cfg.Genkit)}
		cfg.Runner = runner
	})
	f.mock.AddToolResponse("users", []*ai.ToolRequest{
		{Ref: "call-1", Name: "list_healthcare_users", Input: map[string]any{}},
	}, "Checking the user directory.")

	var c collector
	err := f.assistant.Respond(context.Background(), Request{
		ConversationID: "conv-tools",
		Message:        "Show me the healthcare users",
	}, c.emit)
	require.NoError(t, err)

	// Tools available, so no sources event.
	require.Equal(t, []EventType{
		EventFunctionCalling,
		EventContent,
		EventFunctionExecuted,
		EventContent,
		EventDone,
	}, c.types())

	assert.Equal(t, "list_healthcare_users", c.events[0].Name)
	executed := c.events[2]
	assert.Equal(t, "list_healthcare_users", executed.Name)
	assert.True(t, executed.Success)
	assert.Empty(t, executed.Error)

	assert.Equal(t, ModeAnsweredWithTools, c.last().Mode)
	assert.Equal(t, 1, c.terminals())

	require.Equal(t, []string{"list_healthcare_users"}, runner.calls)
	assert.Equal(t, map[string]any{}, runner.args[0])

	// Two model turns: tool decision and final answer.
	assert.Len(t, f.mock.Calls(), 2)
}

func TestRespondToolFailureFedBack(t *testing.T) {
	runner := &stubRunner{err: errors.New("backend returned 503")}
	f := newFixture(t, func(cfg *Config) {
		cfg.Tools = []ai.ToolRef{defineListUsersTool(cfg.Genkit)}
		cfg.Runner = runner
	})
	f.mock.AddToolResponse("users", []*ai.ToolRequest{
		{Ref: "call-1", Name: "list_healthcare_users", Input: map[string]any{}},
	}, "Let me check.")

	var c collector
	err := f.assistant.Respond(context.Background(), Request{Message: "list the users"}, c.emit)
	require.NoError(t, err)

	var executed *Event
	for i := range c.events {
		if c.events[i].Type == EventFunctionExecuted {
			executed = &c.events[i]
		}
	}
	require.NotNil(t, executed)
	assert.False(t, executed.Success)
	assert.Contains(t, executed.Error, "503")

	// The failure is terminal for the call, not for the response.
	assert.Equal(t, EventDone, c.last().Type)
	assert.Equal(t, ModeAnsweredWithTools, c.last().Mode)
}

// The final turn sees the same user message, so the mock requests the
// same tool again; a second request must neither execute nor announce.
func TestRespondFinalTurnToolRequestsDiscarded(t *testing.T) {
	runner := &stubRunner{result: `{"users": []}`}
	f := newFixture(t, func(cfg *Config) {
		cfg.Tools = []ai.ToolRef{defineListUsersTool(cfg.Genkit)}
		cfg.Runner = runner
	})
	f.mock.AddToolResponse("users", []*ai.ToolRequest{
		{Ref: "call-1", Name: "list_healthcare_users", Input: map[string]any{}},
	}, "Here is the directory.")

	var c collector
	err := f.assistant.Respond(context.Background(), Request{Message: "show users"}, c.emit)
	require.NoError(t, err)

	var calling, executed int
	for _, ev := range c.events {
		switch ev.Type {
		case EventFunctionCalling:
			calling++
		case EventFunctionExecuted:
			executed++
		}
	}
	assert.Equal(t, 1, calling)
	assert.Equal(t, 1, executed)
	assert.Equal(t, []string{"list_healthcare_users"}, runner.calls)

	assert.Equal(t, EventDone, c.last().Type)
	assert.Equal(t, ModeAnsweredWithTools, c.last().Mode)
	assert.Equal(t, 1, c.terminals())

	// The protocol stops after the second turn even though it also
	// requested a tool.
	assert.Len(t, f.mock.Calls(), 2)
}

func TestRespondRateLimitBecomesErrorEvent(t *testing.T) {
	f := newFixture(t, nil)
	f.mock.FailWith(errors.New("429 rate limit exceeded"), 5)

	var c collector
	err := f.assistant.Respond(context.Background(), Request{Message: "scopes please"}, c.emit)
	require.NoError(t, err)

	require.Equal(t, []EventType{EventSources, EventError}, c.types())
	assert.Equal(t, msgRateLimit, c.last().Error)
	assert.Equal(t, 1, c.terminals())
}

func TestRespondTimeoutNotRetried(t *testing.T) {
	f := newFixture(t, nil)
	f.mock.FailWith(errors.New("context deadline exceeded: timeout"), 1)
	f.mock.AddResponse("scopes", "Too late to matter.")

	var c collector
	err := f.assistant.Respond(context.Background(), Request{Message: "scopes please"}, c.emit)
	require.NoError(t, err)

	// A timed-out call surfaces immediately; the queued success response
	// must never be reached by a second attempt.
	require.Equal(t, []EventType{EventSources, EventError}, c.types())
	assert.Equal(t, msgTimeout, c.last().Error)
	assert.Empty(t, f.mock.Calls())
}

func TestRespondPressureCountsMessageOnce(t *testing.T) {
	store := conversation.NewStore(conversation.Config{
		CharBudget: 120,
		Retention:  time.Hour,
	}, log.NewNop())
	f := newFixture(t, func(cfg *Config) {
		cfg.Store = store
	})

	// Six prior turns totaling 90 characters. The 20-character message
	// lands at 110, inside the budget; counting it both in the history
	// and as pending input would read 130 and request a summary.
	for i := range 6 {
		role := conversation.RoleUser
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		store.Append("conv", role, strings.Repeat("x", 15))
	}

	var c collector
	err := f.assistant.Respond(context.Background(), Request{
		ConversationID: "conv",
		Message:        "tell me about scopes",
	}, c.emit)
	require.NoError(t, err)

	f.assistant.Close()
	assert.Len(t, f.mock.Calls(), 1)
}

func TestRespondStreamingUnsupportedFallsBack(t *testing.T) {
	f := newFixture(t, nil)
	f.mock.AddResponse("scopes", "Scopes explained without streaming.")
	f.mock.FailWith(errors.New("streaming is not supported for this model"), 1)

	var c collector
	err := f.assistant.Respond(context.Background(), Request{Message: "tell me about scopes"}, c.emit)
	require.NoError(t, err)

	require.Equal(t, []EventType{EventSources, EventContent, EventDone}, c.types())
	assert.Equal(t, "Scopes explained without streaming.", c.content())
	assert.Equal(t, ModeAnswered, c.last().Mode)

	calls := f.mock.Calls()
	require.Len(t, calls, 1)
	assert.False(t, calls[0].Streamed)
}

func TestRespondExhaustionFallsBackToRules(t *testing.T) {
	f := newFixture(t, nil)
	f.mock.FailWith(errors.New("streaming is not supported for this model"), 4)

	var c collector
	err := f.assistant.Respond(context.Background(), Request{
		Message: "How do I configure scopes and permissions?",
	}, c.emit)
	require.NoError(t, err)

	require.Equal(t, []EventType{EventSources, EventContent, EventDone}, c.types())
	assert.Equal(t, scopeManagementHelp, c.content())
	assert.Equal(t, ModeRuleBased, c.last().Mode)
	assert.InDelta(t, 0.7, c.last().Confidence, 1e-9)
}

func TestRespondCircuitOpenUsesRules(t *testing.T) {
	f := newFixture(t, nil)
	for range 10 {
		f.assistant.breaker.Failure()
	}
	require.Equal(t, CircuitOpen, f.assistant.breaker.State())

	var c collector
	err := f.assistant.Respond(context.Background(), Request{Message: "where do I manage users?"}, c.emit)
	require.NoError(t, err)

	assert.Equal(t, EventDone, c.last().Type)
	assert.Equal(t, ModeRuleBased, c.last().Mode)
	assert.Empty(t, f.mock.Calls())
}

func TestClassifyFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want failureKind
	}{
		{"rate limit", errors.New("429 Too Many Requests"), failureRateLimit},
		{"quota", errors.New("quota exceeded for project"), failureRateLimit},
		{"timeout", errors.New("context deadline exceeded"), failureTimeout},
		{"streaming unsupported", errors.New("Streaming is unsupported by this endpoint"), failureStreamingUnsupported},
		{"stream not supported", errors.New("stream mode not supported"), failureStreamingUnsupported},
		{"generic", errors.New("internal provider error"), failureGeneric},
		{"nil", nil, failureGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, classifyFailure(tt.err))
		})
	}
}

func TestRetryableError(t *testing.T) {
	t.Parallel()

	assert.True(t, retryableError(errors.New("429 rate limit")))
	assert.True(t, retryableError(errors.New("503 Service Unavailable")))
	assert.True(t, retryableError(errors.New("connection reset by peer")))
	assert.False(t, retryableError(errors.New("invalid request")))
	assert.False(t, retryableError(errors.New("context deadline exceeded: timeout")))
	assert.False(t, retryableError(nil))
}

func TestRuleBasedResponseRouting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"navigate to users", "where is the user section?", userManagementHelp},
		{"navigate to apps", "go to the smart apps section", smartAppsHelp},
		{"navigate to servers", "where do I find fhir servers?", fhirServersHelp},
		{"identity provider", "configure saml authentication", identityProviderHelp},
		{"scopes", "what permissions exist?", scopeManagementHelp},
		{"launch context", "set up a launch for the app", launchContextHelp},
		{"oauth", "monitor oauth flows", oauthMonitoringHelp},
		{"dashboard", "show me the dashboard", dashboardHelp},
		{"default", "hmm", generalHelp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ruleBasedResponse(tt.message, nil)
			assert.Equal(t, tt.want, got.answer)
			assert.InDelta(t, 0.6, got.confidence, 1e-9)
		})
	}
}

func TestRuleBasedContextualResponse(t *testing.T) {
	t.Parallel()

	docs := []knowledge.DocumentChunk{{
		ID:       "smart-app-launch",
		Title:    "SMART App Launch Framework",
		Category: "smart-on-fhir",
		Content:  "The SMART App Launch Framework connects third-party applications to EHR data.",
	}}

	got := ruleBasedResponse("tell me something unrelated to any keyword", docs)
	assert.Contains(t, got.answer, "According to the SMART App Launch Framework documentation")
	assert.InDelta(t, 0.7, got.confidence, 1e-9)
}
