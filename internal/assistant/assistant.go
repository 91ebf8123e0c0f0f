package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/medkitlab/sage/internal/conversation"
	"github.com/medkitlab/sage/internal/knowledge"
	"github.com/medkitlab/sage/internal/log"
)

// Default generation parameters, applied when Config leaves them zero.
const (
	defaultMaxSearchResults   = 5
	defaultRelevanceThreshold = 0.3
	defaultMaxTokens          = 4000
	summaryMaxTokens          = 800
	summaryTemperature        = 0.3
)

// ErrEmptyMessage is returned when a request carries no message text.
var ErrEmptyMessage = errors.New("message is empty")

// ToolRunner executes one administrative action on the remote tool channel.
// Implemented by toolbox.Catalog.
type ToolRunner interface {
	Call(ctx context.Context, name string, args map[string]any) (string, error)
}

// Config contains all required parameters for the Assistant.
type Config struct {
	Genkit *genkit.Genkit
	Model  ai.Model // Optional: overrides ModelName when set
	Index  *knowledge.Index
	Store  *conversation.Store
	Logger log.Logger

	// Tool channel. Both empty means tool-less mode: the assistant
	// answers from documentation only.
	Tools  []ai.ToolRef
	Runner ToolRunner

	// Generation parameters
	ModelName   string
	Temperature float32
	MaxTokens   int

	// Retrieval parameters
	MaxSearchResults   int
	RelevanceThreshold float64

	// Resilience configuration (zero values use defaults)
	RetryConfig          RetryConfig
	CircuitBreakerConfig CircuitBreakerConfig
	RateLimiter          *rate.Limiter
}

// validate checks if all required parameters are present.
func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Model == nil && cfg.ModelName == "" {
		return errors.New("model or model name is required")
	}
	if cfg.Index == nil {
		return errors.New("knowledge index is required")
	}
	if cfg.Store == nil {
		return errors.New("conversation store is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if len(cfg.Tools) > 0 && cfg.Runner == nil {
		return errors.New("tool runner is required when tools are registered")
	}
	return nil
}

// Request is one user turn.
type Request struct {
	ConversationID string // Empty disables conversation memory for this turn
	Message        string
	PageContext    string // Optional visible page content from the caller
}

// Assistant drives the two-turn streaming response protocol.
//
// All configuration is captured immutably at construction time, so one
// Assistant serves concurrent requests safely.
type Assistant struct {
	g          *genkit.Genkit
	model      ai.Model
	modelName  string
	index      *knowledge.Index
	store      *conversation.Store
	summarizer *conversation.Summarizer
	tools      []ai.ToolRef
	runner     ToolRunner
	logger     log.Logger

	temperature float32
	maxTokens   int
	maxResults  int
	threshold   float64

	retryConfig RetryConfig
	breaker     *CircuitBreaker
	limiter     *rate.Limiter
}

// New creates an Assistant. The Assistant owns a background summarizer
// bound to the conversation store; call Close to drain it.
func New(cfg Config) (*Assistant, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid assistant config: %w", err)
	}

	if cfg.RetryConfig.MaxRetries == 0 {
		cfg.RetryConfig = DefaultRetryConfig()
	}
	if cfg.RateLimiter == nil {
		// 10 req/s sustained, burst of 30
		cfg.RateLimiter = rate.NewLimiter(rate.Limit(10), 30)
	}
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = defaultMaxSearchResults
	}
	if cfg.RelevanceThreshold <= 0 {
		cfg.RelevanceThreshold = defaultRelevanceThreshold
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	a := &Assistant{
		g:           cfg.Genkit,
		model:       cfg.Model,
		modelName:   cfg.ModelName,
		index:       cfg.Index,
		store:       cfg.Store,
		tools:       cfg.Tools,
		runner:      cfg.Runner,
		logger:      cfg.Logger,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxResults:  cfg.MaxSearchResults,
		threshold:   cfg.RelevanceThreshold,
		retryConfig: cfg.RetryConfig,
		breaker:     NewCircuitBreaker(cfg.CircuitBreakerConfig),
		limiter:     cfg.RateLimiter,
	}
	a.summarizer = conversation.NewSummarizer(cfg.Store, a.summarize, cfg.Logger)
	return a, nil
}

// Close drains the background summarizer.
func (a *Assistant) Close() {
	a.summarizer.Close()
}

// Respond answers one user turn, emitting events to emit as they are
// produced. Exactly one terminal event (error or done) is emitted per
// call; the returned error reports caller mistakes and emit failures,
// never provider failures, which are absorbed into the event stream.
func (a *Assistant) Respond(ctx context.Context, req Request, emit EventCallback) error {
	if strings.TrimSpace(req.Message) == "" {
		return ErrEmptyMessage
	}

	enhanced := enhanceMessage(req.Message, req.PageContext)

	// Record the user turn before generation so rendering sees it. The
	// message is already in the history at this point, so pressure checks
	// take no separate pending input.
	var history string
	if req.ConversationID != "" {
		a.store.Append(req.ConversationID, conversation.RoleUser, req.Message)
		history = a.store.RenderContext(req.ConversationID, "")
		if a.store.NeedsSummarization(req.ConversationID, "") {
			a.summarizer.Trigger(req.ConversationID)
		}
	}

	docs := a.retrieve(ctx, enhanced)

	// Tool results supersede documentation, so sources are only
	// surfaced when no tools are available.
	if len(a.tools) == 0 {
		if err := emit(ctx, sourcesEvent(docs)); err != nil {
			return err
		}
	}

	if len(docs) == 0 {
		return a.finish(ctx, req, emit, generalHelp, ModeRuleBased, 0.5)
	}

	system := buildSystemPrompt(buildRAGContext(history, docs))
	return a.respondWithModel(ctx, req, emit, system, enhanced, docs)
}

// retrieve searches the knowledge corpus and drops low-relevance hits.
func (a *Assistant) retrieve(ctx context.Context, query string) []knowledge.DocumentChunk {
	docs := a.index.Search(ctx, query, a.maxResults)
	kept := docs[:0]
	for _, doc := range docs {
		if doc.RelevanceScore >= a.threshold {
			kept = append(kept, doc)
		}
	}
	return kept
}

// respondWithModel runs the two-turn protocol against the completion
// provider, falling back to the rule-based responder when every
// generation path fails.
func (a *Assistant) respondWithModel(
	ctx context.Context,
	req Request,
	emit EventCallback,
	system, enhanced string,
	docs []knowledge.DocumentChunk,
) error {
	if err := a.breaker.Allow(); err != nil {
		a.logger.Warn("circuit breaker open, using rule-based response",
			"state", a.breaker.State().String())
		rb := ruleBasedResponse(req.Message, docs)
		return a.finish(ctx, req, emit, rb.answer, ModeRuleBased, rb.confidence)
	}

	userMsg := ai.NewUserMessage(ai.NewTextPart(enhanced))

	turn1 := newTurnCollector(ctx, emit, true)
	resp, err := a.generateWithRetry(ctx, func(ctx context.Context) (*ai.ModelResponse, error) {
		return genkit.Generate(ctx, a.g, a.turnOptions(system, []*ai.Message{userMsg}, true, turn1.onChunk)...)
	})
	if err != nil {
		if turn1.emitErr != nil {
			// The caller stopped the stream; provider state is fine.
			return turn1.emitErr
		}
		a.breaker.Failure()
		return a.recoverTurn1(ctx, req, emit, err, system, userMsg, docs)
	}
	a.breaker.Success()

	pending := resp.ToolRequests()
	if len(pending) == 0 || a.runner == nil {
		text := turn1.text.String()
		if text == "" {
			// Some providers deliver the whole turn in one
			// non-incremental payload.
			text = resp.Text()
			if text != "" {
				if err := emit(ctx, contentEvent(text)); err != nil {
					return err
				}
			}
		}
		return a.finish(ctx, req, emit, text, ModeAnswered, 0.9, withoutContent)
	}

	// EXECUTE_TOOLS: all calls are attempted; a failure is fed back to
	// the model as a tool output, not swallowed.
	toolParts := make([]*ai.Part, 0, len(pending))
	for _, tr := range pending {
		if !turn1.announced[announceKey(tr)] {
			if err := emit(ctx, functionCallingEvent(tr.Name)); err != nil {
				return err
			}
		}
		args, _ := tr.Input.(map[string]any)
		if args == nil {
			args = map[string]any{}
		}

		output, callErr := a.runner.Call(ctx, tr.Name, args)
		if callErr != nil {
			a.logger.Warn("tool call failed", "tool", tr.Name, "error", callErr)
			output = fmt.Sprintf("Error: %v", callErr)
		}
		if err := emit(ctx, functionExecutedEvent(tr.Name, callErr)); err != nil {
			return err
		}

		toolParts = append(toolParts, ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   tr.Name,
			Ref:    tr.Ref,
			Output: output,
		}))
	}

	// TURN 2: original user turn, the complete turn-1 output message
	// verbatim, then the tool outputs. No tools are offered; the
	// protocol is bounded to two turns.
	turn2Input := []*ai.Message{
		userMsg,
		resp.Message,
		{Role: ai.RoleTool, Content: toolParts},
	}

	turn2 := newTurnCollector(ctx, emit, false)
	resp2, err := a.generateWithRetry(ctx, func(ctx context.Context) (*ai.ModelResponse, error) {
		return genkit.Generate(ctx, a.g, a.turnOptions(system, turn2Input, false, turn2.onChunk)...)
	})
	if err != nil {
		if turn2.emitErr != nil {
			return turn2.emitErr
		}
		a.breaker.Failure()
		a.logger.Error("final turn failed", "error", err)
		return emit(ctx, errorEvent(classifyFailure(err).userMessage()))
	}
	a.breaker.Success()

	// The protocol is bounded to two turns: calls requested now are
	// dropped without execution or announcement.
	if dropped := resp2.ToolRequests(); len(dropped) > 0 {
		a.logger.Warn("final turn requested tools, discarding", "count", len(dropped))
	}

	text := turn1.text.String() + turn2.text.String()
	if turn2.text.Len() == 0 {
		if salvaged := resp2.Text(); salvaged != "" {
			if err := emit(ctx, contentEvent(salvaged)); err != nil {
				return err
			}
			text += salvaged
		}
	}
	return a.finish(ctx, req, emit, text, ModeAnsweredWithTools, 0.9, withoutContent)
}

// recoverTurn1 handles a failed first turn: unsupported streaming falls
// back to a non-streaming call, exhaustion falls back to the rule-based
// responder, and everything else becomes a terminal error event.
func (a *Assistant) recoverTurn1(
	ctx context.Context,
	req Request,
	emit EventCallback,
	genErr error,
	system string,
	userMsg *ai.Message,
	docs []knowledge.DocumentChunk,
) error {
	kind := classifyFailure(genErr)
	if kind != failureStreamingUnsupported {
		a.logger.Error("streaming generation failed", "error", genErr)
		return emit(ctx, errorEvent(kind.userMessage()))
	}

	a.logger.Info("streaming not supported, falling back to non-streaming")
	resp, err := a.generateWithRetry(ctx, func(ctx context.Context) (*ai.ModelResponse, error) {
		return genkit.Generate(ctx, a.g, a.turnOptions(system, []*ai.Message{userMsg}, false, nil)...)
	})
	if err == nil {
		a.breaker.Success()
		return a.finish(ctx, req, emit, resp.Text(), ModeAnswered, 0.9)
	}

	a.breaker.Failure()
	a.logger.Error("non-streaming fallback failed", "error", err)
	rb := ruleBasedResponse(req.Message, docs)
	return a.finish(ctx, req, emit, rb.answer, ModeRuleBased, rb.confidence)
}

type finishOption int

// withoutContent suppresses the content event when the text was already
// streamed incrementally.
const withoutContent finishOption = iota

// finish emits the terminal done event, persists the assistant turn and
// nudges the summarizer.
func (a *Assistant) finish(
	ctx context.Context,
	req Request,
	emit EventCallback,
	text, mode string,
	confidence float64,
	opts ...finishOption,
) error {
	if len(opts) == 0 && text != "" {
		if err := emit(ctx, contentEvent(text)); err != nil {
			return err
		}
	}

	if req.ConversationID != "" && text != "" {
		a.store.Append(req.ConversationID, conversation.RoleAssistant, text)
		if a.store.NeedsSummarization(req.ConversationID, "") {
			a.summarizer.Trigger(req.ConversationID)
		}
	}

	return emit(ctx, doneEvent(mode, confidence))
}

// turnOptions assembles the generate options for one model turn.
func (a *Assistant) turnOptions(
	system string,
	messages []*ai.Message,
	offerTools bool,
	onChunk ai.ModelStreamCallback,
) []ai.GenerateOption {
	opts := []ai.GenerateOption{
		ai.WithSystem(system),
		ai.WithMessages(messages...),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature:     float64(a.temperature),
			MaxOutputTokens: a.maxTokens,
		}),
	}
	if a.model != nil {
		opts = append(opts, ai.WithModel(a.model))
	} else {
		opts = append(opts, ai.WithModelName(a.modelName))
	}
	// Tool requests are always surfaced rather than resolved in-framework,
	// even on the final turn where no tools are offered: a model that
	// requests one anyway must not fail the turn.
	opts = append(opts, ai.WithReturnToolRequests(true))
	if offerTools && len(a.tools) > 0 {
		opts = append(opts, ai.WithTools(a.tools...))
	}
	if onChunk != nil {
		opts = append(opts, ai.WithStreaming(onChunk))
	}
	return opts
}

// turnCollector accumulates one streamed turn: text deltas are forwarded
// as content events and tool-call announcements are deduplicated.
// announceTools is false on the final turn, where requested calls are
// never executed and must not be announced.
type turnCollector struct {
	ctx           context.Context
	emit          EventCallback
	announceTools bool
	text          strings.Builder
	announced     map[string]bool
	emitErr       error
}

func newTurnCollector(ctx context.Context, emit EventCallback, announceTools bool) *turnCollector {
	return &turnCollector{
		ctx:           ctx,
		emit:          emit,
		announceTools: announceTools,
		announced:     make(map[string]bool),
	}
}

// onChunk union-handles every chunk part: a turn may interleave prose
// and tool requests, and the path is only decided after the turn ends.
func (tc *turnCollector) onChunk(_ context.Context, chunk *ai.ModelResponseChunk) error {
	for _, part := range chunk.Content {
		switch {
		case part.IsText():
			if part.Text == "" {
				continue
			}
			tc.text.WriteString(part.Text)
			if err := tc.emit(tc.ctx, contentEvent(part.Text)); err != nil {
				tc.emitErr = err
				return err
			}
		case part.IsToolRequest():
			if !tc.announceTools {
				continue
			}
			key := announceKey(part.ToolRequest)
			if tc.announced[key] {
				continue
			}
			tc.announced[key] = true
			if err := tc.emit(tc.ctx, functionCallingEvent(part.ToolRequest.Name)); err != nil {
				tc.emitErr = err
				return err
			}
		}
	}
	return nil
}

func announceKey(tr *ai.ToolRequest) string {
	return tr.Name + "\x00" + tr.Ref
}

// summarize condenses a conversation transcript. Runs on the background
// summarizer, off the request path.
func (a *Assistant) summarize(ctx context.Context, transcript string) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithSystem(summarySystemPrompt),
		ai.WithPrompt("Summarize this conversation:\n\n" + transcript),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature:     summaryTemperature,
			MaxOutputTokens: summaryMaxTokens,
		}),
	}
	if a.model != nil {
		opts = append(opts, ai.WithModel(a.model))
	} else {
		opts = append(opts, ai.WithModelName(a.modelName))
	}

	resp, err := genkit.Generate(ctx, a.g, opts...)
	if err != nil {
		return "", fmt.Errorf("summary generation: %w", err)
	}
	summary := strings.TrimSpace(resp.Text())
	if summary == "" {
		return "", errors.New("summary generation returned empty text")
	}
	return summary, nil
}
