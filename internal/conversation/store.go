// Package conversation maintains the per-conversation message log the
// assistant reasons over: an append-only sequence of indexed messages, a
// context-budget-aware rendering of that sequence, and lazily applied
// summaries of older turns.
//
// Messages are never deleted by summarization. A summary elides old turns
// from the rendered context only; every message stays retrievable by its
// index, so summarization is lossy for the prompt but lossless for storage.
// Whole conversations are evicted only by retention age, checked lazily on
// access rather than by a background timer.
package conversation

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/medkitlab/sage/internal/log"
)

var (
	// ErrConversationNotFound indicates the conversation id is unknown.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrMessageNotFound indicates no message exists at the given index.
	ErrMessageNotFound = errors.New("message not found")
)

// Roles for Message.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// summaryStaleAfter is how many messages may accumulate past an existing
// summary before a fresh one is requested.
const summaryStaleAfter = 20

// keepRecentMessages is how many trailing messages a summary never covers,
// so the model always sees the latest exchanges verbatim.
const keepRecentMessages = 5

// Message is a single turn in a conversation. Index is 1-based, dense,
// assigned at append time and never reused.
type Message struct {
	Index     int       `json:"index"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// conversation is the store-internal record. Guarded by Store.mu.
type conversation struct {
	id           string
	messages     []Message
	createdAt    time.Time
	lastActivity time.Time

	summary          string
	summaryUpToIndex int // 0 = no summary; only ever increases
}

// Stats describes the store contents for diagnostics.
type Stats struct {
	TotalConversations int `json:"total_conversations"`
	TotalMessages      int `json:"total_messages"`
}

// Config configures a Store.
type Config struct {
	// CharBudget is the character budget for rendered history, the proxy
	// for the model's context window.
	CharBudget int

	// Retention is how long an idle conversation is kept.
	Retention time.Duration

	// CleanupInterval is the minimum time between lazy eviction sweeps.
	CleanupInterval time.Duration
}

// Store holds every active conversation. All access is serialized by one
// mutex, so index assignment and summary application are atomic even when
// requests race on the same conversation id.
type Store struct {
	mu            sync.Mutex
	conversations map[string]*conversation
	lastCleanup   time.Time

	cfg    Config
	logger log.Logger

	now func() time.Time // injectable clock for tests
}

// NewStore creates an empty conversation store.
func NewStore(cfg Config, logger log.Logger) *Store {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	s := &Store{
		conversations: make(map[string]*conversation),
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
	s.lastCleanup = s.now()
	return s
}

// Append adds a message to the conversation, creating it on first use, and
// returns the assigned 1-based index.
func (s *Store) Append(conversationID, role, content string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maybeCleanupLocked()

	conv := s.getOrCreateLocked(conversationID)
	now := s.now()
	msg := Message{
		Index:     len(conv.messages) + 1,
		Role:      role,
		Content:   content,
		Timestamp: now,
	}
	conv.messages = append(conv.messages, msg)
	conv.lastActivity = now

	s.logger.Debug("message appended",
		"conversation", conversationID,
		"index", msg.Index,
		"role", role)
	return msg.Index
}

// RenderContext builds the history block injected into the prompt for the
// given pending user input.
//
// Under the character budget, every message is rendered in full with its
// index tag. Over budget ("context pressure") with a summary available, the
// summary replaces all messages it covers and only newer messages are
// rendered in full. Over budget with no summary yet, everything is still
// rendered in full for this turn; summarization is asynchronous and will
// catch up on a later request.
func (s *Store) RenderContext(conversationID, pendingInput string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok || len(conv.messages) == 0 {
		return ""
	}

	pressure := s.underPressureLocked(conv, pendingInput)

	var b strings.Builder
	if pressure && conv.summaryUpToIndex > 0 {
		fmt.Fprintf(&b, "## Conversation Summary (messages 1-%d)\n%s\n\n## Recent Messages\n",
			conv.summaryUpToIndex, conv.summary)
		for _, msg := range conv.messages {
			if msg.Index > conv.summaryUpToIndex {
				writeMessage(&b, msg)
			}
		}
	} else {
		b.WriteString("## Conversation History\n")
		for _, msg := range conv.messages {
			writeMessage(&b, msg)
		}
	}
	b.WriteString("(The full content of any [index] message can be retrieved on request.)\n")
	return b.String()
}

func writeMessage(b *strings.Builder, msg Message) {
	role := "User"
	if msg.Role == RoleAssistant {
		role = "Assistant"
	}
	fmt.Fprintf(b, "[%d] %s: %s\n", msg.Index, role, msg.Content)
}

// NeedsSummarization reports whether a background summary should be
// requested: the conversation is under context pressure and either no
// summary exists or more than summaryStaleAfter messages accumulated since
// the last one.
func (s *Store) NeedsSummarization(conversationID, pendingInput string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok || len(conv.messages) == 0 {
		return false
	}
	if !s.underPressureLocked(conv, pendingInput) {
		return false
	}
	return conv.summaryUpToIndex == 0 ||
		len(conv.messages)-conv.summaryUpToIndex > summaryStaleAfter
}

// underPressureLocked reports whether total history characters plus the
// pending input exceed the configured budget.
func (s *Store) underPressureLocked(conv *conversation, pendingInput string) bool {
	total := len(pendingInput)
	for _, msg := range conv.messages {
		total += len(msg.Content)
	}
	return total > s.cfg.CharBudget
}

// SummarizationTarget returns the transcript of messages a summary should
// cover and the index of the last covered message. It returns ok=false when
// there is nothing new to summarize (all but the most recent messages are
// already covered).
func (s *Store) SummarizationTarget(conversationID string) (transcript string, upToIndex int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, found := s.conversations[conversationID]
	if !found {
		return "", 0, false
	}

	upToIndex = len(conv.messages) - keepRecentMessages
	if upToIndex <= conv.summaryUpToIndex {
		return "", 0, false
	}

	var parts []string
	for _, msg := range conv.messages {
		if msg.Index > conv.summaryUpToIndex && msg.Index <= upToIndex {
			role := "User"
			if msg.Role == RoleAssistant {
				role = "Assistant"
			}
			parts = append(parts, fmt.Sprintf("[%d] %s: %s", msg.Index, role, msg.Content))
		}
	}
	return strings.Join(parts, "\n\n"), upToIndex, true
}

// StoreSummary records a generated summary covering messages 1..upToIndex
// and appends the summary text as a regular assistant message so it remains
// retrievable like any other turn.
//
// summaryUpToIndex never decreases: a stale summary arriving after a newer
// one updates nothing but its message is still appended (each call is a
// distinct event, not deduplicated).
func (s *Store) StoreSummary(conversationID, summary string, upToIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}

	if upToIndex > conv.summaryUpToIndex {
		conv.summary = summary
		conv.summaryUpToIndex = upToIndex
	}

	now := s.now()
	conv.messages = append(conv.messages, Message{
		Index:     len(conv.messages) + 1,
		Role:      RoleAssistant,
		Content:   fmt.Sprintf("[Conversation summary of messages 1-%d]\n%s", upToIndex, summary),
		Timestamp: now,
	})
	conv.lastActivity = now

	s.logger.Info("conversation summary stored",
		"conversation", conversationID,
		"up_to_index", upToIndex)
	return nil
}

// GetMessage returns the verbatim content of the message at the given
// 1-based index.
func (s *Store) GetMessage(conversationID string, index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	if index < 1 || index > len(conv.messages) {
		return "", fmt.Errorf("%w: index %d in conversation of %d messages",
			ErrMessageNotFound, index, len(conv.messages))
	}
	return conv.messages[index-1].Content, nil
}

// Len returns the number of messages in a conversation, zero if unknown.
func (s *Store) Len(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return 0
	}
	return len(conv.messages)
}

// Stats returns store-level counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, conv := range s.conversations {
		total += len(conv.messages)
	}
	return Stats{
		TotalConversations: len(s.conversations),
		TotalMessages:      total,
	}
}

func (s *Store) getOrCreateLocked(conversationID string) *conversation {
	conv, ok := s.conversations[conversationID]
	if !ok {
		now := s.now()
		conv = &conversation{
			id:           conversationID,
			createdAt:    now,
			lastActivity: now,
		}
		s.conversations[conversationID] = conv
		s.logger.Info("conversation created", "conversation", conversationID)
	}
	return conv
}

// maybeCleanupLocked evicts conversations idle past the retention window.
// Runs at most once per CleanupInterval, piggybacked on normal access.
func (s *Store) maybeCleanupLocked() {
	now := s.now()
	if now.Sub(s.lastCleanup) < s.cfg.CleanupInterval {
		return
	}
	s.lastCleanup = now

	if s.cfg.Retention <= 0 {
		return
	}

	evicted := 0
	for id, conv := range s.conversations {
		if now.Sub(conv.lastActivity) > s.cfg.Retention {
			delete(s.conversations, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Info("evicted idle conversations",
			"evicted", evicted,
			"remaining", len(s.conversations))
	}
}
