package conversation

import (
	"context"
	"sync"

	"github.com/medkitlab/sage/internal/log"
)

// SummarizeFunc generates a concise summary of a conversation transcript.
// Implemented by the assistant layer with a model call; tests supply
// closures.
type SummarizeFunc func(ctx context.Context, transcript string) (string, error)

// Summarizer runs conversation summarization off the request path.
//
// Trigger is fire-and-forget: the requesting turn renders whatever history
// state exists right now, and the summary becomes visible to later turns
// once the background generation lands. A failed attempt stores nothing;
// the next pressured request re-detects the need and retries.
type Summarizer struct {
	store     *Store
	summarize SummarizeFunc
	logger    log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]bool
}

// NewSummarizer creates a summarizer bound to store.
func NewSummarizer(store *Store, summarize SummarizeFunc, logger log.Logger) *Summarizer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Summarizer{
		store:     store,
		summarize: summarize,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		inflight:  make(map[string]bool),
	}
}

// Trigger requests a background summary for the conversation. At most one
// summarization per conversation runs at a time; extra triggers while one
// is in flight are dropped.
func (s *Summarizer) Trigger(conversationID string) {
	s.mu.Lock()
	if s.inflight[conversationID] {
		s.mu.Unlock()
		return
	}
	s.inflight[conversationID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, conversationID)
			s.mu.Unlock()
		}()
		s.run(conversationID)
	}()
}

func (s *Summarizer) run(conversationID string) {
	transcript, upToIndex, ok := s.store.SummarizationTarget(conversationID)
	if !ok {
		s.logger.Debug("nothing to summarize", "conversation", conversationID)
		return
	}

	summary, err := s.summarize(s.ctx, transcript)
	if err != nil {
		// Store stays unchanged; the next pressured request retries.
		s.logger.Error("conversation summarization failed",
			"conversation", conversationID,
			"error", err)
		return
	}

	if err := s.store.StoreSummary(conversationID, summary, upToIndex); err != nil {
		s.logger.Error("storing conversation summary failed",
			"conversation", conversationID,
			"error", err)
	}
}

// Close stops accepting work implicitly (callers stop triggering), cancels
// in-flight model calls, and waits for running summarizations to finish.
func (s *Summarizer) Close() {
	s.cancel()
	s.wg.Wait()
}
