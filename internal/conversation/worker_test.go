package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/medkitlab/sage/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestSummarizerStoresSummary(t *testing.T) {
	store := newTestStore(100)
	for i := 0; i < 10; i++ {
		store.Append("conv-1", RoleUser, strings.Repeat("m", 30))
	}

	summarizer := NewSummarizer(store, func(ctx context.Context, transcript string) (string, error) {
		if !strings.Contains(transcript, "[1] User:") {
			t.Errorf("transcript missing indexed message: %q", transcript)
		}
		return "generated summary", nil
	}, log.NewNop())
	defer summarizer.Close()

	summarizer.Trigger("conv-1")

	// Completion is eventual: the summary covers all but the recent tail
	// and lands as an appended message.
	waitFor(t, func() bool { return store.Len("conv-1") == 11 })

	store.mu.Lock()
	conv := store.conversations["conv-1"]
	upTo, summary := conv.summaryUpToIndex, conv.summary
	store.mu.Unlock()

	if upTo != 10-keepRecentMessages {
		t.Errorf("summaryUpToIndex = %d, want %d", upTo, 10-keepRecentMessages)
	}
	if summary != "generated summary" {
		t.Errorf("summary = %q, want %q", summary, "generated summary")
	}
}

func TestSummarizerFailureLeavesStoreUnchanged(t *testing.T) {
	store := newTestStore(100)
	for i := 0; i < 10; i++ {
		store.Append("conv-1", RoleUser, strings.Repeat("m", 30))
	}

	attempts := make(chan struct{}, 4)
	summarizer := NewSummarizer(store, func(ctx context.Context, transcript string) (string, error) {
		attempts <- struct{}{}
		return "", errors.New("model unavailable")
	}, log.NewNop())

	summarizer.Trigger("conv-1")
	<-attempts
	summarizer.Close()

	store.mu.Lock()
	upTo := store.conversations["conv-1"].summaryUpToIndex
	count := len(store.conversations["conv-1"].messages)
	store.mu.Unlock()

	if upTo != 0 {
		t.Errorf("summaryUpToIndex = %d after failure, want 0", upTo)
	}
	if count != 10 {
		t.Errorf("message count = %d after failure, want 10", count)
	}

	// Pressure is re-detected, so a later trigger retries.
	if !store.NeedsSummarization("conv-1", "pending") {
		t.Error("NeedsSummarization() = false after failed attempt, want true")
	}
}

func TestSummarizerSkipsWhenNothingNew(t *testing.T) {
	store := newTestStore(100)
	store.Append("conv-1", RoleUser, "only message")

	called := false
	summarizer := NewSummarizer(store, func(ctx context.Context, transcript string) (string, error) {
		called = true
		return "unused", nil
	}, log.NewNop())

	// One message minus the protected recent tail leaves nothing to cover.
	summarizer.Trigger("conv-1")
	summarizer.Close()

	if called {
		t.Error("summarize called although no messages are eligible")
	}
}
