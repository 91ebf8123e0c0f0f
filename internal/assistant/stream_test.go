package assistant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamYieldsSameEventsAsRespond(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	var types []EventType
	for ev, err := range f.assistant.Stream(context.Background(), Request{
		ConversationID: "stream-1",
		Message:        "how do I manage users",
	}) {
		require.NoError(t, err)
		types = append(types, ev.Type)
	}

	require.NotEmpty(t, types)
	assert.Equal(t, EventDone, types[len(types)-1])
	assert.Contains(t, types, EventContent)
}

func TestStreamEarlyBreakStopsGeneration(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	seen := 0
	for ev, err := range f.assistant.Stream(context.Background(), Request{
		ConversationID: "stream-2",
		Message:        "how do I manage users",
	}) {
		require.NoError(t, err)
		seen++
		if ev.Type == EventSources {
			break
		}
	}

	// The break lands on the first event; no terminal event follows.
	assert.Equal(t, 1, seen)
}

func TestStreamEmptyMessageYieldsError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	var events, errs int
	for _, err := range f.assistant.Stream(context.Background(), Request{Message: "  "}) {
		if err != nil {
			errs++
			require.ErrorIs(t, err, ErrEmptyMessage)
		} else {
			events++
		}
	}

	assert.Equal(t, 0, events)
	assert.Equal(t, 1, errs)
}
