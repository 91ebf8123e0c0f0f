package assistant

import (
	"context"
	"errors"
	"iter"
)

// errStreamStopped marks a consumer that broke out of the range loop.
var errStreamStopped = errors.New("stream stopped by consumer")

// Stream returns the response as a pull-based event sequence. Events are
// yielded one at a time as generation proceeds, so a slow consumer holds
// back the producer instead of forcing whole turns to buffer. Breaking
// out of the loop stops generation at the next event boundary.
//
// A non-nil error is yielded at most once, as the final element, and only
// for failures that precede the event stream (such as ErrEmptyMessage);
// generation failures arrive as regular error events.
func (a *Assistant) Stream(ctx context.Context, req Request) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		stopped := false
		err := a.Respond(ctx, req, func(_ context.Context, ev Event) error {
			if !yield(ev, nil) {
				stopped = true
				return errStreamStopped
			}
			return nil
		})
		if err != nil && !stopped {
			yield(Event{}, err)
		}
	}
}
