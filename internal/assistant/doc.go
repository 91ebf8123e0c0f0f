// Package assistant implements the streaming response engine for the
// platform admin assistant.
//
// A response is produced by a two-turn protocol: the first model turn may
// stream prose and request administrative tool calls; requested calls are
// executed against the remote tool channel, and a second turn folds the
// results into the final answer. Callers receive the whole exchange as a
// stream of tagged events, ending in exactly one terminal event.
//
// The engine degrades rather than fails: provider errors fall back from
// streaming to non-streaming generation, and when every generation path is
// exhausted a deterministic keyword-routed responder still produces an
// answer.
package assistant
