package assistant

import "strings"

// failureKind classifies a provider error for user messaging and fallback
// routing. Classification is by error text because provider SDK errors do
// not expose a stable typed taxonomy across transports.
type failureKind int

const (
	failureGeneric failureKind = iota
	failureRateLimit
	failureTimeout
	failureStreamingUnsupported
)

// User-safe messages for terminal error events. Raw provider error text is
// never surfaced to the end user.
const (
	msgRateLimit = "I'm currently experiencing high demand. Please try again in a moment."
	msgTimeout   = "The request took too long. Please try a shorter question."
	msgGeneric   = "I encountered an issue processing your request. Please try again."
)

// classifyFailure maps a provider error to a failureKind.
func classifyFailure(err error) failureKind {
	if err == nil {
		return failureGeneric
	}
	s := err.Error()

	if containsAny(s, "stream") && containsAny(s, "unsupported", "not supported") {
		return failureStreamingUnsupported
	}
	if containsAny(s, "rate limit", "quota", "429", "resource exhausted") {
		return failureRateLimit
	}
	if containsAny(s, "timeout", "deadline exceeded") {
		return failureTimeout
	}
	return failureGeneric
}

// userMessage returns the user-safe message for a failure kind.
func (k failureKind) userMessage() string {
	switch k {
	case failureRateLimit:
		return msgRateLimit
	case failureTimeout:
		return msgTimeout
	default:
		return msgGeneric
	}
}

// retryableError reports whether an error should trigger a retry.
// Timeouts are deliberately absent: a timed-out call is classified for
// user messaging but never re-issued within one orchestration pass.
func retryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// Rate limit errors settle on their own
	if containsAny(errStr, "rate limit", "quota exceeded", "429") {
		return true
	}

	// Transient server errors
	if containsAny(errStr, "500", "502", "503", "504", "unavailable") {
		return true
	}

	// Network errors
	if containsAny(errStr, "connection reset", "temporary") {
		return true
	}

	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
