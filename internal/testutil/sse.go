package testutil

import (
	"bufio"
	"strings"
	"testing"
)

// ParseSSEData parses a data-only SSE stream into the raw payload of each
// frame. Frames have the form "data: {json}\n\n"; the event type lives
// inside the JSON payload rather than on an "event:" line.
//
// Handles the W3C framing rules that matter for this shape:
//   - Multiple "data:" lines in one frame are joined with newline
//   - An empty line terminates a frame
//   - Comment lines starting with ":" are ignored
func ParseSSEData(t *testing.T, body string) []string {
	t.Helper()

	var frames []string
	var dataLines []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))

		case line == "":
			if len(dataLines) > 0 {
				frames = append(frames, strings.Join(dataLines, "\n"))
				dataLines = nil
			}

		case strings.HasPrefix(line, ":"):
			// comment, ignore

		default:
			t.Fatalf("SSE parse error at line %d: unexpected line %q", lineNum, line)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("SSE scan error: %v", err)
	}
	if len(dataLines) > 0 {
		t.Fatalf("SSE stream ended with unterminated frame: %q", strings.Join(dataLines, "\n"))
	}

	return frames
}
