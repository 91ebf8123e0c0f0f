// Package api exposes the assistant over HTTP.
//
// Endpoints:
//   - GET  /health                  - liveness probe with component status
//   - POST /ai/chat                 - synchronous chat (JSON request/response)
//   - POST /ai/chat/stream          - streaming chat (Server-Sent Events)
//   - GET  /ai/conversations/stats  - conversation store statistics
//   - GET  /ai/knowledge/stats      - knowledge index statistics
//
// The SSE stream carries the assistant's event taxonomy verbatim: each
// event is one "data: {json}" frame whose "type" field tags the payload.
// Every stream ends with exactly one terminal frame (error or done).
package api
