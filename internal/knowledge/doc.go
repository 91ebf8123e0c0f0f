// Package knowledge holds the in-memory documentation corpus and its
// retrieval machinery: a bounded embedding cache, a cosine-similarity
// index over document vectors, and a deterministic keyword scorer used
// when embeddings are unavailable.
//
// The corpus is loaded once at startup and never mutated. Search returns
// scored copies of the stored chunks; degradation to keyword scoring is
// automatic and non-fatal, so retrieval always produces a best-effort
// result even when the embedding provider is down.
package knowledge
