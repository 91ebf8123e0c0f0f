package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/medkitlab/sage/internal/log"
)

// Index ranks the documentation corpus against user queries.
//
// Vectors for every document are computed in one batch call at startup via
// InitEmbeddings and never mutated afterwards, so concurrent searches read
// them without synchronization. When embeddings are missing or the provider
// fails, Search degrades to the deterministic keyword scorer instead of
// returning an error.
type Index struct {
	docs    []DocumentChunk
	vectors [][]float32 // nil until InitEmbeddings succeeds

	embed  EmbedFunc
	cache  *EmbeddingCache
	logger log.Logger
}

// NewIndex creates an index over docs. Query vectors are looked up through
// cache; the batch corpus embedding at startup bypasses it.
func NewIndex(docs []DocumentChunk, embed EmbedFunc, cache *EmbeddingCache, logger log.Logger) *Index {
	return &Index{
		docs:   docs,
		embed:  embed,
		cache:  cache,
		logger: logger,
	}
}

// InitEmbeddings generates vectors for all documents in one batch call.
// Safe to call more than once; subsequent calls are no-ops after success.
// Failure leaves the index in keyword-only mode and is reported to the
// caller for logging, not treated as fatal.
func (idx *Index) InitEmbeddings(ctx context.Context) error {
	if idx.vectors != nil || idx.embed == nil {
		return nil
	}

	texts := make([]string, len(idx.docs))
	for i, doc := range idx.docs {
		texts[i] = doc.Content
	}

	idx.logger.Info("generating corpus embeddings", "documents", len(texts))

	vectors, err := idx.embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("generating corpus embeddings: %w", err)
	}

	idx.vectors = vectors
	idx.logger.Info("corpus embeddings ready", "vectors", len(vectors))
	return nil
}

// Search ranks documents against query and returns up to maxResults scored
// copies, best first. Semantic ranking is used when embeddings are
// available; any embedding failure falls back to keyword scoring.
func (idx *Index) Search(ctx context.Context, query string, maxResults int) []DocumentChunk {
	if idx.vectors == nil || idx.cache == nil {
		idx.logger.Warn("embeddings not available, using keyword search", "query", truncate(query, 50))
		return idx.SearchKeyword(query, maxResults)
	}

	queryVec, err := idx.cache.GetOrCompute(ctx, query)
	if err != nil {
		idx.logger.Warn("query embedding failed, using keyword search", "error", err)
		return idx.SearchKeyword(query, maxResults)
	}

	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, len(idx.docs))
	for i, vec := range idx.vectors {
		scores[i] = scored{pos: i, score: cosineSimilarity(vec, queryVec)}
	}

	// Stable sort keeps corpus order for equal scores.
	sort.SliceStable(scores, func(a, b int) bool {
		return scores[a].score > scores[b].score
	})

	if maxResults > len(scores) {
		maxResults = len(scores)
	}

	results := make([]DocumentChunk, 0, maxResults)
	for _, s := range scores[:maxResults] {
		doc := idx.docs[s.pos]
		doc.RelevanceScore = s.score
		results = append(results, doc)
	}

	idx.logger.Info("semantic search complete", "query", truncate(query, 50), "results", len(results))
	return results
}

// SearchKeyword scores documents by lexical overlap with query: each
// whitespace-split term adds 10 when it appears in the title plus its
// occurrence count in the content, case-insensitive. Documents scoring
// zero are excluded.
func (idx *Index) SearchKeyword(query string, maxResults int) []DocumentChunk {
	terms := strings.Fields(strings.ToLower(query))

	type scored struct {
		pos   int
		score float64
	}
	var matches []scored

	for i, doc := range idx.docs {
		title := strings.ToLower(doc.Title)
		content := strings.ToLower(doc.Content)

		var score float64
		for _, term := range terms {
			if strings.Contains(title, term) {
				score += 10
			}
			score += float64(strings.Count(content, term))
		}

		if score > 0 {
			matches = append(matches, scored{pos: i, score: score})
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].score > matches[b].score
	})

	if maxResults > len(matches) {
		maxResults = len(matches)
	}

	results := make([]DocumentChunk, 0, maxResults)
	for _, m := range matches[:maxResults] {
		doc := idx.docs[m.pos]
		doc.RelevanceScore = m.score
		results = append(results, doc)
	}
	return results
}

// EmbeddingsReady reports whether semantic ranking is active.
func (idx *Index) EmbeddingsReady() bool {
	return idx.vectors != nil
}

// Categories returns the distinct document categories, in corpus order of
// first appearance.
func (idx *Index) Categories() []string {
	seen := make(map[string]bool)
	var categories []string
	for _, doc := range idx.docs {
		if !seen[doc.Category] {
			seen[doc.Category] = true
			categories = append(categories, doc.Category)
		}
	}
	return categories
}

// Stats returns knowledge base statistics for diagnostics.
func (idx *Index) Stats() Stats {
	s := Stats{
		TotalDocuments:        len(idx.docs),
		Categories:            idx.Categories(),
		EmbeddingsInitialized: idx.vectors != nil,
	}
	if idx.cache != nil {
		s.EmbeddingCacheSize = idx.cache.Len()
		s.EmbeddingCacheMaxSize = idx.cache.Capacity()
	}
	return s
}

// cosineSimilarity computes dot(a, b) / (‖a‖·‖b‖) in float64.
// Returns 0 for mismatched lengths or zero vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
