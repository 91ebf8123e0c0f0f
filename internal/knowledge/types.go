package knowledge

// DocumentChunk is a single documentation entry in the corpus.
//
// Stored chunks are immutable; RelevanceScore is zero on stored originals
// and set only on the scored copies returned by search.
type DocumentChunk struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Source   string `json:"source"`
	Content  string `json:"content"`

	// RelevanceScore is the ranking score assigned per query: cosine
	// similarity for semantic search, keyword weight for the fallback.
	RelevanceScore float64 `json:"relevance_score,omitempty"`
}

// Stats describes the state of the knowledge base for diagnostics.
type Stats struct {
	TotalDocuments        int      `json:"total_documents"`
	Categories            []string `json:"categories"`
	EmbeddingCacheSize    int      `json:"embedding_cache_size"`
	EmbeddingCacheMaxSize int      `json:"embedding_cache_max_size"`
	EmbeddingsInitialized bool     `json:"embeddings_initialized"`
}
