package knowledge

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"
)

// EmbedFunc produces one fixed-length float vector per input text,
// order-preserving. It is the only contact surface this package has with
// the embedding provider, which keeps the cache and index testable with
// plain closures.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// NewEmbedFunc creates an EmbedFunc from a Genkit ai.Embedder.
// The returned function bridges Genkit's embedding API to the batch
// contract the cache and index expect. dims > 0 requests truncated
// vectors of that length from the provider; 0 keeps the model default.
func NewEmbedFunc(embedder ai.Embedder, dims int) EmbedFunc {
	var options *genai.EmbedContentConfig
	if dims > 0 {
		dim := int32(dims)
		options = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	return func(ctx context.Context, texts []string) ([][]float32, error) {
		docs := make([]*ai.Document, len(texts))
		for i, text := range texts {
			docs[i] = ai.DocumentFromText(text, nil)
		}

		resp, err := embedder.Embed(ctx, &ai.EmbedRequest{Input: docs, Options: options})
		if err != nil {
			return nil, fmt.Errorf("embed failed: %w", err)
		}

		if len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
		}

		vectors := make([][]float32, len(resp.Embeddings))
		for i, e := range resp.Embeddings {
			vectors[i] = e.Embedding
		}
		return vectors, nil
	}
}
