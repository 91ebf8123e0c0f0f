package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/medkitlab/sage/internal/log"
)

// EmbeddingCache memoizes text-to-vector lookups so repeated or rephrased
// queries do not re-pay the metered embedding call. Entries are keyed by a
// hash of the normalized text and evicted oldest-inserted-first once the
// capacity is exceeded.
//
// A failed provider call leaves the cache unchanged; there is no negative
// caching.
type EmbeddingCache struct {
	mu       sync.Mutex
	entries  map[string][]float32
	order    []string // cache keys, oldest first
	capacity int

	embed  EmbedFunc
	logger log.Logger
}

// NewEmbeddingCache creates a bounded embedding cache in front of embed.
// capacity must be positive (validated by config).
func NewEmbeddingCache(embed EmbedFunc, capacity int, logger log.Logger) *EmbeddingCache {
	return &EmbeddingCache{
		entries:  make(map[string][]float32, capacity),
		capacity: capacity,
		embed:    embed,
		logger:   logger,
	}
}

// cacheKey normalizes text (case-folded, trimmed) and hashes it to a
// fixed-length key, so rephrasings that differ only in case or surrounding
// whitespace share an entry.
func cacheKey(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// GetOrCompute returns the vector for text, calling the embedding provider
// at most once per distinct normalized text while the entry remains cached.
func (c *EmbeddingCache) GetOrCompute(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)

	c.mu.Lock()
	if vec, ok := c.entries[key]; ok {
		c.mu.Unlock()
		c.logger.Debug("embedding cache hit", "text", truncate(text, 50))
		return vec, nil
	}
	c.mu.Unlock()

	c.logger.Debug("embedding cache miss", "text", truncate(text, 50))

	// Provider call happens outside the lock; concurrent misses for the
	// same text may both embed, the second insert is a harmless overwrite.
	vectors, err := c.embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("generating query embedding: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding provider returned no vector")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		c.entries[key] = vectors[0]
		c.order = append(c.order, key)
	}

	// Evict the single oldest entry once over capacity.
	if len(c.entries) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		c.logger.Debug("embedding cache full, evicted oldest entry")
	}

	return vectors[0], nil
}

// Len reports the number of cached vectors.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity reports the configured size bound.
func (c *EmbeddingCache) Capacity() int {
	return c.capacity
}

// truncate shortens s for log output.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
