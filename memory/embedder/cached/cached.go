// Package cached decorates an Embedder with a ristretto cache.
//
// Embedding is the latency hot spot of a turn, and the same text is
// embedded repeatedly: verified facts are re-upserted on every ticket
// lookup, and users re-ask similar queries. Caching by exact text turns
// those repeats into map hits.
package cached

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/quietdesk/deskmem/memory"
)

// defaultMaxBytes caps the cache at 32 MiB of vector data.
const defaultMaxBytes = 32 << 20

// Embedder caches embeddings by text.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// New wraps inner with a cache holding up to maxBytes of vectors.
// maxBytes <= 0 uses the default.
func New(inner memory.Embedder, maxBytes int64) (*Embedder, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, or embeds and caches it.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			out := make([]float32, len(vec))
			copy(out, vec)
			return out, nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	stored := make([]float32, len(vec))
	copy(stored, vec)
	e.cache.Set(text, stored, int64(len(stored)*4))
	return vec, nil
}

// Dimensions returns the inner embedder's vector size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until pending cache admissions are applied. Useful in tests.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close releases the cache.
func (e *Embedder) Close() {
	e.cache.Close()
}
