package memory

import (
	"context"
	"fmt"
	"log"
	"time"
)

// SemanticStore holds facts and structured domain knowledge. Ranking is
// pure vector similarity: facts never age out on their own, they are only
// replaced by an upsert on the same key or removed explicitly.
type SemanticStore struct {
	backend  VectorStore
	embedder Embedder
	now      func() time.Time
}

// SemanticOption configures a SemanticStore.
type SemanticOption func(*SemanticStore)

// WithSemanticClock overrides the store's time source.
func WithSemanticClock(now func() time.Time) SemanticOption {
	return func(s *SemanticStore) {
		s.now = now
	}
}

// NewSemanticStore creates a semantic store over the given backend.
func NewSemanticStore(backend VectorStore, embedder Embedder, opts ...SemanticOption) *SemanticStore {
	s := &SemanticStore{
		backend:  backend,
		embedder: embedder,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put embeds content and upserts it under (namespace, key). An embedding
// failure is a hard error: the record is never stored without its vector.
func (s *SemanticStore) Put(ctx context.Context, namespace, key, content string, metadata map[string]string) error {
	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed content: %w", err)
	}

	rec := Record{
		Namespace: namespace,
		Key:       key,
		Content:   content,
		Embedding: embedding,
		Metadata:  metadata,
		CreatedAt: s.now().UTC(),
		Kind:      KindSemantic,
	}
	if err := s.backend.Put(ctx, rec); err != nil {
		return fmt.Errorf("store fact: %w", err)
	}
	log.Printf("[SEMANTIC] Stored %s", ComposeID(namespace, key))
	return nil
}

// Get retrieves a fact by exact (namespace, key).
func (s *SemanticStore) Get(ctx context.Context, namespace, key string) (Record, bool, error) {
	return s.backend.Get(ctx, namespace, key)
}

// Search returns up to topK facts ranked by similarity to query, scoped
// to the namespace, optionally filtered by metadata equality.
func (s *SemanticStore) Search(ctx context.Context, namespace, query string, topK int, filters map[string]string) ([]SearchResult, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.backend.Search(ctx, namespace, embedding, topK, filters)
}

// Delete removes one fact.
func (s *SemanticStore) Delete(ctx context.Context, namespace, key string) error {
	return s.backend.Delete(ctx, namespace, key)
}

// Clear removes every fact in a namespace.
func (s *SemanticStore) Clear(ctx context.Context, namespace string) error {
	return s.backend.Clear(ctx, namespace)
}

// Reset removes every fact in the store.
func (s *SemanticStore) Reset(ctx context.Context) error {
	return s.backend.Reset(ctx)
}
