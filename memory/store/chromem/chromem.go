// Package chromem provides a chromem-go backed VectorStore.
// chromem-go is a pure Go, embedded vector database.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/quietdesk/deskmem/memory"
)

// Store keeps one chromem collection per namespace, which makes namespace
// isolation structural: a query can only ever see its own collection.
// chromem's query API is similarity-only, so the store also keeps a side
// index of records by id for exact lookups and per-namespace bookkeeping.
type Store struct {
	kind        memory.Kind
	db          *chromem.DB
	mu          sync.RWMutex
	collections map[string]*chromem.Collection
	records     map[string]memory.Record // ComposeID -> record
}

// New creates an in-memory chromem store for one record kind.
func New(kind memory.Kind) *Store {
	return &Store{
		kind:        kind,
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		records:     make(map[string]memory.Record),
	}
}

func (s *Store) collectionName(namespace string) string {
	return fmt.Sprintf("%s_%s", s.kind, namespace)
}

// getOrCreateCollection returns the collection for a namespace. Caller
// must not hold the lock.
func (s *Store) getOrCreateCollection(namespace string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[namespace]
	s.mu.RUnlock()
	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := s.collections[namespace]; exists {
		return col, nil
	}

	col, err := s.db.CreateCollection(
		s.collectionName(namespace),
		nil, // No custom embedding func (we provide embeddings)
		nil, // No custom distance func (use default cosine)
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.collections[namespace] = col
	return col, nil
}

// Put upserts a record: any document already stored under the same
// (namespace, key) is removed before the new one is added.
func (s *Store) Put(ctx context.Context, rec memory.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	col, err := s.getOrCreateCollection(rec.Namespace)
	if err != nil {
		return err
	}

	id := memory.ComposeID(rec.Namespace, rec.Key)

	meta := make(map[string]string, len(rec.Metadata)+4)
	for k, v := range rec.Metadata {
		meta[k] = v
	}
	meta["namespace"] = rec.Namespace
	meta["key"] = rec.Key
	meta["timestamp"] = rec.CreatedAt.UTC().Format(time.RFC3339)
	meta["type"] = string(rec.Kind)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; exists {
		if err := col.Delete(ctx, nil, nil, id); err != nil {
			return fmt.Errorf("replace document: %w", err)
		}
	}

	doc := chromem.Document{
		ID:        id,
		Content:   rec.Content,
		Embedding: rec.Embedding,
		Metadata:  meta,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	stored := rec
	stored.Metadata = meta
	s.records[id] = stored
	return nil
}

// Get retrieves a record by exact (namespace, key).
func (s *Store) Get(ctx context.Context, namespace, key string) (memory.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[memory.ComposeID(namespace, key)]
	if !ok {
		return memory.Record{}, false, nil
	}
	return cloneRecord(rec), true, nil
}

// Search queries the namespace's collection by embedding similarity.
func (s *Store) Search(ctx context.Context, namespace string, embedding []float32, limit int, filters map[string]string) ([]memory.SearchResult, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	col, ok := s.collections[namespace]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	where := map[string]string{"namespace": namespace}
	for k, v := range filters {
		where[k] = v
	}

	// chromem rejects nResults larger than the (filtered) document count,
	// so retry with smaller limits until the query fits.
	var results []chromem.Result
	for n := min(limit, col.Count()); ; n-- {
		if n <= 0 {
			return nil, nil
		}
		var err error
		results, err = col.QueryEmbedding(ctx, embedding, n, where, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			continue
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]memory.SearchResult, 0, len(results))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, res := range results {
		out = append(out, memory.SearchResult{
			Record:     s.recordFromResult(res),
			Similarity: float64(res.Similarity),
		})
	}
	return out, nil
}

// Delete removes one record. Missing records are a no-op.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	id := memory.ComposeID(namespace, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[namespace]
	if !ok {
		return nil
	}
	if _, ok := s.records[id]; !ok {
		return nil
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	delete(s.records, id)
	return nil
}

// Clear removes every record in a namespace by dropping its collection.
func (s *Store) Clear(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[namespace]; ok {
		if err := s.db.DeleteCollection(s.collectionName(namespace)); err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
		delete(s.collections, namespace)
	}
	for id, rec := range s.records {
		if rec.Namespace == namespace {
			delete(s.records, id)
		}
	}
	log.Printf("[CHROMEM] Cleared namespace %q (%s)", namespace, s.kind)
	return nil
}

// Reset removes every record in the store.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for namespace := range s.collections {
		if err := s.db.DeleteCollection(s.collectionName(namespace)); err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
	}
	s.collections = make(map[string]*chromem.Collection)
	s.records = make(map[string]memory.Record)
	log.Printf("[CHROMEM] Reset store (%s)", s.kind)
	return nil
}

// recordFromResult prefers the side index, which has the parsed creation
// time; a result not in the index is rebuilt from chromem metadata.
// Caller holds at least the read lock.
func (s *Store) recordFromResult(res chromem.Result) memory.Record {
	if rec, ok := s.records[res.ID]; ok {
		return cloneRecord(rec)
	}

	createdAt, _ := time.Parse(time.RFC3339, res.Metadata["timestamp"])
	return memory.Record{
		Namespace: res.Metadata["namespace"],
		Key:       res.Metadata["key"],
		Content:   res.Content,
		Embedding: res.Embedding,
		Metadata:  res.Metadata,
		CreatedAt: createdAt,
		Kind:      memory.Kind(res.Metadata["type"]),
	}
}

// isInsufficientDocsError checks if error is due to insufficient documents.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}

func cloneRecord(rec memory.Record) memory.Record {
	c := rec
	c.Embedding = append([]float32(nil), rec.Embedding...)
	c.Metadata = make(map[string]string, len(rec.Metadata))
	for k, v := range rec.Metadata {
		c.Metadata[k] = v
	}
	return c
}
