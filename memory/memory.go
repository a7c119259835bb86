package memory

import "context"

// VectorStore is the storage backend shared by the semantic and episodic
// stores. Implementations: chromem-backed store (SDK-provided, see
// memory/store/chromem), pgvector for production.
//
// Put is an upsert: a record with an existing (namespace, key) replaces
// the stored one. Search must scope every query to the given namespace;
// returning another namespace's records is a correctness bug, not a
// ranking problem.
type VectorStore interface {
	// Put inserts or overwrites a record. The record must carry its
	// embedding; backends never embed.
	Put(ctx context.Context, rec Record) error

	// Get retrieves a record by exact (namespace, key). A missing record
	// is not an error: the second result is false.
	Get(ctx context.Context, namespace, key string) (Record, bool, error)

	// Search returns up to limit records ranked by embedding similarity,
	// optionally filtered by metadata equality. An empty result is valid.
	Search(ctx context.Context, namespace string, embedding []float32, limit int, filters map[string]string) ([]SearchResult, error)

	// Delete removes one record. Deleting a missing record is a no-op.
	Delete(ctx context.Context, namespace, key string) error

	// Clear removes every record in a namespace.
	Clear(ctx context.Context, namespace string) error

	// Reset removes every record in the store.
	Reset(ctx context.Context) error
}

// SearchResult is a record with its query similarity in [0, 1].
type SearchResult struct {
	Record
	Similarity float64
}

// Embedder converts text to vector embeddings.
// Implementations: mock (testing), onnx (local SDK), cached (ristretto
// decorator over either).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
