package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"
)

const (
	// DefaultRecencyWeight is the share of the combined score given to
	// recency when reranking episodic search results.
	DefaultRecencyWeight = 0.3

	// recencyDecayDays is the decay constant: a 30-day-old episode scores
	// half the recency of a brand-new one.
	recencyDecayDays = 30.0

	// overfetchFactor is how many similarity candidates are pulled per
	// requested result before reranking. Without the over-fetch, recency
	// bias would starve high-similarity-but-older matches that similarity
	// search alone would have surfaced.
	overfetchFactor = 2

	// salienceMetaKey carries the caller-supplied salience on episodic
	// records. Descriptive only, never fed back into ranking.
	salienceMetaKey = "salience"
)

// EpisodicStore holds experiences: past interactions, troubleshooting
// attempts, corrections. Unlike the semantic store, search is
// recency-biased: candidates are fetched by similarity, rescored as
// (1-w)*similarity + w*recency, and truncated.
type EpisodicStore struct {
	backend       VectorStore
	embedder      Embedder
	recencyWeight float64
	now           func() time.Time
}

// EpisodicOption configures an EpisodicStore.
type EpisodicOption func(*EpisodicStore)

// WithRecencyWeight sets the recency share w of the combined score.
func WithRecencyWeight(w float64) EpisodicOption {
	return func(s *EpisodicStore) {
		s.recencyWeight = w
	}
}

// WithEpisodicClock overrides the store's time source.
func WithEpisodicClock(now func() time.Time) EpisodicOption {
	return func(s *EpisodicStore) {
		s.now = now
	}
}

// NewEpisodicStore creates an episodic store over the given backend.
func NewEpisodicStore(backend VectorStore, embedder Embedder, opts ...EpisodicOption) *EpisodicStore {
	s := &EpisodicStore{
		backend:       backend,
		embedder:      embedder,
		recencyWeight: DefaultRecencyWeight,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put embeds content and upserts it under (namespace, key), recording the
// caller's salience score as metadata.
func (s *EpisodicStore) Put(ctx context.Context, namespace, key, content string, metadata map[string]string, salience float64) error {
	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed content: %w", err)
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[salienceMetaKey] = strconv.FormatFloat(salience, 'f', -1, 64)

	rec := Record{
		Namespace: namespace,
		Key:       key,
		Content:   content,
		Embedding: embedding,
		Metadata:  meta,
		CreatedAt: s.now().UTC(),
		Kind:      KindEpisodic,
	}
	if err := s.backend.Put(ctx, rec); err != nil {
		return fmt.Errorf("store episode: %w", err)
	}
	log.Printf("[EPISODIC] Stored %s (salience=%.2f)", ComposeID(namespace, key), salience)
	return nil
}

// Get retrieves an episode by exact (namespace, key).
func (s *EpisodicStore) Get(ctx context.Context, namespace, key string) (Record, bool, error) {
	return s.backend.Get(ctx, namespace, key)
}

// Search returns up to topK episodes for query, reranked by recency.
func (s *EpisodicStore) Search(ctx context.Context, namespace, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := s.backend.Search(ctx, namespace, embedding, topK*overfetchFactor, nil)
	if err != nil {
		return nil, err
	}

	reranked := rerankByRecency(candidates, s.recencyWeight, s.now().UTC())
	if len(reranked) > topK {
		reranked = reranked[:topK]
	}
	return reranked, nil
}

// Delete removes one episode.
func (s *EpisodicStore) Delete(ctx context.Context, namespace, key string) error {
	return s.backend.Delete(ctx, namespace, key)
}

// Clear removes every episode in a namespace.
func (s *EpisodicStore) Clear(ctx context.Context, namespace string) error {
	return s.backend.Clear(ctx, namespace)
}

// Reset removes every episode in the store.
func (s *EpisodicStore) Reset(ctx context.Context) error {
	return s.backend.Reset(ctx)
}

// rerankByRecency sorts results descending by combined score
// (1-weight)*similarity + weight*recency. The sort is stable so equal
// combined scores keep their similarity order.
func rerankByRecency(results []SearchResult, weight float64, now time.Time) []SearchResult {
	type scored struct {
		res   SearchResult
		score float64
	}
	scoredResults := make([]scored, len(results))
	for i, r := range results {
		scoredResults[i] = scored{
			res:   r,
			score: (1-weight)*r.Similarity + weight*recencyScore(r.CreatedAt, now),
		}
	}

	sort.SliceStable(scoredResults, func(i, j int) bool {
		return scoredResults[i].score > scoredResults[j].score
	})

	out := make([]SearchResult, len(scoredResults))
	for i, sr := range scoredResults {
		out[i] = sr.res
	}
	return out
}

// recencyScore maps a record age to (0, 1]: 1 for brand-new, 0.5 at the
// decay constant. A missing or unparsable timestamp scores 0.
func recencyScore(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	ageDays := now.Sub(createdAt).Seconds() / 86400
	return 1.0 / (1.0 + ageDays/recencyDecayDays)
}
