package memory_test

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/quietdesk/deskmem/memory"
	chromemstore "github.com/quietdesk/deskmem/memory/store/chromem"
)

// vocabEmbedder embeds text as keyword counts over a small fixed
// vocabulary, so tests get predictable similarity orderings. The trailing
// bias dimension keeps vectors with no vocabulary hits off the zero
// vector.
type vocabEmbedder struct {
	vocab []string
}

func newVocabEmbedder() *vocabEmbedder {
	return &vocabEmbedder{vocab: []string{
		"ticket", "device", "router", "archer", "nighthawk", "netgear",
		"customer", "restart", "wifi", "slow", "billing",
	}}
}

func (e *vocabEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	vec := make([]float32, len(e.vocab)+1)
	for i, word := range e.vocab {
		vec[i] = float32(strings.Count(lower, word))
	}
	vec[len(e.vocab)] = 0.1
	return vec, nil
}

func (e *vocabEmbedder) Dimensions() int { return len(e.vocab) + 1 }

// failEmbedder always errors, for surfacing embedding failures.
type failEmbedder struct{}

func (failEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedder offline")
}

func (failEmbedder) Dimensions() int { return 8 }

// fakeClock is a settable time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func newSemanticBackend() memory.VectorStore {
	return chromemstore.New(memory.KindSemantic)
}

func newSemanticForTest(clock *fakeClock) *memory.SemanticStore {
	return memory.NewSemanticStore(
		newSemanticBackend(),
		newVocabEmbedder(),
		memory.WithSemanticClock(clock.Now),
	)
}

func newEpisodicForTest(clock *fakeClock, opts ...memory.EpisodicOption) *memory.EpisodicStore {
	opts = append([]memory.EpisodicOption{memory.WithEpisodicClock(clock.Now)}, opts...)
	return memory.NewEpisodicStore(
		chromemstore.New(memory.KindEpisodic),
		newVocabEmbedder(),
		opts...,
	)
}
