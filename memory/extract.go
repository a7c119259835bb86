package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/quietdesk/deskmem/llm"
)

// minCandidateLen is the noise floor for extracted candidates: anything
// this short or shorter is discarded before writing.
const minCandidateLen = 10

const extractSystemPrompt = `Extract structured memories from this conversation.

SEMANTIC (facts, structured data):
- Ticket IDs, device models, house layout, technical specs
- Format: "Customer has [device] in [location]. Ticket [ID]."

EPISODIC (experiences, what happened):
- What troubleshooting was tried, what was suggested, user corrections
- Format: "Customer tried [action]. Agent suggested [action]."

Return JSON:
{"semantic": ["fact1", "fact2"], "episodic": ["experience1", "experience2"]}`

// Extraction is the model's split of a turn into persistable candidates.
type Extraction struct {
	Semantic []string `json:"semantic"`
	Episodic []string `json:"episodic"`
}

// Extractor asks the model to split a gated turn into semantic facts and
// episodic experiences.
type Extractor struct {
	llm llm.Client
}

// NewExtractor creates an extractor backed by the given model client.
func NewExtractor(client llm.Client) *Extractor {
	return &Extractor{llm: client}
}

// Extract runs the split. A model transport failure propagates; malformed
// model output is skipped silently and yields an empty extraction, since
// a bad extraction on one turn should not abort the turn.
func (e *Extractor) Extract(ctx context.Context, conversation string) (Extraction, error) {
	out, err := e.llm.Invoke(ctx, extractSystemPrompt, conversation)
	if err != nil {
		return Extraction{}, fmt.Errorf("extract memories: %w", err)
	}

	raw, ok := llm.ExtractJSON(out)
	if !ok {
		log.Printf("[EXTRACT] No JSON in model output, skipping")
		return Extraction{}, nil
	}
	var ex Extraction
	if err := json.Unmarshal([]byte(raw), &ex); err != nil {
		log.Printf("[EXTRACT] Unparsable extraction JSON, skipping: %v", err)
		return Extraction{}, nil
	}
	return ex, nil
}

// keepCandidate trims a candidate and reports whether it clears the noise
// floor.
func keepCandidate(candidate string) (string, bool) {
	trimmed := strings.TrimSpace(candidate)
	return trimmed, len(trimmed) > minCandidateLen
}
