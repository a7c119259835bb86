package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/quietdesk/deskmem/llm"
	"github.com/quietdesk/deskmem/tickets"
)

// DefaultWriteThreshold is the combined-score gate below which a turn is
// not persisted.
const DefaultWriteThreshold = 0.6

// SalienceScore is the per-turn importance vector, each dimension in
// [0, 1]. It is ephemeral: computed per turn and discarded unless attached
// to an episodic record as descriptive metadata.
type SalienceScore struct {
	Importance    float64 `json:"importance"`
	Novelty       float64 `json:"novelty"`
	Contradiction float64 `json:"contradiction"`
	Risk          float64 `json:"risk"`
}

// Combined collapses the vector into the write-gate score. Risk strictly
// lowers it: under uncertainty, sensitive content leans toward not being
// persisted.
func (s SalienceScore) Combined() float64 {
	return 0.4*s.Importance + 0.3*s.Novelty + 0.2*s.Contradiction - 0.1*s.Risk
}

// fallbackScore is used whenever model output cannot be parsed. Middling
// importance and novelty with zero contradiction and risk neither
// over-writes nor under-writes.
func fallbackScore() SalienceScore {
	return SalienceScore{Importance: 0.5, Novelty: 0.5}
}

// SalienceScorer computes the importance vector for a turn with a single
// model call.
type SalienceScorer struct {
	llm llm.Client
}

// NewSalienceScorer creates a scorer backed by the given model client.
func NewSalienceScorer(client llm.Client) *SalienceScorer {
	return &SalienceScorer{llm: client}
}

const saliencePromptFormat = `Analyze this conversation and compute salience scores (0.0-1.0) for:
1. importance: How critical is this information? (ticket creation, escalation, resolution = high)
2. novelty: Is this new information not already stored? (contradictions, corrections = high)
3. contradiction: Does this contradict existing memories? (user corrections = high)
4. risk: Could storing this cause harm? (PII, sensitive data = high risk)

Conversation:
%s

Tool Result:
%s

Return JSON:
{"importance": 0.0-1.0, "novelty": 0.0-1.0, "contradiction": 0.0-1.0, "risk": 0.0-1.0}`

// Compute scores the conversation, optionally in light of an authoritative
// tool result. A model transport failure propagates; unparsable model
// output falls back to conservative defaults and is never an error.
func (s *SalienceScorer) Compute(ctx context.Context, conversation string, result *tickets.ToolResult) (SalienceScore, error) {
	toolText := "None"
	if result != nil {
		b, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return SalienceScore{}, fmt.Errorf("marshal tool result: %w", err)
		}
		toolText = string(b)
	}

	out, err := s.llm.Invoke(ctx, "", fmt.Sprintf(saliencePromptFormat, conversation, toolText))
	if err != nil {
		return SalienceScore{}, fmt.Errorf("score salience: %w", err)
	}

	raw, ok := llm.ExtractJSON(out)
	if !ok {
		log.Printf("[SALIENCE] No JSON in model output, using defaults")
		return fallbackScore(), nil
	}
	var score SalienceScore
	if err := json.Unmarshal([]byte(raw), &score); err != nil {
		log.Printf("[SALIENCE] Unparsable score JSON, using defaults: %v", err)
		return fallbackScore(), nil
	}
	return score, nil
}

// ShouldWrite is the binary write gate. An explicit trigger always writes,
// regardless of the score: ticket lifecycle events must never be dropped
// by an imperfect scorer. Otherwise the combined score must reach the
// threshold, boundary inclusive.
func ShouldWrite(score SalienceScore, threshold float64, explicitTrigger bool) bool {
	if explicitTrigger {
		return true
	}
	return score.Combined() >= threshold
}

// ExplicitTrigger reports whether the tool result is a ticket lifecycle
// event: a create/update outcome, or a ticket that reached Escalated or
// Resolved.
func ExplicitTrigger(result *tickets.ToolResult) bool {
	if result == nil {
		return false
	}
	if result.TicketID != "" && (result.Status == "created" || result.Status == "updated") {
		return true
	}
	if result.Ticket != nil &&
		(result.Ticket.Status == tickets.StatusEscalated || result.Ticket.Status == tickets.StatusResolved) {
		return true
	}
	return false
}
