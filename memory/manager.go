package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/quietdesk/deskmem/llm"
	"github.com/quietdesk/deskmem/tickets"
)

// Config holds Manager configuration.
type Config struct {
	// SalienceThreshold is the combined-score write gate.
	// Default: DefaultWriteThreshold.
	SalienceThreshold float64

	// TopK is how many records each read-phase search returns.
	// Default: 3.
	TopK int
}

// DefaultConfig returns the Manager defaults.
var DefaultConfig = &Config{
	SalienceThreshold: DefaultWriteThreshold,
	TopK:              3,
}

// Manager sequences one conversational turn across the memory stores:
// a read phase (semantic and episodic search plus preference lookup)
// followed by a gated write phase (salience gate, extraction, dual write,
// conflict resolution, escalation check).
//
// Turns for the same namespace must not interleave writes: upserts are
// last-write-wins, and interleaving loses updates. Reads may run
// concurrently with writes to other namespaces. The Manager itself spawns
// no goroutines; every external call is awaited before the turn proceeds.
type Manager struct {
	semantic  *SemanticStore
	episodic  *EpisodicStore
	prefs     *PreferenceStore
	scorer    *SalienceScorer
	extractor *Extractor
	resolver  *ConflictResolver
	config    *Config
	now       func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerClock overrides the Manager's time source, used for
// escalation age checks.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager wires the stores and the model client into a turn manager.
func NewManager(semantic *SemanticStore, episodic *EpisodicStore, prefs *PreferenceStore, client llm.Client, config *Config, opts ...ManagerOption) *Manager {
	if config == nil {
		config = DefaultConfig
	}
	m := &Manager{
		semantic:  semantic,
		episodic:  episodic,
		prefs:     prefs,
		scorer:    NewSalienceScorer(client),
		extractor: NewExtractor(client),
		resolver:  NewConflictResolver(semantic),
		config:    config,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Recall is the read-phase result for one turn.
type Recall struct {
	Semantic    []SearchResult
	Episodic    []SearchResult
	Preferences map[string]PreferenceEntry
}

// Retrieve runs the read phase: semantic and episodic search for the
// query plus the namespace's preferences. Reads never write.
func (m *Manager) Retrieve(ctx context.Context, namespace, query string) (*Recall, error) {
	semantic, err := m.semantic.Search(ctx, namespace, query, m.config.TopK, nil)
	if err != nil {
		return nil, fmt.Errorf("semantic read: %w", err)
	}
	episodic, err := m.episodic.Search(ctx, namespace, query, m.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("episodic read: %w", err)
	}

	recall := &Recall{
		Semantic:    semantic,
		Episodic:    episodic,
		Preferences: m.prefs.GetAll(namespace),
	}
	log.Printf("[MEMORY] Retrieved %d semantic, %d episodic, %d preference entries for %q",
		len(semantic), len(episodic), len(recall.Preferences), namespace)
	return recall, nil
}

// Format renders the recall for prompt injection.
func (r *Recall) Format() string {
	var parts []string

	if len(r.Semantic) > 0 {
		lines := []string{"Semantic memories (facts, domain knowledge):"}
		for _, mem := range r.Semantic {
			lines = append(lines, "- "+mem.Content)
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	if len(r.Episodic) > 0 {
		lines := []string{"Episodic memories (past experiences):"}
		for _, mem := range r.Episodic {
			lines = append(lines, "- "+mem.Content)
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	if len(r.Preferences) > 0 {
		lines := []string{"User preferences:"}
		for key, entry := range r.Preferences {
			lines = append(lines, fmt.Sprintf("- %s: %v", key, entry.Value))
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	return strings.Join(parts, "\n\n")
}

// Turn is the structured context for one turn's write phase.
type Turn struct {
	// Conversation is the candidate text to score and extract from.
	Conversation string

	// ToolResult is the authoritative ticket result for the turn, if a
	// ticket tool ran. Drives explicit triggers, conflict resolution and
	// escalation.
	ToolResult *tickets.ToolResult

	// Procedure is the planner's currently selected procedure.
	Procedure ProcedureID

	// SemanticContext carries the read phase's semantic results, scanned
	// for contradictions against the authoritative ticket.
	SemanticContext []SearchResult
}

// TurnReport summarizes what the write phase did.
type TurnReport struct {
	Scores          SalienceScore
	Written         bool
	SemanticWritten int
	EpisodicWritten int
	VerifiedFacts   int
	Conflicts       int

	// Procedure is the active procedure after the escalation check;
	// Escalation is set when a rule forced it to escalated_support.
	Procedure  ProcedureID
	Escalation *EscalationRule
}

// Record runs the write phase for one turn: salience gate, extraction and
// dual write when the gate opens, conflict resolution whenever an
// authoritative ticket is present, then the escalation check. A failed
// external call aborts the phase; completed upserts are idempotent, so a
// retry of the whole turn is safe.
func (m *Manager) Record(ctx context.Context, namespace string, turn Turn) (*TurnReport, error) {
	report := &TurnReport{Procedure: turn.Procedure}

	scores, err := m.scorer.Compute(ctx, turn.Conversation, turn.ToolResult)
	if err != nil {
		return nil, err
	}
	report.Scores = scores

	explicit := ExplicitTrigger(turn.ToolResult)
	if ShouldWrite(scores, m.config.SalienceThreshold, explicit) {
		report.Written = true
		extraction, err := m.extractor.Extract(ctx, turn.Conversation)
		if err != nil {
			return nil, err
		}
		if err := m.writeExtraction(ctx, namespace, extraction, scores.Importance, report); err != nil {
			return nil, err
		}
		log.Printf("[MEMORY] Gate open (combined=%.2f explicit=%t): wrote %d semantic, %d episodic",
			scores.Combined(), explicit, report.SemanticWritten, report.EpisodicWritten)
	} else {
		log.Printf("[MEMORY] Gate closed (combined=%.2f < %.2f), nothing persisted",
			scores.Combined(), m.config.SalienceThreshold)
	}

	if turn.ToolResult != nil && turn.ToolResult.Ticket != nil {
		conflictReport, err := m.resolver.Resolve(ctx, namespace, turn.ToolResult, turn.SemanticContext)
		if err != nil {
			return nil, err
		}
		report.VerifiedFacts = len(conflictReport.VerifiedFacts)
		report.Conflicts = len(conflictReport.Conflicts)
	}

	procedure, escalation := ApplyEscalation(turn.Procedure, turn.ToolResult, m.now())
	report.Procedure = procedure
	report.Escalation = escalation
	if escalation != nil {
		log.Printf("[MEMORY] Escalation rule %s fired: procedure forced to %s", escalation.ID, procedure)
	}
	return report, nil
}

// writeExtraction performs the dual write. Semantic facts get
// deterministic keys so repeated mentions overwrite; episodic experiences
// always get fresh random keys, carrying the turn's importance as
// salience. Episodes are deliberately not deduplicated: several similar
// experiences are expected and meaningful.
func (m *Manager) writeExtraction(ctx context.Context, namespace string, extraction Extraction, importance float64, report *TurnReport) error {
	for _, candidate := range extraction.Semantic {
		fact, ok := keepCandidate(candidate)
		if !ok {
			continue
		}
		key := DeriveSemanticKey(fact)
		if err := m.semantic.Put(ctx, namespace, key, fact, nil); err != nil {
			return fmt.Errorf("write semantic fact: %w", err)
		}
		report.SemanticWritten++
	}

	for _, candidate := range extraction.Episodic {
		experience, ok := keepCandidate(candidate)
		if !ok {
			continue
		}
		key := RandomKey("episodic")
		if err := m.episodic.Put(ctx, namespace, key, experience, nil, importance); err != nil {
			return fmt.Errorf("write episode: %w", err)
		}
		report.EpisodicWritten++
	}
	return nil
}

// Preferences exposes the preference store for explicit writes. The
// Manager itself never writes preferences: there is no code path that
// infers a preference from conversation text.
func (m *Manager) Preferences() *PreferenceStore {
	return m.prefs
}
