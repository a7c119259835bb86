// Package memory implements the multi-store memory subsystem for a
// support-ticket assistant.
//
// Four typed stores, each namespaced per user/session:
//   - SemanticStore: facts and structured domain knowledge, vector search
//     ranked by pure similarity, deterministic keys for consolidation.
//   - EpisodicStore: experiences, vector search reranked with a 30-day
//     recency decay.
//   - PreferenceStore: durable KV written only by explicit calls.
//   - Procedural tables: static workflows, tool-usage rules, and the
//     escalation state machine.
//
// Around the stores sit the write policies: the SalienceScorer gates what
// is worth persisting, the Extractor splits gated turns into facts and
// experiences, and the ConflictResolver reconciles stored facts against
// authoritative ticket output (which always wins).
//
// The Manager ties a turn together: read phase first (search + preference
// lookup), then the gated write phase. Storage backends and embedders are
// injected (see memory/store/chromem and memory/embedder) so tests can
// isolate per namespace.
package memory
