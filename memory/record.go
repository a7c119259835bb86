package memory

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes the two vector-backed record types.
type Kind string

const (
	// KindSemantic marks facts and structured domain knowledge.
	KindSemantic Kind = "semantic"

	// KindEpisodic marks experiences: what happened, what was tried.
	KindEpisodic Kind = "episodic"
)

// Record is one stored memory. Identity is (Namespace, Key): writing the
// same pair again overwrites the record, never duplicates it. Embedding
// is computed from Content at write time and never mutated independently.
type Record struct {
	Namespace string
	Key       string
	Content   string
	Embedding []float32
	Metadata  map[string]string
	CreatedAt time.Time
	Kind      Kind
}

// Validate rejects records without the identity pair.
func (r Record) Validate() error {
	if r.Namespace == "" {
		return fmt.Errorf("record has empty namespace")
	}
	if r.Key == "" {
		return fmt.Errorf("record has empty key")
	}
	return nil
}

// ComposeID maps (namespace, key) to the storage identifier. It is the
// upsert identity for every vector-backed record, so it must stay
// deterministic and collision-free within a namespace.
func ComposeID(namespace, key string) string {
	return namespace + ":" + key
}

// Entity patterns for deterministic semantic keys. Facts about a stable
// real-world entity must land on the same key every time they are
// mentioned, or the store accumulates duplicates and leaks stale facts.
var (
	ticketIDPattern = regexp.MustCompile(`ticket[:\s#]*(\d+)`)
	devicePattern   = regexp.MustCompile(`(netgear|archer|nighthawk|router[-\s]*[a-z0-9]+)`)
	customerPattern = regexp.MustCompile(`customer[:\s]+([a-z]+)`)
)

// DeriveSemanticKey assigns a key to a fact, preferring entities extracted
// from the text in priority order: ticket id, device token, customer name.
// Only when no stable entity is present does it fall back to a random
// token, which guarantees uniqueness but forfeits overwrite consolidation.
func DeriveSemanticKey(fact string) string {
	lower := strings.ToLower(fact)

	if m := ticketIDPattern.FindStringSubmatch(lower); m != nil {
		return "ticket_" + m[1]
	}
	if strings.Contains(lower, "router") || strings.Contains(lower, "device") {
		if m := devicePattern.FindStringSubmatch(lower); m != nil {
			return "device_" + strings.ReplaceAll(m[1], " ", "_")
		}
	}
	if strings.Contains(lower, "customer") {
		if m := customerPattern.FindStringSubmatch(lower); m != nil {
			return "customer_" + m[1]
		}
	}
	return RandomKey("semantic")
}

// RandomKey returns "<prefix>_<8 hex chars>" for records with no stable
// entity to key on.
func RandomKey(prefix string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%x", prefix, id[:4])
}
