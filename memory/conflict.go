package memory

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/quietdesk/deskmem/tickets"
)

// ConflictResolver reconciles authoritative ticket data against stored
// semantic facts. Tool output always wins: verified facts are upserted
// under deterministic keys, so the overwrite itself resolves any stale
// fact that had landed on the same key. Detected conflicts against other
// records are counted, not diffed.
type ConflictResolver struct {
	semantic *SemanticStore
}

// NewConflictResolver creates a resolver writing into the given store.
func NewConflictResolver(semantic *SemanticStore) *ConflictResolver {
	return &ConflictResolver{semantic: semantic}
}

// ConflictReport summarizes one reconciliation pass.
type ConflictReport struct {
	// VerifiedFacts are the fact strings derived from the ticket and
	// written back to the semantic store.
	VerifiedFacts []string

	// Conflicts describes each contradiction detected between existing
	// memories and the authoritative ticket.
	Conflicts []string
}

// Resolve derives verified facts from an authoritative ticket result,
// upserts each under a deterministic per-facet key, and scans the
// caller's existing semantic results for contradictions. A result without
// a ticket is a no-op.
func (r *ConflictResolver) Resolve(ctx context.Context, namespace string, result *tickets.ToolResult, existing []SearchResult) (*ConflictReport, error) {
	if result == nil || result.Ticket == nil {
		return &ConflictReport{}, nil
	}
	ticket := result.Ticket
	ticketID := result.TicketID

	type verified struct {
		facet string
		text  string
	}
	var facts []verified
	if ticketID != "" {
		facts = append(facts, verified{"exists", fmt.Sprintf("Customer has active ticket %s", ticketID)})
	}
	if ticket.Device != "" && ticket.Device != "-" {
		facts = append(facts, verified{"device", fmt.Sprintf("Customer device: %s", ticket.Device)})
	}
	if ticket.CustomerName != "" {
		facts = append(facts, verified{"customer", fmt.Sprintf("Customer name: %s", ticket.CustomerName)})
	}
	if ticket.Status != "" {
		facts = append(facts, verified{"status", fmt.Sprintf("Ticket %s status: %s", ticketID, ticket.Status)})
	}

	conflicts := detectConflicts(ticketID, ticket.Device, existing)

	report := &ConflictReport{Conflicts: conflicts}
	for _, f := range facts {
		key := verifiedKey(ticketID, f.facet)
		meta := map[string]string{"source": "tool_verified"}
		if err := r.semantic.Put(ctx, namespace, key, f.text, meta); err != nil {
			return nil, fmt.Errorf("write verified fact: %w", err)
		}
		report.VerifiedFacts = append(report.VerifiedFacts, f.text)
	}

	if len(conflicts) > 0 {
		log.Printf("[CONFLICT] %d conflict(s) detected and resolved for ticket %s", len(conflicts), ticketID)
	}
	return report, nil
}

// verifiedKey keys each verified facet separately so repeated verification
// overwrites per facet instead of the facts clobbering one another.
func verifiedKey(ticketID, facet string) string {
	if ticketID == "" {
		return RandomKey("tool_verified")
	}
	return fmt.Sprintf("ticket_%s_verified_%s", ticketID, facet)
}

// detectConflicts pattern-matches existing semantic results for ticket ids
// or device tokens that contradict the verified ticket.
func detectConflicts(ticketID, device string, existing []SearchResult) []string {
	var conflicts []string
	for _, mem := range existing {
		content := strings.ToLower(mem.Content)

		if ticketID != "" && strings.Contains(content, "ticket") &&
			!strings.Contains(content, "ticket "+ticketID) {
			if m := ticketIDPattern.FindStringSubmatch(content); m != nil && m[1] != ticketID {
				conflicts = append(conflicts,
					fmt.Sprintf("ticket id conflict: memory had %s, tool verified %s", m[1], ticketID))
			}
		}

		if device != "" && device != "-" {
			deviceToken := strings.ToLower(device)
			if !strings.Contains(content, deviceToken) &&
				(strings.Contains(content, "device") || strings.Contains(content, "router")) {
				conflicts = append(conflicts,
					fmt.Sprintf("device conflict: memory %s does not match verified device %s", ComposeID(mem.Namespace, mem.Key), device))
			}
		}
	}
	return conflicts
}
