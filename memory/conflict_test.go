package memory_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/quietdesk/deskmem/memory"
	"github.com/quietdesk/deskmem/tickets"
)

func TestResolveWritesVerifiedFactsAndDetectsConflicts(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	semantic := newSemanticForTest(clock)
	resolver := memory.NewConflictResolver(semantic)
	ns := "user_42"

	// Stale memories from earlier conversations.
	if err := semantic.Put(ctx, ns, "ticket_777123",
		"Customer previously reported ticket 777123 about wifi", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := semantic.Put(ctx, ns, "device_netgear",
		"Customer has a Netgear Nighthawk router device at home", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	existing, err := semantic.Search(ctx, ns, "ticket device", 5, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	clock.t = clock.t.Add(time.Hour)
	result := &tickets.ToolResult{
		TicketID: "998880",
		Status:   "updated",
		Ticket: &tickets.Ticket{
			Status:       tickets.StatusOpen,
			Device:       "Archer-AX55",
			CustomerName: "dana",
			Priority:     tickets.PriorityMedium,
		},
	}
	report, err := resolver.Resolve(ctx, ns, result, existing)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if len(report.VerifiedFacts) != 4 {
		t.Errorf("expected 4 verified facts (exists, device, customer, status), got %d: %v",
			len(report.VerifiedFacts), report.VerifiedFacts)
	}
	if len(report.Conflicts) != 2 {
		t.Errorf("expected a ticket id conflict and a device conflict, got %d: %v",
			len(report.Conflicts), report.Conflicts)
	}

	rec, ok, err := semantic.Get(ctx, ns, "ticket_998880_verified_device")
	if err != nil || !ok {
		t.Fatalf("verified device fact missing: ok=%v err=%v", ok, err)
	}
	if rec.Content != "Customer device: Archer-AX55" {
		t.Errorf("unexpected verified device fact: %s", rec.Content)
	}
	if rec.Metadata["source"] != "tool_verified" {
		t.Errorf("verified fact not marked tool_verified: %v", rec.Metadata)
	}
}

func TestResolveVerifiedFactOutranksStaleOne(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	semantic := newSemanticForTest(clock)
	resolver := memory.NewConflictResolver(semantic)
	ns := "user_42"

	if err := semantic.Put(ctx, ns, "device_netgear",
		"Customer has a Netgear Nighthawk router device at home", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	result := &tickets.ToolResult{
		TicketID: "998880",
		Ticket:   &tickets.Ticket{Device: "Archer-AX55", Status: tickets.StatusOpen},
	}
	if _, err := resolver.Resolve(ctx, ns, result, nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	results, err := semantic.Search(ctx, ns, "device", 5, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results for device query")
	}
	if !strings.Contains(results[0].Content, "Archer-AX55") {
		t.Errorf("verified device fact should rank first, got %q", results[0].Content)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	semantic := newSemanticForTest(clock)
	resolver := memory.NewConflictResolver(semantic)
	ns := "user_42"

	result := &tickets.ToolResult{
		TicketID: "7",
		Ticket:   &tickets.Ticket{Device: "Archer-AX55", Status: tickets.StatusOpen, CustomerName: "ben"},
	}
	for i := 0; i < 3; i++ {
		clock.t = clock.t.Add(time.Minute)
		if _, err := resolver.Resolve(ctx, ns, result, nil); err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
	}

	results, err := semantic.Search(ctx, ns, "ticket device customer", 20, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// exists, device, customer, status: one record per facet, however many
	// times verification ran.
	if len(results) != 4 {
		t.Errorf("repeated verification duplicated records: got %d", len(results))
	}
}

func TestResolveWithoutTicketIsNoOp(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Now()}
	semantic := newSemanticForTest(clock)
	resolver := memory.NewConflictResolver(semantic)

	report, err := resolver.Resolve(ctx, "user_1", nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(report.VerifiedFacts) != 0 || len(report.Conflicts) != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}

	report, err = resolver.Resolve(ctx, "user_1", &tickets.ToolResult{TicketID: "9"}, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(report.VerifiedFacts) != 0 {
		t.Errorf("result without ticket payload must not write facts: %v", report.VerifiedFacts)
	}
}
