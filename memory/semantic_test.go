package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/quietdesk/deskmem/memory"
)

func TestSemanticUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	store := newSemanticForTest(clock)

	if err := store.Put(ctx, "user_1", "ticket_5", "Customer has active ticket 5", nil); err != nil {
		t.Fatalf("first put: %v", err)
	}

	clock.t = clock.t.Add(48 * time.Hour)
	if err := store.Put(ctx, "user_1", "ticket_5", "Ticket 5 is about slow wifi", nil); err != nil {
		t.Fatalf("second put: %v", err)
	}

	rec, ok, err := store.Get(ctx, "user_1", "ticket_5")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if rec.Content != "Ticket 5 is about slow wifi" {
		t.Errorf("second write did not win: %s", rec.Content)
	}
	if !rec.CreatedAt.Equal(clock.t) {
		t.Errorf("timestamp not advanced on overwrite: %v", rec.CreatedAt)
	}

	results, err := store.Search(ctx, "user_1", "ticket wifi", 10, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("upsert duplicated the record: got %d results", len(results))
	}
}

func TestSemanticNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	store := newSemanticForTest(clock)

	if err := store.Put(ctx, "user_a", "ticket_1", "Customer has active ticket 1", nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "user_b", "ticket_2", "Customer has active ticket 2", nil); err != nil {
		t.Fatalf("put: %v", err)
	}

	results, err := store.Search(ctx, "user_a", "ticket", 10, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result in user_a, got %d", len(results))
	}
	if results[0].Namespace != "user_a" || results[0].Key != "ticket_1" {
		t.Errorf("search leaked across namespaces: %s", memory.ComposeID(results[0].Namespace, results[0].Key))
	}

	// Same key in another namespace is an independent record.
	if err := store.Put(ctx, "user_b", "ticket_1", "Customer has active ticket 1", nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok, err := store.Get(ctx, "user_a", "ticket_1"); err != nil || !ok {
		t.Errorf("user_a record disturbed by user_b write: ok=%v err=%v", ok, err)
	}
}

func TestSemanticSearchEmptyStore(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Now()}
	store := newSemanticForTest(clock)

	results, err := store.Search(ctx, "user_1", "anything", 5, nil)
	if err != nil {
		t.Fatalf("empty search must not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestSemanticEmbedFailureIsHardError(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSemanticStore(newSemanticBackend(), failEmbedder{})

	if err := store.Put(ctx, "user_1", "k", "some fact", nil); err == nil {
		t.Error("expected put to fail when embedding fails")
	}
	if _, err := store.Search(ctx, "user_1", "query", 3, nil); err == nil {
		t.Error("expected search to fail when embedding fails")
	}
}

func TestSemanticDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Now()}
	store := newSemanticForTest(clock)

	if err := store.Put(ctx, "user_1", "ticket_9", "Customer has active ticket 9", nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, "user_1", "ticket_9"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "user_1", "ticket_9"); ok {
		t.Error("record survived delete")
	}
	// Deleting again is a no-op.
	if err := store.Delete(ctx, "user_1", "ticket_9"); err != nil {
		t.Errorf("delete of missing record errored: %v", err)
	}

	if err := store.Put(ctx, "user_1", "ticket_9", "Customer has active ticket 9", nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Clear(ctx, "user_1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	results, err := store.Search(ctx, "user_1", "ticket", 5, nil)
	if err != nil {
		t.Fatalf("search after clear: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("namespace not empty after clear: %d results", len(results))
	}
}
