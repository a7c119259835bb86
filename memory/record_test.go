package memory_test

import (
	"strings"
	"testing"

	"github.com/quietdesk/deskmem/memory"
)

func TestDeriveSemanticKey(t *testing.T) {
	cases := []struct {
		fact string
		want string
	}{
		{"Customer has active ticket 12345", "ticket_12345"},
		{"Ticket #7 opened for the Netgear router", "ticket_7"},
		{"Customer device: Netgear Nighthawk router", "device_netgear"},
		{"The router-ax55 keeps rebooting", "device_router-ax55"},
		{"Customer: dana prefers email updates", "customer_dana"},
	}
	for _, tc := range cases {
		if got := memory.DeriveSemanticKey(tc.fact); got != tc.want {
			t.Errorf("DeriveSemanticKey(%q) = %q, want %q", tc.fact, got, tc.want)
		}
	}
}

func TestDeriveSemanticKeyFallsBackToRandom(t *testing.T) {
	a := memory.DeriveSemanticKey("Enjoys hiking on weekends")
	b := memory.DeriveSemanticKey("Enjoys hiking on weekends")
	if !strings.HasPrefix(a, "semantic_") || !strings.HasPrefix(b, "semantic_") {
		t.Fatalf("expected semantic_ prefix, got %q and %q", a, b)
	}
	if a == b {
		t.Errorf("fallback keys must be unique, both were %q", a)
	}
}

func TestRandomKeyFormat(t *testing.T) {
	key := memory.RandomKey("episodic")
	if !strings.HasPrefix(key, "episodic_") {
		t.Fatalf("unexpected prefix: %q", key)
	}
	if suffix := strings.TrimPrefix(key, "episodic_"); len(suffix) != 8 {
		t.Errorf("expected 8 hex chars, got %q", suffix)
	}
	if memory.RandomKey("episodic") == key {
		t.Error("two random keys collided")
	}
}

func TestRecordValidate(t *testing.T) {
	if err := (memory.Record{Namespace: "user_1", Key: "k"}).Validate(); err != nil {
		t.Errorf("valid record rejected: %v", err)
	}
	if err := (memory.Record{Key: "k"}).Validate(); err == nil {
		t.Error("empty namespace accepted")
	}
	if err := (memory.Record{Namespace: "user_1"}).Validate(); err == nil {
		t.Error("empty key accepted")
	}
}

func TestComposeID(t *testing.T) {
	if got := memory.ComposeID("user_1", "ticket_5"); got != "user_1:ticket_5" {
		t.Errorf("unexpected id: %q", got)
	}
}
