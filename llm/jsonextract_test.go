package llm

import "testing"

func TestExtractJSON_PlainObject(t *testing.T) {
	got, ok := ExtractJSON(`{"importance": 0.8, "risk": 0.1}`)
	if !ok {
		t.Fatal("expected JSON to be found")
	}
	if got != `{"importance": 0.8, "risk": 0.1}` {
		t.Errorf("unexpected extraction: %s", got)
	}
}

func TestExtractJSON_WrappedInProse(t *testing.T) {
	content := `Sure! Here are the scores you asked for: {"importance": 0.9} Let me know if you need anything else.`
	got, ok := ExtractJSON(content)
	if !ok {
		t.Fatal("expected JSON to be found")
	}
	if got != `{"importance": 0.9}` {
		t.Errorf("unexpected extraction: %s", got)
	}
}

func TestExtractJSON_CodeFence(t *testing.T) {
	content := "Here you go:\n```json\n{\n  \"semantic\": [\"fact one\"],\n  \"episodic\": []\n}\n```\nDone."
	got, ok := ExtractJSON(content)
	if !ok {
		t.Fatal("expected JSON to be found")
	}
	if got != "{\n  \"semantic\": [\"fact one\"],\n  \"episodic\": []\n}" {
		t.Errorf("unexpected extraction: %s", got)
	}
}

func TestExtractJSON_NestedAndEscaped(t *testing.T) {
	content := `prefix {"outer": {"note": "brace } inside", "quote": "say \"hi\""}, "n": 1} suffix`
	got, ok := ExtractJSON(content)
	if !ok {
		t.Fatal("expected JSON to be found")
	}
	want := `{"outer": {"note": "brace } inside", "quote": "say \"hi\""}, "n": 1}`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestExtractJSON_Array(t *testing.T) {
	got, ok := ExtractJSON(`the list is ["a", "b"] ok`)
	if !ok {
		t.Fatal("expected JSON to be found")
	}
	if got != `["a", "b"]` {
		t.Errorf("unexpected extraction: %s", got)
	}
}

func TestExtractJSON_NoJSON(t *testing.T) {
	if _, ok := ExtractJSON("no structured content here"); ok {
		t.Error("expected no JSON to be found")
	}
}

func TestExtractJSON_Unterminated(t *testing.T) {
	if _, ok := ExtractJSON(`{"importance": 0.5`); ok {
		t.Error("expected unterminated JSON to be rejected")
	}
}
