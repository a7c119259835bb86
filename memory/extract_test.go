package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/quietdesk/deskmem/llm"
	"github.com/quietdesk/deskmem/memory"
)

func TestExtractorParsesFencedJSON(t *testing.T) {
	extractor := memory.NewExtractor(stubModel(
		"```json\n{\"semantic\": [\"Customer has ticket 12\"], \"episodic\": [\"Customer tried restarting the router\"]}\n```"))

	ex, err := extractor.Extract(context.Background(), "some conversation")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(ex.Semantic) != 1 || ex.Semantic[0] != "Customer has ticket 12" {
		t.Errorf("unexpected semantic candidates: %v", ex.Semantic)
	}
	if len(ex.Episodic) != 1 || ex.Episodic[0] != "Customer tried restarting the router" {
		t.Errorf("unexpected episodic candidates: %v", ex.Episodic)
	}
}

func TestExtractorMalformedOutputYieldsEmptyExtraction(t *testing.T) {
	extractor := memory.NewExtractor(stubModel("no structured output here"))

	ex, err := extractor.Extract(context.Background(), "some conversation")
	if err != nil {
		t.Fatalf("malformed output must not be an error: %v", err)
	}
	if len(ex.Semantic) != 0 || len(ex.Episodic) != 0 {
		t.Errorf("expected empty extraction, got %+v", ex)
	}
}

func TestExtractorPropagatesTransportError(t *testing.T) {
	failing := llm.Func(func(context.Context, string, string) (string, error) {
		return "", errors.New("model unavailable")
	})
	extractor := memory.NewExtractor(failing)

	if _, err := extractor.Extract(context.Background(), "hello"); err == nil {
		t.Error("expected transport error to propagate")
	}
}
