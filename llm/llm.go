// Package llm defines the language-model collaborator used by the memory
// core, plus the shared utility for pulling JSON out of model output.
//
// The memory core treats the model as an opaque function from prompt to
// text. Anthropic is the SDK-provided implementation; tests and custom
// integrations supply their own Client (Func makes that a one-liner).
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Client is the minimal model surface the memory core depends on.
type Client interface {
	// Invoke sends one prompt and returns the model's text response.
	// system may be empty.
	Invoke(ctx context.Context, system, prompt string) (string, error)
}

// Func adapts a plain function to Client.
type Func func(ctx context.Context, system, prompt string) (string, error)

// Invoke implements Client.
func (f Func) Invoke(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

// Anthropic is a Client backed by the Claude Messages API.
type Anthropic struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// AnthropicOption configures an Anthropic client.
type AnthropicOption func(*Anthropic)

// WithModel sets the Claude model.
func WithModel(model string) AnthropicOption {
	return func(a *Anthropic) {
		a.model = model
	}
}

// WithMaxTokens sets the maximum response tokens.
func WithMaxTokens(n int64) AnthropicOption {
	return func(a *Anthropic) {
		a.maxTokens = n
	}
}

// NewAnthropic wraps an Anthropic API client as a Client.
func NewAnthropic(client *anthropic.Client, opts ...AnthropicOption) *Anthropic {
	a := &Anthropic{
		client:    client,
		model:     "claude-sonnet-4-20250514",
		maxTokens: 1024,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Invoke sends a single user message and concatenates the text blocks of
// the response.
func (a *Anthropic) Invoke(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}
