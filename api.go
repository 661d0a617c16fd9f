// Package digest summarizes documents through a remote chat-completion service.
//
// A submission is a Request: raw text plus a Style. Two pipeline variants turn
// a Request into display text:
//
//   - SingleStage: one prompt, one completion call. Failures become the output
//     text so callers always receive something to render.
//   - ThreeStage: a fixed chain of input formatting, summarization and output
//     formatting. Each stage makes one completion call and the first failure
//     aborts the chain.
//
// Pipelines are built per request from a Provider and carry no process-wide
// state. Every run emits capitan events for logging and metrics.
//
// Basic usage:
//
//	provider, _ := groq.New(groq.Config{APIKey: os.Getenv("GROQ_API_KEY")})
//	result, err := digest.NewThreeStage(provider).Summarize(ctx, digest.NewRequest(text, "brief"))
//	fmt.Println(result.Output)
package digest

import (
	"context"
	"fmt"
	"strings"
)

// Provider defines the interface for completion services.
// A call sends the chat turns in order (oldest first) and returns the
// assistant reply of the first choice.
type Provider interface {
	// Call performs exactly one request/response cycle.
	Call(ctx context.Context, messages []Message, temperature float32) (*ProviderResponse, error)

	// Name returns the provider identifier (e.g. "groq").
	Name() string
}

// Summarizer is implemented by both pipeline variants.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (*Result, error)
}

// TokenUsage contains token counts from a provider response.
type TokenUsage struct {
	Prompt     int
	Completion int
	Total      int
}

// ProviderResponse contains the reply of a completion call.
type ProviderResponse struct {
	Content string
	Usage   TokenUsage
}

// Message represents one chat turn sent to or received from the provider.
type Message struct {
	Role    string // RoleUser or RoleAssistant
	Content string
}

// Role constants for message types.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request is a single user submission. It is never modified once built.
type Request struct {
	Text  string
	Style Style
}

// NewRequest builds a Request, mapping unknown styles to StyleDefault.
func NewRequest(text, style string) Request {
	return Request{Text: text, Style: ParseStyle(style)}
}

// Validate rejects empty or whitespace-only text.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return &ValidationError{Reason: "text is empty"}
	}
	return nil
}

// Variant selects a pipeline shape.
type Variant string

// Supported pipeline variants.
const (
	VariantSingle Variant = "single"
	VariantChain  Variant = "chain"
)

// ParseVariant resolves a variant name. An empty name selects VariantChain.
func ParseVariant(s string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return VariantChain, nil
	case VariantSingle:
		return VariantSingle, nil
	case VariantChain:
		return VariantChain, nil
	default:
		return "", fmt.Errorf("unknown variant %q", s)
	}
}

// New builds a fresh pipeline of the given variant.
func New(variant Variant, provider Provider, opts ...Option) (Summarizer, error) {
	switch variant {
	case VariantSingle:
		return NewSingleStage(provider, opts...), nil
	case VariantChain:
		return NewThreeStage(provider, opts...), nil
	default:
		return nil, fmt.Errorf("unknown variant %q", variant)
	}
}
