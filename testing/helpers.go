// Package testing provides utilities for testing digest pipelines.
package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/digest"
)

// Provider name constants for test helpers.
const (
	SequencedProviderName = "sequenced-mock"
	FailingProviderName   = "failing-mock"
)

// CompletionBuilder provides a fluent interface for constructing
// chat-completion response bodies.
type CompletionBuilder struct {
	content    string
	model      string
	finish     string
	prompt     int
	completion int
}

// NewCompletionBuilder creates a builder with a stop finish reason.
func NewCompletionBuilder() *CompletionBuilder {
	return &CompletionBuilder{model: "llama3-8b-8192", finish: "stop"}
}

// WithContent sets the assistant reply.
func (b *CompletionBuilder) WithContent(content string) *CompletionBuilder {
	b.content = content
	return b
}

// WithModel sets the reported model.
func (b *CompletionBuilder) WithModel(model string) *CompletionBuilder {
	b.model = model
	return b
}

// WithUsage sets prompt and completion token counts.
func (b *CompletionBuilder) WithUsage(prompt, completion int) *CompletionBuilder {
	b.prompt = prompt
	b.completion = completion
	return b
}

// Build returns the JSON body.
func (b *CompletionBuilder) Build() string {
	body := map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  b.model,
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": b.content},
			"finish_reason": b.finish,
		}},
		"usage": map[string]int{
			"prompt_tokens":     b.prompt,
			"completion_tokens": b.completion,
			"total_tokens":      b.prompt + b.completion,
		},
	}
	out, err := json.Marshal(body)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// RecordedRequest is one request received by a CompletionServer.
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
	Body          CompletionRequest
}

// CompletionRequest mirrors the chat-completions request body.
type CompletionRequest struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
}

// ScriptedResponse is one reply of a CompletionServer.
type ScriptedResponse struct {
	Status int
	Body   string
}

// CompletionServer is a fake chat-completions endpoint.
// It replies with scripted responses in order, repeating the last one, or
// echoes the last message when no script is set.
type CompletionServer struct {
	*httptest.Server
	script   []ScriptedResponse
	requests []RecordedRequest
	mu       sync.Mutex
}

// NewCompletionServer starts a fake endpoint. Close it when done.
func NewCompletionServer(script ...ScriptedResponse) *CompletionServer {
	s := &CompletionServer{script: script}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *CompletionServer) handle(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body CompletionRequest
	_ = json.Unmarshal(raw, &body)

	s.mu.Lock()
	index := len(s.requests)
	s.requests = append(s.requests, RecordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		ContentType:   r.Header.Get("Content-Type"),
		Body:          body,
	})
	var reply ScriptedResponse
	switch {
	case len(s.script) == 0:
		last := ""
		if n := len(body.Messages); n > 0 {
			last = body.Messages[n-1].Content
		}
		reply = ScriptedResponse{Status: http.StatusOK, Body: NewCompletionBuilder().WithContent(last).Build()}
	case index < len(s.script):
		reply = s.script[index]
	default:
		reply = s.script[len(s.script)-1]
	}
	s.mu.Unlock()

	if reply.Status == 0 {
		reply.Status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.Status)
	_, _ = w.Write([]byte(reply.Body))
}

// Requests returns a copy of the requests received so far.
func (s *CompletionServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestCount returns the number of requests received.
func (s *CompletionServer) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// SequencedProvider returns responses in sequence.
// After all responses are exhausted, it returns the last response repeatedly.
type SequencedProvider struct {
	responses []string
	index     atomic.Int64
}

// NewSequencedProvider creates a provider that returns responses in order.
func NewSequencedProvider(responses ...string) *SequencedProvider {
	if len(responses) == 0 {
		responses = []string{"no responses configured"}
	}
	return &SequencedProvider{responses: responses}
}

// Call returns the next response in sequence.
func (p *SequencedProvider) Call(_ context.Context, _ []digest.Message, _ float32) (*digest.ProviderResponse, error) {
	idx := p.index.Add(1) - 1
	if int(idx) >= len(p.responses) {
		idx = int64(len(p.responses) - 1)
	}
	return &digest.ProviderResponse{
		Content: p.responses[idx],
		Usage:   digest.TokenUsage{Prompt: 100, Completion: 50, Total: 150},
	}, nil
}

// Name returns the provider identifier.
func (*SequencedProvider) Name() string {
	return SequencedProviderName
}

// CallCount returns the number of calls made.
func (p *SequencedProvider) CallCount() int {
	return int(p.index.Load())
}

// FailingProvider succeeds until call number failAt (1-based) and fails on
// that call and every later one.
type FailingProvider struct {
	failAt      int
	count       atomic.Int64
	successResp string
	failErr     error
}

// NewFailingProvider creates a provider that fails from call failAt onwards.
// failAt of 1 fails every call.
func NewFailingProvider(failAt int) *FailingProvider {
	return &FailingProvider{
		failAt:      failAt,
		successResp: "ok",
		failErr: &digest.TransportError{
			StatusCode: http.StatusServiceUnavailable,
			Status:     "503 Service Unavailable",
			Body:       "simulated provider failure",
		},
	}
}

// WithSuccessResponse sets the reply returned before the failure point.
func (p *FailingProvider) WithSuccessResponse(response string) *FailingProvider {
	p.successResp = response
	return p
}

// WithFailError sets the error returned from the failure point.
func (p *FailingProvider) WithFailError(err error) *FailingProvider {
	p.failErr = err
	return p
}

// Call fails once failAt is reached.
func (p *FailingProvider) Call(_ context.Context, _ []digest.Message, _ float32) (*digest.ProviderResponse, error) {
	count := p.count.Add(1)
	if int(count) >= p.failAt {
		return nil, p.failErr
	}
	return &digest.ProviderResponse{
		Content: fmt.Sprintf("%s #%d", p.successResp, count),
		Usage:   digest.TokenUsage{Prompt: 100, Completion: 50, Total: 150},
	}, nil
}

// Name returns the provider identifier.
func (*FailingProvider) Name() string {
	return FailingProviderName
}

// CallCount returns the number of calls made.
func (p *FailingProvider) CallCount() int {
	return int(p.count.Load())
}

// RecordedCall represents a single call to a provider.
type RecordedCall struct {
	Messages    []digest.Message
	Temperature float32
}

// CallRecorder wraps a provider and records all calls made to it.
type CallRecorder struct {
	provider digest.Provider
	calls    []RecordedCall
	mu       sync.Mutex
}

// NewCallRecorder wraps a provider with call recording.
func NewCallRecorder(provider digest.Provider) *CallRecorder {
	return &CallRecorder{
		provider: provider,
		calls:    make([]RecordedCall, 0),
	}
}

// Call delegates to the wrapped provider and records the call.
func (r *CallRecorder) Call(ctx context.Context, messages []digest.Message, temperature float32) (*digest.ProviderResponse, error) {
	msgCopy := make([]digest.Message, len(messages))
	copy(msgCopy, messages)

	r.mu.Lock()
	r.calls = append(r.calls, RecordedCall{
		Messages:    msgCopy,
		Temperature: temperature,
	})
	r.mu.Unlock()

	return r.provider.Call(ctx, messages, temperature)
}

// Name returns the wrapped provider's name.
func (r *CallRecorder) Name() string {
	return r.provider.Name()
}

// Calls returns a copy of all recorded calls.
func (r *CallRecorder) Calls() []RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := make([]RecordedCall, len(r.calls))
	copy(calls, r.calls)
	return calls
}

// CallCount returns the number of calls recorded.
func (r *CallRecorder) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Prompts returns the last message of every recorded call.
func (r *CallRecorder) Prompts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	prompts := make([]string, 0, len(r.calls))
	for _, call := range r.calls {
		if n := len(call.Messages); n > 0 {
			prompts = append(prompts, call.Messages[n-1].Content)
		}
	}
	return prompts
}

// LatencyProvider wraps a provider and adds artificial latency.
type LatencyProvider struct {
	provider digest.Provider
	delay    time.Duration
}

// NewLatencyProvider wraps a provider with artificial delay.
// The delay respects context cancellation.
func NewLatencyProvider(provider digest.Provider, delay time.Duration) *LatencyProvider {
	return &LatencyProvider{
		provider: provider,
		delay:    delay,
	}
}

// Call adds latency then delegates to the wrapped provider.
func (p *LatencyProvider) Call(ctx context.Context, messages []digest.Message, temperature float32) (*digest.ProviderResponse, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.provider.Call(ctx, messages, temperature)
}

// Name returns the wrapped provider's name.
func (p *LatencyProvider) Name() string {
	return p.provider.Name()
}
