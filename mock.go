package digest

import (
	"context"
	"fmt"
	"sync/atomic"
)

// MockProvider simulates a completion service for testing.
// It returns a deterministic reply derived from the last user message.
type MockProvider struct {
	name      string
	available atomic.Bool
	calls     atomic.Int64
}

// NewMockProvider creates a new mock provider for testing.
func NewMockProvider() *MockProvider {
	return NewMockProviderWithName("mock")
}

// NewMockProviderWithName creates a new mock provider with a specific name.
func NewMockProviderWithName(name string) *MockProvider {
	m := &MockProvider{name: name}
	m.available.Store(true)
	return m
}

// Call returns "Mock reply (<n> chars)" for the last message.
func (m *MockProvider) Call(_ context.Context, messages []Message, _ float32) (*ProviderResponse, error) {
	m.calls.Add(1)
	if !m.available.Load() {
		return nil, fmt.Errorf("provider %s is unavailable", m.name)
	}
	content := lastContent(messages)
	return &ProviderResponse{
		Content: fmt.Sprintf("Mock reply (%d chars)", len(content)),
		Usage:   TokenUsage{Prompt: len(content), Completion: 4, Total: len(content) + 4},
	}, nil
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string {
	return m.name
}

// SetAvailable sets the availability status (for testing failures).
func (m *MockProvider) SetAvailable(available bool) {
	m.available.Store(available)
}

// CallCount returns the number of calls made.
func (m *MockProvider) CallCount() int {
	return int(m.calls.Load())
}

// NewEchoProvider creates a mock that replies with the last message verbatim.
func NewEchoProvider() Provider {
	return NewMockProviderWithCallback(func(messages []Message, _ float32) (string, error) {
		return lastContent(messages), nil
	})
}

// NewMockProviderWithResponse creates a mock that always returns a specific response.
func NewMockProviderWithResponse(response string) Provider {
	return &mockProviderCallback{
		name: "mock-fixed",
		callback: func([]Message, float32) (string, error) {
			return response, nil
		},
	}
}

// NewMockProviderWithError creates a mock whose every call fails with err.
func NewMockProviderWithError(err error) Provider {
	return &mockProviderCallback{
		name: "mock-error",
		callback: func([]Message, float32) (string, error) {
			return "", err
		},
	}
}

// NewMockProviderWithCallback creates a mock that calls a function to generate responses.
func NewMockProviderWithCallback(callback func(messages []Message, temperature float32) (string, error)) Provider {
	return &mockProviderCallback{name: "mock-callback", callback: callback}
}

// mockProviderCallback uses a callback to generate responses.
type mockProviderCallback struct {
	name     string
	callback func([]Message, float32) (string, error)
}

func (m *mockProviderCallback) Call(_ context.Context, messages []Message, temperature float32) (*ProviderResponse, error) {
	content, err := m.callback(messages, temperature)
	if err != nil {
		return nil, err
	}
	return &ProviderResponse{Content: content}, nil
}

func (m *mockProviderCallback) Name() string {
	return m.name
}

func lastContent(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}
