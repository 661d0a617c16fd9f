// Package groq implements the digest Provider for Groq's OpenAI-compatible
// chat completions API.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/digest"
)

// Defaults applied by New.
const (
	DefaultModel   = "llama3-8b-8192"
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultTimeout = 60 * time.Second
)

// Provider implements the digest Provider interface for the Groq API.
type Provider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	name       string
}

// Config holds configuration for the Groq provider.
type Config struct {
	APIKey     string        // Required
	Model      string        // Optional, defaults to DefaultModel
	BaseURL    string        // Optional, defaults to DefaultBaseURL
	Timeout    time.Duration // Optional, defaults to DefaultTimeout; negative disables it
	HTTPClient *http.Client  // Optional, replaces the default client (Timeout is then ignored)
}

// New creates a Groq provider. An empty API key is a configuration error;
// there is no fallback credential.
func New(config Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("groq: %w", digest.ErrMissingCredential)
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Timeout < 0 {
		config.Timeout = 0
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	return &Provider{
		apiKey:     config.APIKey,
		model:      config.Model,
		endpoint:   config.BaseURL + "/chat/completions",
		httpClient: client,
		name:       "groq",
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Model returns the model identifier sent with every request.
func (p *Provider) Model() string {
	return p.model
}

// Call sends messages in a single POST and returns the first choice.
// There are no retries: a non-2xx status is returned as a
// *digest.TransportError with the body preserved, any other failure as a
// *digest.UnexpectedError.
func (p *Provider) Call(ctx context.Context, messages []digest.Message, temperature float32) (*digest.ProviderResponse, error) {
	startTime := time.Now()

	capitan.Emit(ctx, digest.ProviderCallStarted,
		digest.ProviderKey.Field(p.name),
		digest.ModelKey.Field(p.model),
	)

	apiMessages := make([]message, len(messages))
	for i, msg := range messages {
		apiMessages[i] = message{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	jsonBody, err := json.Marshal(chatCompletionRequest{
		Messages:    apiMessages,
		Model:       p.model,
		Temperature: temperature,
	})
	if err != nil {
		return nil, p.unexpected(ctx, "marshal request", err, startTime)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, p.unexpected(ctx, "create request", err, startTime)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, p.unexpected(ctx, "send request", err, startTime)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, p.unexpected(ctx, "read response", err, startTime)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fields := []capitan.Field{
			digest.ProviderKey.Field(p.name),
			digest.ModelKey.Field(p.model),
			digest.HTTPStatusCodeKey.Field(resp.StatusCode),
			digest.DurationMsKey.Field(int(time.Since(startTime).Milliseconds())),
			digest.ErrorTypeKey.Field(digest.ErrorTypeTransport),
		}
		var errorResp errorResponse
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			fields = append(fields, digest.ErrorKey.Field(errorResp.Error.Message))
		} else {
			fields = append(fields, digest.ErrorKey.Field(resp.Status))
		}
		capitan.Emit(ctx, digest.ProviderCallFailed, fields...)

		return nil, &digest.TransportError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	var completionResp chatCompletionResponse
	if err := json.Unmarshal(body, &completionResp); err != nil {
		return nil, p.unexpected(ctx, "parse response", err, startTime)
	}
	if len(completionResp.Choices) == 0 {
		return nil, p.unexpected(ctx, "parse response", digest.ErrNoResponse, startTime)
	}

	fields := []capitan.Field{
		digest.ProviderKey.Field(p.name),
		digest.ModelKey.Field(p.model),
		digest.PromptTokensKey.Field(completionResp.Usage.PromptTokens),
		digest.CompletionTokensKey.Field(completionResp.Usage.CompletionTokens),
		digest.TotalTokensKey.Field(completionResp.Usage.TotalTokens),
		digest.DurationMsKey.Field(int(time.Since(startTime).Milliseconds())),
		digest.HTTPStatusCodeKey.Field(resp.StatusCode),
	}
	capitan.Emit(ctx, digest.ProviderCallCompleted, fields...)

	return &digest.ProviderResponse{
		Content: completionResp.Choices[0].Message.Content,
		Usage: digest.TokenUsage{
			Prompt:     completionResp.Usage.PromptTokens,
			Completion: completionResp.Usage.CompletionTokens,
			Total:      completionResp.Usage.TotalTokens,
		},
	}, nil
}

func (p *Provider) unexpected(ctx context.Context, op string, err error, startTime time.Time) error {
	capitan.Emit(ctx, digest.ProviderCallFailed,
		digest.ProviderKey.Field(p.name),
		digest.ModelKey.Field(p.model),
		digest.DurationMsKey.Field(int(time.Since(startTime).Milliseconds())),
		digest.ErrorKey.Field(err.Error()),
		digest.ErrorTypeKey.Field(digest.ErrorTypeUnexpected),
	)
	return &digest.UnexpectedError{Op: op, Err: err}
}

// Request/Response types for the chat completions API

type chatCompletionRequest struct {
	Messages    []message `json:"messages"`
	Model       string    `json:"model"`
	Temperature float32   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
