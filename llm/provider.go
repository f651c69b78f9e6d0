// Package llm provides the dialogue policy and the chat providers behind it.
package llm

import (
	"context"
	"sync"

	cerrors "github.com/connectify-ai/connectify/errors"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ChatRequest is a chat request to a provider.
type ChatRequest struct {
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

// ChatResponse is a provider's reply.
type ChatResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Provider is the interface for chat model backends.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ProviderConfig selects and configures a chat backend.
type ProviderConfig struct {
	Provider  string `mapstructure:"provider"` // openai, anthropic, google
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api-key"`
	MaxTokens int    `mapstructure:"max-tokens"`
	BaseURL   string `mapstructure:"base-url"`
}

// NewProvider constructs the configured backend.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIProvider(cfg)
	case "anthropic":
		return NewAnthropicProvider(cfg)
	case "google":
		return NewGoogleProvider(ctx, cfg)
	case "mock":
		// For local runs without credentials.
		return NewMockProvider("I'm sorry, I couldn't process that. Could you please rephrase?"), nil
	default:
		return nil, cerrors.Newf(cerrors.CodeInvalidInput, "unknown llm provider %q", cfg.Provider)
	}
}

// MockProvider is a scripted provider for tests. Each call returns the next
// queued reply; when the queue is exhausted the last reply repeats.
type MockProvider struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   int
	lastReq *ChatRequest
}

// NewMockProvider creates a mock that replies with the given messages in order.
func NewMockProvider(replies ...string) *MockProvider {
	return &MockProvider{replies: replies}
}

// Fail makes every subsequent call return err.
func (m *MockProvider) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Chat returns the next scripted reply.
func (m *MockProvider) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastReq = &req
	if m.err != nil {
		return nil, m.err
	}

	idx := m.calls
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	m.calls++
	if idx < 0 {
		return &ChatResponse{Content: ""}, nil
	}
	return &ChatResponse{Content: m.replies[idx], Model: "mock"}, nil
}

// Calls returns how many chat calls were made.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequest returns the most recent request, or nil.
func (m *MockProvider) LastRequest() *ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReq
}
