package embedding

import (
	"context"
	"time"

	cerrors "github.com/connectify-ai/connectify/errors"
)

// ProviderConfig selects and configures an embedding backend.
type ProviderConfig struct {
	Provider  string        `mapstructure:"provider"` // openai, google, ollama, mock
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api-key"`
	BaseURL   string        `mapstructure:"base-url"`
	Dimension int           `mapstructure:"dimension"`
	Timeout   time.Duration `mapstructure:"timeout"` // per-call deadline, default DefaultTimeout
}

// NewProvider constructs the configured backend. Every provider is wrapped so
// each Embed call carries the configured deadline.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	var p Provider
	var err error
	switch cfg.Provider {
	case "openai", "":
		p, err = NewOpenAIProvider(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case "google":
		p, err = NewGoogleProvider(ctx, GoogleConfig{APIKey: cfg.APIKey, Model: cfg.Model})
	case "ollama":
		p = NewOllamaProvider(OllamaConfig{BaseURL: cfg.BaseURL, Model: cfg.Model, Dimension: cfg.Dimension})
	case "mock":
		p = NewMockProvider(cfg.Dimension)
	default:
		return nil, cerrors.Newf(cerrors.CodeInvalidInput, "unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return WithTimeout(p, cfg.Timeout), nil
}
