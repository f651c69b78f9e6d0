package embedding

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	cerrors "github.com/connectify-ai/connectify/errors"
)

// OpenAIProvider generates embeddings using the official OpenAI SDK.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// OpenAIConfig configures the OpenAI embedding provider.
type OpenAIConfig struct {
	APIKey  string
	Model   string // default: text-embedding-3-small
	BaseURL string // optional custom endpoint
}

// NewOpenAIProvider creates a new OpenAI embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, cerrors.New(cerrors.CodeInvalidInput, "api_key is required for openai embeddings")
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIProvider{client: &client, model: model}, nil
}

// Embed generates embeddings for the given texts.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, cerrors.WrapWithCode(err, cerrors.CodeEmbeddingFailed, "openai embedding request failed")
	}

	// Order by index; the API may not return inputs in order.
	results := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if int(d.Index) >= len(results) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		results[d.Index] = vec
	}

	for i, vec := range results {
		if vec == nil {
			return nil, cerrors.Newf(cerrors.CodeEmbeddingFailed, "openai returned no embedding for input %d", i)
		}
	}

	return results, nil
}

// Dimension returns the embedding dimension for the model.
func (p *OpenAIProvider) Dimension() int {
	switch p.model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	default:
		return 1536
	}
}

// Fingerprint identifies the provider and model.
func (p *OpenAIProvider) Fingerprint() string {
	return "openai/" + p.model
}
