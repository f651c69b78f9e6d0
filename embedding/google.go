package embedding

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	cerrors "github.com/connectify-ai/connectify/errors"
)

// GoogleProvider generates embeddings using the Gemini API.
type GoogleProvider struct {
	client *genai.Client
	model  string
}

// GoogleConfig configures the Google embedding provider.
type GoogleConfig struct {
	APIKey string
	Model  string // default: text-embedding-004
}

// NewGoogleProvider creates a new Gemini embedding provider.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.APIKey == "" {
		return nil, cerrors.New(cerrors.CodeInvalidInput, "api_key is required for google embeddings")
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-004"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, cerrors.WrapWithCode(err, cerrors.CodeEmbeddingFailed, "creating gemini client")
	}

	return &GoogleProvider{client: client, model: model}, nil
}

// Embed generates embeddings for the given texts. The Gemini API embeds one
// content per call, so inputs go through a batch request.
func (p *GoogleProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := p.client.EmbeddingModel(p.model)
	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, cerrors.WrapWithCode(err, cerrors.CodeEmbeddingFailed, "gemini embedding request failed")
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, cerrors.Newf(cerrors.CodeEmbeddingFailed,
			"gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	results := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		results[i] = e.Values
	}
	return results, nil
}

// Dimension returns the embedding dimension for the model.
func (p *GoogleProvider) Dimension() int {
	return 768
}

// Fingerprint identifies the provider and model.
func (p *GoogleProvider) Fingerprint() string {
	return "google/" + p.model
}

// Close releases the underlying client.
func (p *GoogleProvider) Close() error {
	return p.client.Close()
}
