package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	cerrors "github.com/connectify-ai/connectify/errors"
)

// OllamaProvider generates embeddings using a local Ollama server.
type OllamaProvider struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

// OllamaConfig configures the Ollama embedding provider.
type OllamaConfig struct {
	BaseURL   string // default: http://localhost:11434
	Model     string // default: nomic-embed-text
	Dimension int    // model-specific, defaulted for known models
}

// NewOllamaProvider creates a new Ollama embedding provider.
func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}
	dimension := cfg.Dimension
	if dimension == 0 {
		switch model {
		case "mxbai-embed-large":
			dimension = 1024
		case "all-minilm":
			dimension = 384
		default:
			dimension = 768
		}
	}
	return &OllamaProvider{
		baseURL:   baseURL,
		model:     model,
		dimension: dimension,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates embeddings for the given texts, one request per input.
func (p *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

func (p *OllamaProvider) embedOne(ctx context.Context, text string) ([]float32, error) {
	jsonBody, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, cerrors.WrapWithCode(err, cerrors.CodeEmbeddingFailed, "marshaling ollama request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, cerrors.WrapWithCode(err, cerrors.CodeEmbeddingFailed, "creating ollama request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, cerrors.WrapWithCode(err, cerrors.CodeEmbeddingFailed, "ollama embedding request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cerrors.WrapWithCode(err, cerrors.CodeEmbeddingFailed, "reading ollama response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, cerrors.WrapWithCode(
			fmt.Errorf("status %d: %s", resp.StatusCode, body),
			cerrors.CodeEmbeddingFailed, "ollama embedding error")
	}

	var embedResp ollamaEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, cerrors.WrapWithCode(err, cerrors.CodeEmbeddingFailed, "parsing ollama response")
	}
	if len(embedResp.Embeddings) == 0 {
		return nil, cerrors.New(cerrors.CodeEmbeddingFailed, "ollama returned no embeddings")
	}
	return embedResp.Embeddings[0], nil
}

// Dimension returns the embedding dimension.
func (p *OllamaProvider) Dimension() int {
	return p.dimension
}

// Fingerprint identifies the provider and model.
func (p *OllamaProvider) Fingerprint() string {
	return "ollama/" + p.model
}
