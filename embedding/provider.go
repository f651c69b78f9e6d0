// Package embedding turns text into fixed-length vectors via hosted
// embedding models.
package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Provider generates vector embeddings for text.
type Provider interface {
	// Embed generates embeddings for the given texts, one vector per input,
	// in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimension.
	Dimension() int

	// Fingerprint identifies the provider and model, e.g.
	// "openai/text-embedding-3-small". Vectors from different fingerprints
	// are not comparable; the vector store records it next to the index.
	Fingerprint() string
}

// MockProvider is a deterministic embedding provider for tests. It hashes
// each token into a vector bucket, so cosine similarity between two texts
// tracks their token overlap: identical text scores 1.0 and texts sharing
// content words score higher than unrelated ones.
type MockProvider struct {
	dimension int
}

// NewMockProvider creates a mock provider with the given dimension.
func NewMockProvider(dimension int) *MockProvider {
	if dimension <= 0 {
		dimension = 256
	}
	return &MockProvider{dimension: dimension}
}

var mockStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "i": true, "it": true, "this": true, "that": true,
}

// Embed returns bag-of-words hash vectors, L2-normalized.
func (p *MockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, p.dimension)
		for _, tok := range tokenize(text) {
			h := fnv.New32a()
			h.Write([]byte(tok))
			vec[int(h.Sum32())%p.dimension]++
		}
		normalize(vec)
		results[i] = vec
	}
	return results, nil
}

// Dimension returns the embedding dimension.
func (p *MockProvider) Dimension() int {
	return p.dimension
}

// Fingerprint identifies the mock model.
func (p *MockProvider) Fingerprint() string {
	return "mock/bag-of-words"
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	var toks []string
	for _, f := range fields {
		if len(f) < 2 || mockStopWords[f] {
			continue
		}
		toks = append(toks, f)
	}
	return toks
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
