package vectorstore

import (
	"context"
	"sort"
	"sync"

	cerrors "github.com/connectify-ai/connectify/errors"
)

// MemoryCollection is an ephemeral map-backed Collection.
type MemoryCollection struct {
	mu      sync.RWMutex
	name    string
	docs    map[string][]byte
	vectors map[string][]float32
}

// NewMemoryCollection creates an empty in-memory collection.
func NewMemoryCollection(name string) *MemoryCollection {
	return &MemoryCollection{
		name:    name,
		docs:    make(map[string][]byte),
		vectors: make(map[string][]float32),
	}
}

// Upsert stores the record and its embedding, overwriting any prior entry.
func (c *MemoryCollection) Upsert(_ context.Context, id string, doc []byte, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]byte, len(doc))
	copy(stored, doc)
	c.docs[id] = stored
	c.vectors[id] = vec
	return nil
}

// Get returns the record for id, or a NOT_FOUND error.
func (c *MemoryCollection) Get(_ context.Context, id string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[id]
	if !ok {
		return nil, cerrors.Newf(cerrors.CodeNotFound, "no record %q in %s", id, c.name)
	}
	return doc, nil
}

// ListAll returns every record, order unspecified.
func (c *MemoryCollection) ListAll(_ context.Context) ([][]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	docs := make([][]byte, 0, len(c.docs))
	for _, doc := range c.docs {
		docs = append(docs, doc)
	}
	return docs, nil
}

// QuerySimilar ranks all records by cosine similarity to vec, nearest first.
func (c *MemoryCollection) QuerySimilar(_ context.Context, vec []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 5
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	matches := make([]Match, 0, len(c.vectors))
	for id, stored := range c.vectors {
		matches = append(matches, Match{
			ID:    id,
			Doc:   c.docs[id],
			Score: cosineSimilarity(vec, stored),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}
