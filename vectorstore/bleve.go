package vectorstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	cerrors "github.com/connectify-ai/connectify/errors"
)

// BleveCollection is the persistent Collection variant. Document records live
// in a bleve index (full-text searchable, survives restart); embeddings live
// in a sidecar JSON file and are ranked by in-process cosine similarity.
type BleveCollection struct {
	mu       sync.RWMutex
	name     string
	index    bleve.Index
	vectors  map[string][]float32
	meta     vectorMeta
	sidecars string
}

// vectorMeta records which embedding model built the index.
type vectorMeta struct {
	Fingerprint string    `json:"fingerprint"`
	Dimension   int       `json:"dimension"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type vectorFile struct {
	Meta    vectorMeta           `json:"meta"`
	Vectors map[string][]float32 `json:"vectors"`
}

// storedDocument is the shape indexed into bleve.
type storedDocument struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

// OpenBleveCollection opens or creates a persistent collection under basePath.
// An existing collection built under a different embedding fingerprint is
// rejected: its vectors would silently rank garbage.
func OpenBleveCollection(basePath, name, fingerprint string, dimension int) (*BleveCollection, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, cerrors.WrapWithCode(err, cerrors.CodeStoreUnavailable,
			"creating storage directory", cerrors.WithCollection(name))
	}

	indexPath := filepath.Join(basePath, name+".bleve")
	sidecarPath := filepath.Join(basePath, name+".vectors.json")

	var index bleve.Index
	var err error
	if _, statErr := os.Stat(indexPath); os.IsNotExist(statErr) {
		index, err = bleve.New(indexPath, buildIndexMapping())
	} else {
		index, err = bleve.Open(indexPath)
	}
	if err != nil {
		return nil, cerrors.WrapWithCode(err, cerrors.CodeStoreUnavailable,
			"opening bleve index", cerrors.WithCollection(name))
	}

	c := &BleveCollection{
		name:     name,
		index:    index,
		vectors:  make(map[string][]float32),
		meta:     vectorMeta{Fingerprint: fingerprint, Dimension: dimension},
		sidecars: sidecarPath,
	}

	if err := c.loadVectors(); err != nil {
		index.Close()
		return nil, err
	}

	return c, nil
}

func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	bodyFieldMapping := bleve.NewTextFieldMapping()
	bodyFieldMapping.Analyzer = standard.Name
	bodyFieldMapping.Store = true

	idFieldMapping := bleve.NewKeywordFieldMapping()
	idFieldMapping.Store = true

	docMapping.AddFieldMappingsAt("body", bodyFieldMapping)
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// Upsert stores the record and its embedding, overwriting any prior entry.
func (c *BleveCollection) Upsert(_ context.Context, id string, doc []byte, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.index.Index(id, storedDocument{ID: id, Body: string(doc)}); err != nil {
		return cerrors.WrapWithCode(err, cerrors.CodeStoreUnavailable,
			"indexing record", cerrors.WithCollection(c.name))
	}
	c.vectors[id] = vec
	if err := c.saveVectors(); err != nil {
		// Roll the index back: a record without a persisted vector would be
		// visible to Get and ListAll but never to QuerySimilar after restart.
		delete(c.vectors, id)
		_ = c.index.Delete(id)
		return err
	}
	return nil
}

// Get returns the record for id, or a NOT_FOUND error.
func (c *BleveCollection) Get(_ context.Context, id string) ([]byte, error) {
	doc, err := c.fetchDoc(id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, cerrors.Newf(cerrors.CodeNotFound, "no record %q in %s", id, c.name)
	}
	return doc, nil
}

// ListAll returns every record, order unspecified.
func (c *BleveCollection) ListAll(_ context.Context) ([][]byte, error) {
	searchReq := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	searchReq.Size = 100000
	searchReq.Fields = []string{"body"}

	result, err := c.index.Search(searchReq)
	if err != nil {
		return nil, cerrors.WrapWithCode(err, cerrors.CodeStoreUnavailable,
			"listing records", cerrors.WithCollection(c.name))
	}

	docs := make([][]byte, 0, len(result.Hits))
	for _, hit := range result.Hits {
		if body, ok := hit.Fields["body"].(string); ok {
			docs = append(docs, []byte(body))
		}
	}
	return docs, nil
}

// QuerySimilar ranks all stored embeddings by cosine similarity to vec and
// returns the topK records, nearest first.
func (c *BleveCollection) QuerySimilar(_ context.Context, vec []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 5
	}

	c.mu.RLock()
	ranked := make([]Match, 0, len(c.vectors))
	for id, stored := range c.vectors {
		ranked = append(ranked, Match{ID: id, Score: cosineSimilarity(vec, stored)})
	}
	c.mu.RUnlock()

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	for i := range ranked {
		doc, err := c.fetchDoc(ranked[i].ID)
		if err != nil {
			return nil, err
		}
		ranked[i].Doc = doc
	}
	return ranked, nil
}

// Close saves the sidecar and closes the index.
func (c *BleveCollection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	saveErr := c.saveVectors()
	if err := c.index.Close(); err != nil {
		return cerrors.WrapWithCode(err, cerrors.CodeStoreUnavailable,
			"closing bleve index", cerrors.WithCollection(c.name))
	}
	return saveErr
}

// fetchDoc retrieves a record body by exact id. Returns nil, nil when absent.
func (c *BleveCollection) fetchDoc(id string) ([]byte, error) {
	searchReq := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	searchReq.Fields = []string{"body"}
	searchReq.Size = 1

	result, err := c.index.Search(searchReq)
	if err != nil {
		return nil, cerrors.WrapWithCode(err, cerrors.CodeStoreUnavailable,
			"fetching record", cerrors.WithCollection(c.name))
	}
	if result.Total == 0 {
		return nil, nil
	}
	body, ok := result.Hits[0].Fields["body"].(string)
	if !ok {
		return nil, cerrors.Newf(cerrors.CodeInternal, "record %q in %s has no body", id, c.name)
	}
	return []byte(body), nil
}

func (c *BleveCollection) loadVectors() error {
	data, err := os.ReadFile(c.sidecars)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return cerrors.WrapWithCode(err, cerrors.CodeStoreUnavailable,
			"loading vector sidecar", cerrors.WithCollection(c.name))
	}

	var file vectorFile
	if err := json.Unmarshal(data, &file); err != nil {
		return cerrors.WrapWithCode(err, cerrors.CodeStoreUnavailable,
			"parsing vector sidecar", cerrors.WithCollection(c.name))
	}

	if file.Meta.Fingerprint != "" && file.Meta.Fingerprint != c.meta.Fingerprint {
		return cerrors.Newf(cerrors.CodeInvalidInput,
			"collection %s was built with embedding model %s, configured model is %s",
			c.name, file.Meta.Fingerprint, c.meta.Fingerprint)
	}

	if file.Vectors != nil {
		c.vectors = file.Vectors
	}
	return nil
}

// saveVectors persists the sidecar. Callers hold the write lock.
func (c *BleveCollection) saveVectors() error {
	c.meta.UpdatedAt = time.Now()
	data, err := json.Marshal(vectorFile{Meta: c.meta, Vectors: c.vectors})
	if err != nil {
		return cerrors.WrapWithCode(err, cerrors.CodeStoreUnavailable,
			"encoding vector sidecar", cerrors.WithCollection(c.name))
	}
	if err := os.WriteFile(c.sidecars, data, 0o644); err != nil {
		return cerrors.WrapWithCode(err, cerrors.CodeStoreUnavailable,
			"writing vector sidecar", cerrors.WithCollection(c.name))
	}
	return nil
}
