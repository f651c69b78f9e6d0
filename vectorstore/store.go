// Package vectorstore stores document records with their embeddings and
// serves nearest-neighbor queries over them.
//
// Similarity is cosine at both index build and query time. Vectors are only
// meaningful under the embedding model that produced them, so each persistent
// collection records the provider fingerprint and refuses to open when it
// disagrees with the configured provider.
package vectorstore

import (
	"context"
	"math"
)

// Collection names used by the service.
const (
	JobsCollection     = "job_listings"
	ProfilesCollection = "job_seeker_profiles"
)

// Match is a similarity query hit.
type Match struct {
	ID    string
	Doc   []byte
	Score float32 // cosine similarity, higher is closer
}

// Collection maps identifiers to document records and their embeddings.
// Implementations must be safe for concurrent use.
type Collection interface {
	// Upsert stores the record and its embedding, overwriting any prior
	// entry with the same id.
	Upsert(ctx context.Context, id string, doc []byte, vec []float32) error

	// Get returns the record for id, or a NOT_FOUND error.
	Get(ctx context.Context, id string) ([]byte, error)

	// ListAll returns every record, order unspecified.
	ListAll(ctx context.Context) ([][]byte, error)

	// QuerySimilar returns up to topK records nearest to vec, nearest first.
	QuerySimilar(ctx context.Context, vec []float32, topK int) ([]Match, error)
}

// Store owns the two collections backing the service. The collections are
// independently locked: an upsert into one never blocks reads of the other.
type Store struct {
	jobs     Collection
	profiles Collection
	closers  []func() error
}

// Jobs returns the job listing collection.
func (s *Store) Jobs() Collection {
	return s.jobs
}

// Profiles returns the job seeker profile collection.
func (s *Store) Profiles() Collection {
	return s.profiles
}

// Close releases the underlying collections.
func (s *Store) Close() error {
	var firstErr error
	for _, close := range s.closers {
		if err := close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Open opens the persistent store under basePath, creating it if absent.
// fingerprint and dimension describe the embedding provider in use; an
// existing index built under a different fingerprint fails to open.
func Open(basePath, fingerprint string, dimension int) (*Store, error) {
	jobs, err := OpenBleveCollection(basePath, JobsCollection, fingerprint, dimension)
	if err != nil {
		return nil, err
	}
	profiles, err := OpenBleveCollection(basePath, ProfilesCollection, fingerprint, dimension)
	if err != nil {
		jobs.Close()
		return nil, err
	}
	return &Store{
		jobs:     jobs,
		profiles: profiles,
		closers:  []func() error{jobs.Close, profiles.Close},
	}, nil
}

// NewEphemeral returns a store backed by in-memory collections. All data is
// lost when the process exits; production deployments use Open.
func NewEphemeral() *Store {
	return &Store{
		jobs:     NewMemoryCollection(JobsCollection),
		profiles: NewMemoryCollection(ProfilesCollection),
	}
}

// cosineSimilarity calculates cosine similarity between two vectors.
// Mismatched or zero vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
