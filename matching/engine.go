// Package matching converts free text into ranked job recommendations by
// orchestrating the embedding provider and the vector store.
package matching

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/connectify-ai/connectify/embedding"
	cerrors "github.com/connectify-ai/connectify/errors"
	"github.com/connectify-ai/connectify/vectorstore"
)

// DefaultTopK is the number of recommendations returned when the caller does
// not ask for a specific count.
const DefaultTopK = 5

// batchConcurrency bounds parallel embedding calls during batch ingestion.
const batchConcurrency = 4

// Engine is the job matching engine. Safe for concurrent use.
type Engine struct {
	embedder embedding.Provider
	store    *vectorstore.Store
	log      *zap.Logger
}

// NewEngine creates an engine over the given provider and store.
func NewEngine(embedder embedding.Provider, store *vectorstore.Store, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{embedder: embedder, store: store, log: log}
}

// IngestJob embeds the listing's composite text and upserts it keyed by
// title. A duplicate title silently overwrites the prior listing.
func (e *Engine) IngestJob(ctx context.Context, title, description string) error {
	if title == "" {
		return cerrors.New(cerrors.CodeInvalidInput, "job title is required")
	}

	job := JobListing{Title: title, Description: description}
	vec, err := e.embedOne(ctx, job.CompositeText())
	if err != nil {
		return err
	}
	job.Embedding = vec

	doc, err := json.Marshal(job)
	if err != nil {
		return cerrors.Wrap(err, "encoding job listing")
	}
	if err := e.store.Jobs().Upsert(ctx, job.Title, doc, vec); err != nil {
		return err
	}

	e.log.Info("job ingested", zap.String("title", title))
	return nil
}

// IngestJobsBatch ingests each submission independently: one failure never
// aborts the rest. The returned slice has one entry per submission, in input
// order, with Err set for items that failed.
func (e *Engine) IngestJobsBatch(ctx context.Context, jobs []JobSubmission) []BatchResult {
	results := make([]BatchResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = BatchResult{
				Title: job.Title,
				Err:   e.IngestJob(gctx, job.Title, job.Description),
			}
			return nil
		})
	}
	g.Wait()

	return results
}

// ListJobs returns every stored listing, order unspecified.
func (e *Engine) ListJobs(ctx context.Context) ([]JobListing, error) {
	docs, err := e.store.Jobs().ListAll(ctx)
	if err != nil {
		return nil, err
	}

	jobs := make([]JobListing, 0, len(docs))
	for _, doc := range docs {
		var job JobListing
		if err := json.Unmarshal(doc, &job); err != nil {
			e.log.Warn("skipping unreadable job record", zap.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Recommend embeds queryText, queries the job collection and returns up to
// topK "title: description" strings, nearest first. An empty result set is a
// NO_MATCH_FOUND error so callers can tell "nothing matched" from "matching
// itself broke" (EMBEDDING_FAILED / STORE_UNAVAILABLE).
func (e *Engine) Recommend(ctx context.Context, queryText string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vec, err := e.embedOne(ctx, queryText)
	if err != nil {
		return nil, err
	}

	matches, err := e.store.Jobs().QuerySimilar(ctx, vec, topK)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, cerrors.New(cerrors.CodeNoMatchFound, "no suitable job found")
	}

	recommendations := make([]string, 0, len(matches))
	for _, m := range matches {
		var job JobListing
		if err := json.Unmarshal(m.Doc, &job); err != nil {
			e.log.Warn("skipping unreadable match", zap.String("id", m.ID), zap.Error(err))
			continue
		}
		recommendations = append(recommendations, job.Display())
	}
	if len(recommendations) == 0 {
		return nil, cerrors.New(cerrors.CodeNoMatchFound, "no suitable job found")
	}

	e.log.Info("recommendations served",
		zap.Int("count", len(recommendations)),
		zap.String("top", recommendations[0]))
	return recommendations, nil
}

// SaveProfile synthesizes the profile text if absent, embeds it and upserts
// the profile keyed by name.
func (e *Engine) SaveProfile(ctx context.Context, profile UserProfile) error {
	if profile.Name == "" {
		return cerrors.New(cerrors.CodeInvalidInput, "profile name is required")
	}
	profile.Text = profile.ComposeText()

	vec, err := e.embedOne(ctx, profile.Text)
	if err != nil {
		return err
	}

	doc, err := json.Marshal(profile)
	if err != nil {
		return cerrors.Wrap(err, "encoding profile")
	}
	if err := e.store.Profiles().Upsert(ctx, profile.Name, doc, vec); err != nil {
		return err
	}

	e.log.Info("profile saved", zap.String("name", profile.Name))
	return nil
}

// GetProfile returns the stored profile, or NOT_FOUND.
func (e *Engine) GetProfile(ctx context.Context, name string) (UserProfile, error) {
	doc, err := e.store.Profiles().Get(ctx, name)
	if err != nil {
		return UserProfile{}, err
	}

	var profile UserProfile
	if err := json.Unmarshal(doc, &profile); err != nil {
		return UserProfile{}, cerrors.Wrap(err, "decoding profile")
	}
	return profile, nil
}

func (e *Engine) embedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, cerrors.WrapWithCode(err, cerrors.CodeEmbeddingFailed, "embedding text")
	}
	if len(vecs) != 1 {
		return nil, cerrors.Newf(cerrors.CodeEmbeddingFailed, "provider returned %d vectors for one input", len(vecs))
	}
	return vecs[0], nil
}
