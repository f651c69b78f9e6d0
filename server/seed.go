package server

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"go.uber.org/zap"

	cerrors "github.com/connectify-ai/connectify/errors"
	"github.com/connectify-ai/connectify/matching"
)

// seedFile is the bundled job dataset. Startup re-ingests it on every run;
// jobs created over the API are appended so they survive a store wipe.
type seedFile struct {
	mu   sync.Mutex
	path string
}

func newSeedFile(path string) *seedFile {
	return &seedFile{path: path}
}

// load reads the dataset. A missing file is an empty dataset, not an error.
func (f *seedFile) load() ([]matching.JobSubmission, error) {
	if f.path == "" {
		return nil, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, cerrors.Wrap(err, "reading seed file")
	}

	var jobs []matching.JobSubmission
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, cerrors.WrapWithCode(err, cerrors.CodeInvalidInput, "parsing seed file")
	}
	return jobs, nil
}

// append adds one job to the dataset.
func (f *seedFile) append(job matching.JobSubmission) error {
	if f.path == "" {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var jobs []matching.JobSubmission
	data, err := os.ReadFile(f.path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &jobs); err != nil {
			return cerrors.WrapWithCode(err, cerrors.CodeInvalidInput, "parsing seed file")
		}
	case os.IsNotExist(err):
	default:
		return cerrors.Wrap(err, "reading seed file")
	}

	jobs = append(jobs, job)
	out, err := json.MarshalIndent(jobs, "", "    ")
	if err != nil {
		return cerrors.Wrap(err, "encoding seed file")
	}
	if err := os.WriteFile(f.path, out, 0o644); err != nil {
		return cerrors.Wrap(err, "writing seed file")
	}
	return nil
}

// SeedJobs ingests the bundled dataset. Upsert semantics make re-runs
// idempotent: a listing already in the store is overwritten in place, never
// duplicated.
func (s *Server) SeedJobs(ctx context.Context) error {
	jobs, err := s.seed.load()
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		s.log.Info("no seed jobs to ingest")
		return nil
	}

	results := s.engine.IngestJobsBatch(ctx, jobs)
	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			s.log.Warn("seed job ingestion failed",
				zap.String("title", r.Title), zap.Error(r.Err))
		}
	}

	s.log.Info("seed jobs ingested",
		zap.Int("total", len(jobs)), zap.Int("failed", failed))
	return nil
}
