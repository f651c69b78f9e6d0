package vectorstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	cerrors "github.com/connectify-ai/connectify/errors"
)

func collectionUnderTest(t *testing.T, persistent bool) Collection {
	t.Helper()
	if !persistent {
		return NewMemoryCollection(JobsCollection)
	}
	c, err := OpenBleveCollection(t.TempDir(), JobsCollection, "mock/bag-of-words", 4)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCollectionContract(t *testing.T) {
	for _, tc := range []struct {
		name       string
		persistent bool
	}{
		{"memory", false},
		{"bleve", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			c := collectionUnderTest(t, tc.persistent)

			if err := c.Upsert(ctx, "Data Analyst", []byte(`{"title":"Data Analyst"}`), []float32{1, 0, 0, 0}); err != nil {
				t.Fatalf("upsert failed: %v", err)
			}
			if err := c.Upsert(ctx, "Backend Engineer", []byte(`{"title":"Backend Engineer"}`), []float32{0, 1, 0, 0}); err != nil {
				t.Fatalf("upsert failed: %v", err)
			}

			doc, err := c.Get(ctx, "Data Analyst")
			if err != nil {
				t.Fatalf("get failed: %v", err)
			}
			if string(doc) != `{"title":"Data Analyst"}` {
				t.Errorf("unexpected doc %s", doc)
			}

			if _, err := c.Get(ctx, "missing"); !cerrors.Is(err, cerrors.CodeNotFound) {
				t.Errorf("expected NOT_FOUND, got %v", err)
			}

			docs, err := c.ListAll(ctx)
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if len(docs) != 2 {
				t.Errorf("expected 2 records, got %d", len(docs))
			}

			matches, err := c.QuerySimilar(ctx, []float32{0.9, 0.1, 0, 0}, 5)
			if err != nil {
				t.Fatalf("query failed: %v", err)
			}
			if len(matches) != 2 {
				t.Fatalf("expected 2 matches, got %d", len(matches))
			}
			if matches[0].ID != "Data Analyst" {
				t.Errorf("nearest match = %q, want Data Analyst", matches[0].ID)
			}
			if matches[0].Score < matches[1].Score {
				t.Error("matches should be nearest first")
			}
		})
	}
}

func TestUpsertOverwritesById(t *testing.T) {
	ctx := context.Background()
	c := collectionUnderTest(t, true)

	for i := 0; i < 2; i++ {
		if err := c.Upsert(ctx, "Data Analyst", []byte(`{"title":"Data Analyst"}`), []float32{1, 0, 0, 0}); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	docs, err := c.ListAll(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("upsert should overwrite, found %d records", len(docs))
	}
}

func TestBleveCollectionSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := OpenBleveCollection(dir, JobsCollection, "mock/bag-of-words", 4)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := c.Upsert(ctx, "Data Analyst", []byte(`{"title":"Data Analyst"}`), []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened, err := OpenBleveCollection(dir, JobsCollection, "mock/bag-of-words", 4)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.Get(ctx, "Data Analyst"); err != nil {
		t.Errorf("record lost across reopen: %v", err)
	}
	matches, err := reopened.QuerySimilar(ctx, []float32{1, 0, 0, 0}, 1)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "Data Analyst" {
		t.Error("embedding lost across reopen")
	}
}

func TestBleveCollectionRejectsFingerprintMismatch(t *testing.T) {
	dir := t.TempDir()

	c, err := OpenBleveCollection(dir, JobsCollection, "openai/text-embedding-3-small", 1536)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := c.Upsert(context.Background(), "x", []byte(`{}`), make([]float32, 1536)); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	c.Close()

	_, err = OpenBleveCollection(dir, JobsCollection, "google/text-embedding-004", 768)
	if !cerrors.Is(err, cerrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT on model mismatch, got %v", err)
	}
}

// blockSidecar points the sidecar path at a directory so every save fails.
func blockSidecar(t *testing.T, c *BleveCollection) {
	t.Helper()
	blocked := filepath.Join(t.TempDir(), "blocked")
	if err := os.MkdirAll(blocked, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	c.sidecars = blocked
}

func TestUpsertRollsBackOnSidecarFailure(t *testing.T) {
	ctx := context.Background()
	c, err := OpenBleveCollection(t.TempDir(), JobsCollection, "mock/bag-of-words", 4)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer c.index.Close()
	blockSidecar(t, c)

	err = c.Upsert(ctx, "Data Analyst", []byte(`{"title":"Data Analyst"}`), []float32{1, 0, 0, 0})
	if !cerrors.Is(err, cerrors.CodeStoreUnavailable) {
		t.Fatalf("expected STORE_UNAVAILABLE, got %v", err)
	}

	// The record must not be half-visible: absent from lookups as well as
	// from similarity ranking.
	if _, err := c.Get(ctx, "Data Analyst"); !cerrors.Is(err, cerrors.CodeNotFound) {
		t.Errorf("record should be rolled back, got %v", err)
	}
	matches, err := c.QuerySimilar(ctx, []float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches after rollback, got %d", len(matches))
	}
}

func TestCloseReportsSidecarFailure(t *testing.T) {
	c, err := OpenBleveCollection(t.TempDir(), JobsCollection, "mock/bag-of-words", 4)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	blockSidecar(t, c)

	if err := c.Close(); !cerrors.Is(err, cerrors.CodeStoreUnavailable) {
		t.Errorf("close should surface the sidecar write failure, got %v", err)
	}
}

func TestStoreCollectionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewEphemeral()

	if err := store.Jobs().Upsert(ctx, "a", []byte(`{}`), []float32{1}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if _, err := store.Profiles().Get(ctx, "a"); !cerrors.Is(err, cerrors.CodeNotFound) {
		t.Error("job upsert must not leak into the profile collection")
	}
}
