package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/connectify-ai/connectify/conversation"
	"github.com/connectify-ai/connectify/embedding"
	"github.com/connectify-ai/connectify/llm"
	"github.com/connectify-ai/connectify/matching"
	"github.com/connectify-ai/connectify/vectorstore"
)

type stubExtractor struct {
	text string
	err  error
}

func (s *stubExtractor) Extract(_ context.Context, _ []byte) (string, error) {
	return s.text, s.err
}

type brokenEmbedder struct{}

func (brokenEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("provider offline")
}
func (brokenEmbedder) Dimension() int      { return 64 }
func (brokenEmbedder) Fingerprint() string { return "mock/broken" }

type testServer struct {
	server   *Server
	engine   *matching.Engine
	mock     *llm.MockProvider
	seedPath string
}

func newTestServer(t *testing.T, replies ...string) *testServer {
	t.Helper()
	engine := matching.NewEngine(embedding.NewMockProvider(64), vectorstore.NewEphemeral(), zap.NewNop())
	mock := llm.NewMockProvider(replies...)
	controller := conversation.NewController(llm.NewPolicy(mock, time.Minute), &stubExtractor{}, engine, zap.NewNop())
	seedPath := filepath.Join(t.TempDir(), "job_data.json")
	return &testServer{
		server:   New(engine, controller, zap.NewNop(), seedPath),
		engine:   engine,
		mock:     mock,
		seedPath: seedPath,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
}

func TestRootGreeting(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Connectify") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestProfileRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/profile", map[string]interface{}{
		"profile_data": map[string]string{
			"name":   "Alice",
			"skills": "Python, SQL",
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/profile?name=Alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var profile matching.UserProfile
	decode(t, w, &profile)
	if profile.Skills != "Python, SQL" {
		t.Errorf("skills = %q", profile.Skills)
	}
	if !strings.Contains(profile.Text, "Skills: Python, SQL") {
		t.Errorf("composite text = %q", profile.Text)
	}
}

func TestGetProfileErrors(t *testing.T) {
	ts := newTestServer(t)

	if w := ts.do(t, http.MethodGet, "/profile", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing name: status = %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/profile?name=nobody", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown profile: status = %d", w.Code)
	}
}

func TestCreateJobAppendsToSeedFile(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/jobs", matching.JobSubmission{
		Title:       "Data Analyst",
		Description: "SQL and reporting",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	data, err := os.ReadFile(ts.seedPath)
	if err != nil {
		t.Fatalf("seed file not written: %v", err)
	}
	var jobs []matching.JobSubmission
	if err := json.Unmarshal(data, &jobs); err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].Title != "Data Analyst" {
		t.Errorf("seed contents = %v", jobs)
	}

	w = ts.do(t, http.MethodGet, "/jobs", nil)
	var listing struct {
		Jobs []matching.JobListing `json:"jobs"`
	}
	decode(t, w, &listing)
	if len(listing.Jobs) != 1 {
		t.Errorf("stored jobs = %v", listing.Jobs)
	}
}

func TestCreateJobsBatchReportsPerItem(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/jobs/batch", []matching.JobSubmission{
		{Title: "Data Analyst", Description: "SQL and reporting"},
		{Title: "", Description: "missing title"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Results []batchItemResult `json:"results"`
	}
	decode(t, w, &resp)
	if len(resp.Results) != 2 {
		t.Fatalf("results = %v", resp.Results)
	}
	if resp.Results[0].Error != "" {
		t.Errorf("first item failed: %s", resp.Results[0].Error)
	}
	if resp.Results[1].Error == "" {
		t.Error("second item should have failed")
	}
}

func TestRecommend(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]interface{}{
		"profile_data": map[string]string{"conversation": "I love writing SQL queries"},
	}

	// Empty collection: no match is a 404, not an empty success.
	if w := ts.do(t, http.MethodPost, "/recommend", body); w.Code != http.StatusNotFound {
		t.Errorf("empty collection: status = %d", w.Code)
	}

	if err := ts.engine.IngestJob(context.Background(), "Data Analyst", "SQL and reporting"); err != nil {
		t.Fatal(err)
	}

	w := ts.do(t, http.MethodPost, "/recommend", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Recommendation []string `json:"recommendation"`
	}
	decode(t, w, &resp)
	if len(resp.Recommendation) == 0 || !strings.Contains(resp.Recommendation[0], "Data Analyst") {
		t.Errorf("recommendation = %v", resp.Recommendation)
	}
}

func TestRecommendFailureIsGeneric(t *testing.T) {
	engine := matching.NewEngine(brokenEmbedder{}, vectorstore.NewEphemeral(), zap.NewNop())
	controller := conversation.NewController(llm.NewPolicy(llm.NewMockProvider(), time.Minute), &stubExtractor{}, engine, zap.NewNop())
	srv := New(engine, controller, zap.NewNop(), "")

	body, _ := json.Marshal(map[string]interface{}{
		"profile_data": map[string]string{"conversation": "anything"},
	})
	req := httptest.NewRequest(http.MethodPost, "/recommend", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "offline") {
		t.Errorf("raw error leaked to client: %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "please try again") {
		t.Errorf("missing generic message: %s", w.Body.String())
	}
}

func TestChatFlow(t *testing.T) {
	ts := newTestServer(t, "What is your educational background?")

	w := ts.do(t, http.MethodPost, "/chat/start", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d", w.Code)
	}
	var start struct {
		SessionID string `json:"session_id"`
		Response  string `json:"response"`
	}
	decode(t, w, &start)
	if start.SessionID == "" || start.Response == "" {
		t.Fatalf("start response = %+v", start)
	}

	w = ts.do(t, http.MethodPost, "/chat", chatRequest{
		SessionID: start.SessionID,
		Message:   "Hi, I am looking for a job",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("chat status = %d: %s", w.Code, w.Body.String())
	}
	var turn conversation.Turn
	decode(t, w, &turn)
	if turn.Message != "What is your educational background?" {
		t.Errorf("response = %q", turn.Message)
	}
}

func TestChatDocumentRequiresPendingUpload(t *testing.T) {
	ts := newTestServer(t, "irrelevant")

	w := ts.do(t, http.MethodPost, "/chat/document?session_id=some-session", []byte("%PDF"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d: %s", w.Code, w.Body.String())
	}

	if w := ts.do(t, http.MethodPost, "/chat/document", []byte("%PDF")); w.Code != http.StatusBadRequest {
		t.Errorf("missing session_id: status = %d", w.Code)
	}
}

func TestSeedJobsIsIdempotent(t *testing.T) {
	ts := newTestServer(t)

	seed := []matching.JobSubmission{
		{Title: "Data Analyst", Description: "SQL and reporting"},
		{Title: "Backend Engineer", Description: "APIs and databases"},
	}
	data, _ := json.Marshal(seed)
	if err := os.WriteFile(ts.seedPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	for range 2 {
		if err := ts.server.SeedJobs(context.Background()); err != nil {
			t.Fatalf("seeding failed: %v", err)
		}
	}

	jobs, err := ts.engine.ListJobs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Errorf("job count after double seed = %d, want 2", len(jobs))
	}
}

func TestSeedJobsMissingFileIsFine(t *testing.T) {
	ts := newTestServer(t)
	if err := ts.server.SeedJobs(context.Background()); err != nil {
		t.Errorf("missing seed file should not error: %v", err)
	}
}
