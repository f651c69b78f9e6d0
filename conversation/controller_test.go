package conversation

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/connectify-ai/connectify/embedding"
	cerrors "github.com/connectify-ai/connectify/errors"
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

type countingEmbedder struct {
	embedding.Provider
	mu    sync.Mutex
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.Provider.Embed(ctx, texts)
}

func (c *countingEmbedder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fixture struct {
	controller *Controller
	mock       *llm.MockProvider
	engine     *matching.Engine
	embedder   *countingEmbedder
	extractor  *stubExtractor
}

func newFixture(t *testing.T, replies ...string) *fixture {
	t.Helper()
	embedder := &countingEmbedder{Provider: embedding.NewMockProvider(64)}
	engine := matching.NewEngine(embedder, vectorstore.NewEphemeral(), zap.NewNop())
	mock := llm.NewMockProvider(replies...)
	extractor := &stubExtractor{}
	controller := NewController(llm.NewPolicy(mock, time.Minute), extractor, engine, zap.NewNop())
	return &fixture{
		controller: controller,
		mock:       mock,
		engine:     engine,
		embedder:   embedder,
		extractor:  extractor,
	}
}

func (f *fixture) seedJob(t *testing.T, title, description string) {
	t.Helper()
	if err := f.engine.IngestJob(context.Background(), title, description); err != nil {
		t.Fatalf("seeding job %q: %v", title, err)
	}
}

func TestAdvanceRelaysPolicyText(t *testing.T) {
	f := newFixture(t, "What is your educational background?")
	id := f.controller.StartSession()

	turn, err := f.controller.Advance(context.Background(), id, "Hi, I am looking for a job")
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if turn.Message != "What is your educational background?" {
		t.Errorf("unexpected message %q", turn.Message)
	}
	if turn.State != StateCollecting {
		t.Errorf("state = %v, want COLLECTING", turn.State)
	}

	transcript := f.controller.Transcript(id)
	if len(transcript) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(transcript))
	}
	if transcript[0].Role != "user" || transcript[1].Role != "assistant" {
		t.Errorf("transcript roles = %s, %s", transcript[0].Role, transcript[1].Role)
	}
}

func TestAdvanceRejectsEmptyUtterance(t *testing.T) {
	f := newFixture(t, "irrelevant")
	id := f.controller.StartSession()

	_, err := f.controller.Advance(context.Background(), id, "   ")
	if !cerrors.Is(err, cerrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestUploadTriggerEntersAwaitingDocument(t *testing.T) {
	f := newFixture(t, "Please upload your CV as a PDF")
	id := f.controller.StartSession()

	turn, err := f.controller.Advance(context.Background(), id, "I have a resume ready")
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if turn.State != StateAwaitingDocument {
		t.Errorf("state = %v, want AWAITING_DOCUMENT", turn.State)
	}
	if turn.Message != uploadPrompt {
		t.Errorf("message = %q, want upload prompt", turn.Message)
	}
	if got := f.controller.SessionState(id); got != StateAwaitingDocument {
		t.Errorf("session state = %v, want AWAITING_DOCUMENT", got)
	}
}

func TestCompleteTriggerFinalizesExactlyOnce(t *testing.T) {
	f := newFixture(t, "All information complete, thank you!")
	f.seedJob(t, "Data Analyst", "SQL and reporting")
	id := f.controller.StartSession()

	before := f.embedder.count()
	turn, err := f.controller.Advance(context.Background(), id, "My skills are SQL and reporting")
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	if turn.State != StateReadyToFinalize {
		t.Errorf("state = %v, want READY_TO_FINALIZE", turn.State)
	}
	if len(turn.Recommendations) == 0 {
		t.Fatal("expected recommendations")
	}
	if !strings.Contains(turn.Recommendations[0], "Data Analyst") {
		t.Errorf("top recommendation = %q", turn.Recommendations[0])
	}

	// One embed for save_profile, one for recommend. No retries, no doubles.
	if got := f.embedder.count() - before; got != 2 {
		t.Errorf("embed calls during finalize = %d, want 2", got)
	}

	profile, err := f.engine.GetProfile(context.Background(), id)
	if err != nil {
		t.Fatalf("profile was not saved: %v", err)
	}
	if !strings.Contains(profile.Text, "SQL and reporting") {
		t.Errorf("profile text missing conversation content: %q", profile.Text)
	}

	// Finalization resets the session.
	if got := f.controller.SessionState(id); got != StateCollecting {
		t.Errorf("post-finalize state = %v, want COLLECTING", got)
	}
	if transcript := f.controller.Transcript(id); len(transcript) != 0 {
		t.Errorf("post-finalize transcript length = %d, want 0", len(transcript))
	}
}

func TestFinalizeFailureParksSession(t *testing.T) {
	// Empty job collection: recommend returns NO_MATCH_FOUND after the
	// profile is saved.
	f := newFixture(t, "All information complete!")
	id := f.controller.StartSession()

	turn, err := f.controller.Advance(context.Background(), id, "I know Go")
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if turn.Message != finalizeFailMessage {
		t.Errorf("message = %q, want finalize failure message", turn.Message)
	}
	if got := f.controller.SessionState(id); got != StateReadyToFinalize {
		t.Errorf("state = %v, want READY_TO_FINALIZE", got)
	}
}

func TestPolicyFailureLeavesSessionUntouched(t *testing.T) {
	f := newFixture(t)
	f.mock.Fail(context.DeadlineExceeded)
	id := f.controller.StartSession()

	turn, err := f.controller.Advance(context.Background(), id, "hello")
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if turn.Message != policyRetryMessage {
		t.Errorf("message = %q, want retry message", turn.Message)
	}
	if turn.State != StateCollecting {
		t.Errorf("state = %v, want COLLECTING", turn.State)
	}
	if transcript := f.controller.Transcript(id); len(transcript) != 0 {
		t.Errorf("transcript length = %d, want 0 after policy failure", len(transcript))
	}
}

func TestProvideDocumentRequiresAwaitingState(t *testing.T) {
	f := newFixture(t, "irrelevant")
	id := f.controller.StartSession()

	_, err := f.controller.ProvideDocument(context.Background(), id, []byte("%PDF"))
	if !cerrors.Is(err, cerrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestProvideDocumentExtractionFailureReprompts(t *testing.T) {
	f := newFixture(t, "Please upload your CV as a PDF")
	id := f.controller.StartSession()

	if _, err := f.controller.Advance(context.Background(), id, "I have a resume"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	f.extractor.err = cerrors.New(cerrors.CodeExtractionFailed, "corrupt upload")
	turn, err := f.controller.ProvideDocument(context.Background(), id, []byte("garbage"))
	if err != nil {
		t.Fatalf("provide document failed: %v", err)
	}
	if turn.State != StateAwaitingDocument {
		t.Errorf("state = %v, want AWAITING_DOCUMENT", turn.State)
	}
	if turn.Message != extractRetryMessage {
		t.Errorf("message = %q, want re-prompt", turn.Message)
	}
	if got := f.controller.SessionState(id); got != StateAwaitingDocument {
		t.Errorf("session state = %v, want AWAITING_DOCUMENT", got)
	}
}

func TestProvideDocumentResumesCollection(t *testing.T) {
	f := newFixture(t,
		"Please upload your CV as a PDF",
		"Thanks! What motivates you in your work?")
	id := f.controller.StartSession()

	if _, err := f.controller.Advance(context.Background(), id, "I have a resume"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	f.extractor.text = "Jane Doe. Five years of Go backend development."
	turn, err := f.controller.ProvideDocument(context.Background(), id, []byte("%PDF"))
	if err != nil {
		t.Fatalf("provide document failed: %v", err)
	}
	if turn.State != StateCollecting {
		t.Errorf("state = %v, want COLLECTING", turn.State)
	}
	if turn.Message != "Thanks! What motivates you in your work?" {
		t.Errorf("unexpected message %q", turn.Message)
	}

	var sawCV bool
	for _, m := range f.controller.Transcript(id) {
		if strings.Contains(m.Content, "CV uploaded with text: Jane Doe.") {
			sawCV = true
		}
	}
	if !sawCV {
		t.Error("extracted CV text missing from transcript")
	}
}

func TestFunctionCallRoutesThroughDispatch(t *testing.T) {
	f := newFixture(t, `{"function_call":{"name":"get_jobs","arguments":{}}}`)
	f.seedJob(t, "Data Analyst", "SQL and reporting")
	id := f.controller.StartSession()

	turn, err := f.controller.Advance(context.Background(), id, "What jobs do you have?")
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if !strings.Contains(turn.Message, "Data Analyst") {
		t.Errorf("message = %q, want job listing", turn.Message)
	}
}

func TestUnknownFunctionCallDoesNotCorruptSession(t *testing.T) {
	f := newFixture(t, `{"function_call":{"name":"delete_everything","arguments":{}}}`)
	id := f.controller.StartSession()

	turn, err := f.controller.Advance(context.Background(), id, "hi")
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if turn.Message != policyRetryMessage {
		t.Errorf("message = %q, want retry message", turn.Message)
	}
	if transcript := f.controller.Transcript(id); len(transcript) != 0 {
		t.Errorf("transcript length = %d, want 0", len(transcript))
	}
}

func TestSessionsAdvanceIndependently(t *testing.T) {
	f := newFixture(t, "Please upload your CV as a PDF")
	first := f.controller.StartSession()
	second := f.controller.StartSession()

	if _, err := f.controller.Advance(context.Background(), first, "I have a resume"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	if got := f.controller.SessionState(first); got != StateAwaitingDocument {
		t.Errorf("first session state = %v, want AWAITING_DOCUMENT", got)
	}
	if got := f.controller.SessionState(second); got != StateCollecting {
		t.Errorf("second session state = %v, want COLLECTING", got)
	}
}
