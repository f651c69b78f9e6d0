// Package conversation tracks per-session profile collection as a small state
// machine driven by the dialogue policy's replies.
package conversation

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/connectify-ai/connectify/dispatch"
	"github.com/connectify-ai/connectify/document"
	cerrors "github.com/connectify-ai/connectify/errors"
	"github.com/connectify-ai/connectify/llm"
	"github.com/connectify-ai/connectify/matching"
)

// State is a session's position in profile collection.
type State int

const (
	// StateCollecting is the initial state: the policy is still asking
	// profile questions.
	StateCollecting State = iota
	// StateAwaitingDocument means the policy asked for a CV upload and the
	// session is blocked on ProvideDocument.
	StateAwaitingDocument
	// StateReadyToFinalize means the policy declared the profile complete and
	// finalization is in flight.
	StateReadyToFinalize
	// StateFinalized is terminal. A finalized session immediately resets to a
	// fresh StateCollecting, so it is only ever observed transiently.
	StateFinalized
)

// String returns the state's wire name.
func (s State) String() string {
	switch s {
	case StateCollecting:
		return "COLLECTING"
	case StateAwaitingDocument:
		return "AWAITING_DOCUMENT"
	case StateReadyToFinalize:
		return "READY_TO_FINALIZE"
	case StateFinalized:
		return "FINALIZED"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON renders the state as its wire name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a wire name back into a State.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "COLLECTING":
		*s = StateCollecting
	case "AWAITING_DOCUMENT":
		*s = StateAwaitingDocument
	case "READY_TO_FINALIZE":
		*s = StateReadyToFinalize
	case "FINALIZED":
		*s = StateFinalized
	default:
		return cerrors.Newf(cerrors.CodeInvalidInput, "unknown state %q", name)
	}
	return nil
}

// The policy signals transitions with these phrases; matching is
// case-insensitive substring, per the prompt contract in the llm package.
const (
	triggerUpload   = "upload your cv"
	triggerComplete = "all information complete"
)

// User-facing canned messages.
const (
	// Greeting opens every new session.
	Greeting = "Hi, I'm here to help you find a job. How can I assist you today?"

	uploadPrompt        = "Please upload your CV as a PDF file."
	extractRetryMessage = "That file could not be read. Please upload your CV as a PDF file."
	policyRetryMessage  = "There was an error processing your request. Please try again later."
	finalizeFailMessage = "Failed to process your profile, please try again later."
	recommendationLead  = "Based on your profile, here are some job recommendations: "
)

// Turn is the controller's reply to one user action.
type Turn struct {
	SessionID       string   `json:"session_id"`
	Message         string   `json:"response"`
	State           State    `json:"state"`
	Recommendations []string `json:"recommendations,omitempty"`
}

type session struct {
	mu         sync.Mutex
	state      State
	transcript []llm.Message
}

// Controller advances conversations. Turns within a session are serialized;
// different sessions proceed fully in parallel.
type Controller struct {
	policy     *llm.Policy
	extractor  document.Extractor
	engine     *matching.Engine
	dispatcher *dispatch.Dispatcher
	log        *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewController creates a controller over the given collaborators.
func NewController(policy *llm.Policy, extractor document.Extractor, engine *matching.Engine, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		policy:     policy,
		extractor:  extractor,
		engine:     engine,
		dispatcher: dispatch.NewDispatcher(engine),
		log:        log,
		sessions:   make(map[string]*session),
	}
}

// StartSession registers a fresh session and returns its id.
func (c *Controller) StartSession() string {
	id := uuid.NewString()
	c.mu.Lock()
	c.sessions[id] = &session{state: StateCollecting}
	c.mu.Unlock()
	return id
}

// SessionState reports the session's current state. Unknown ids read as a
// fresh StateCollecting, consistent with lazy session creation.
func (c *Controller) SessionState(sessionID string) State {
	sess := c.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state
}

// Transcript returns a copy of the session's transcript.
func (c *Controller) Transcript(sessionID string) []llm.Message {
	sess := c.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return slices.Clone(sess.transcript)
}

// Advance appends the utterance as the user's turn, asks the policy for the
// next step and applies the resulting transition. If the policy call fails the
// session's state and transcript are left untouched and the user gets a
// generic retry message.
func (c *Controller) Advance(ctx context.Context, sessionID, utterance string) (*Turn, error) {
	if strings.TrimSpace(utterance) == "" {
		return nil, cerrors.New(cerrors.CodeInvalidInput, "utterance is empty")
	}

	sess := c.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	candidate := append(slices.Clone(sess.transcript), llm.Message{Role: "user", Content: utterance})
	return c.step(ctx, sessionID, sess, candidate), nil
}

// ProvideDocument accepts a CV upload for a session in StateAwaitingDocument.
// On extraction failure the session stays put and the user is re-prompted;
// on success the extracted text joins the transcript as a system-observed
// turn and the policy is re-invoked.
func (c *Controller) ProvideDocument(ctx context.Context, sessionID string, data []byte) (*Turn, error) {
	sess := c.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != StateAwaitingDocument {
		return nil, cerrors.New(cerrors.CodeInvalidInput, "no document upload is pending for this session")
	}

	text, err := c.extractor.Extract(ctx, data)
	if err != nil {
		c.log.Warn("document extraction failed",
			zap.String("session", sessionID), zap.Error(err))
		return &Turn{SessionID: sessionID, Message: extractRetryMessage, State: StateAwaitingDocument}, nil
	}

	sess.transcript = append(sess.transcript, llm.Message{Role: "user", Content: "CV uploaded with text: " + text})
	sess.state = StateCollecting
	c.log.Info("document received",
		zap.String("session", sessionID), zap.Int("chars", len(text)))

	return c.step(ctx, sessionID, sess, slices.Clone(sess.transcript)), nil
}

// step runs one policy round over the candidate transcript and commits the
// transition. The candidate is only written back once the policy has answered,
// so a failed call leaves the session exactly as it was.
func (c *Controller) step(ctx context.Context, sessionID string, sess *session, candidate []llm.Message) *Turn {
	policyStep, err := c.policy.NextStep(ctx, candidate)
	if err != nil {
		c.log.Warn("dialogue policy unavailable",
			zap.String("session", sessionID), zap.Error(err))
		return &Turn{SessionID: sessionID, Message: policyRetryMessage, State: sess.state}
	}

	text := policyStep.Message
	if policyStep.Call != nil {
		result, derr := c.dispatcher.ExecuteCall(ctx, policyStep.Call.Name, policyStep.Call.Arguments)
		if derr != nil {
			c.log.Warn("operation dispatch failed",
				zap.String("session", sessionID),
				zap.String("operation", policyStep.Call.Name),
				zap.Error(derr))
			return &Turn{SessionID: sessionID, Message: policyRetryMessage, State: sess.state}
		}
		text = renderResult(result)
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, triggerUpload):
		sess.transcript = append(candidate, llm.Message{Role: "assistant", Content: text})
		sess.state = StateAwaitingDocument
		return &Turn{SessionID: sessionID, Message: uploadPrompt, State: StateAwaitingDocument}

	case strings.Contains(lower, triggerComplete):
		sess.transcript = candidate
		sess.state = StateReadyToFinalize
		return c.finalize(ctx, sessionID, sess)

	default:
		sess.transcript = append(candidate, llm.Message{Role: "assistant", Content: text})
		return &Turn{SessionID: sessionID, Message: text, State: sess.state}
	}
}

// finalize persists the collected profile, fetches recommendations and resets
// the session. Each runs exactly once per finalization; a failure parks the
// session in StateReadyToFinalize so a later turn can retry.
func (c *Controller) finalize(ctx context.Context, sessionID string, sess *session) *Turn {
	profile := matching.UserProfile{
		Name: sessionID,
		Text: transcriptText(sess.transcript),
	}

	if err := c.engine.SaveProfile(ctx, profile); err != nil {
		c.log.Error("saving profile failed",
			zap.String("session", sessionID), zap.Error(err))
		return &Turn{SessionID: sessionID, Message: finalizeFailMessage, State: StateReadyToFinalize}
	}

	recs, err := c.engine.Recommend(ctx, profile.Text, 0)
	if err != nil {
		c.log.Error("recommendation failed",
			zap.String("session", sessionID), zap.Error(err))
		return &Turn{SessionID: sessionID, Message: finalizeFailMessage, State: StateReadyToFinalize}
	}

	sess.state = StateCollecting
	sess.transcript = nil
	c.log.Info("session finalized",
		zap.String("session", sessionID), zap.Int("recommendations", len(recs)))

	return &Turn{
		SessionID:       sessionID,
		Message:         recommendationLead + strings.Join(recs, "; "),
		State:           StateReadyToFinalize,
		Recommendations: recs,
	}
}

// session returns the session for id, creating it on first use.
func (c *Controller) session(id string) *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[id]
	if !ok {
		sess = &session{state: StateCollecting}
		c.sessions[id] = sess
	}
	return sess
}

// transcriptText flattens the transcript into the labeled text the profile
// embedding is derived from.
func transcriptText(transcript []llm.Message) string {
	var b strings.Builder
	for _, m := range transcript {
		switch m.Role {
		case "assistant":
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// renderResult flattens a dispatch result into conversational text.
func renderResult(result interface{}) string {
	switch v := result.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, "; ")
	case matching.UserProfile:
		return v.ComposeText()
	case []matching.JobListing:
		lines := make([]string, 0, len(v))
		for _, job := range v {
			lines = append(lines, job.Display())
		}
		return strings.Join(lines, "; ")
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
