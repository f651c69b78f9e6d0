package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	cerrors "github.com/connectify-ai/connectify/errors"
)

// systemPrompt steers the model through profile collection. The controller
// keys its state transitions off the two quoted phrases, so the prompt pins
// them down explicitly.
const systemPrompt = `You are a friendly career assistant helping a job seeker build their profile.
Collect, one question at a time: education, work experience, volunteer experience, skills, interests, motivation and industry interest.
If the seeker mentions having a resume or CV, ask them to "upload your CV" as a PDF.
Once every area is covered, reply with a message containing the exact phrase "All information complete".`

// FunctionCall is a structured operation request embedded in a policy reply.
type FunctionCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Step is the policy's decision for one turn: a message to relay to the
// user, and optionally a structured operation to execute first.
type Step struct {
	Message string
	Call    *FunctionCall
}

// Policy is the dialogue policy: given the transcript so far it proposes the
// next conversational action.
type Policy struct {
	provider Provider
	timeout  time.Duration
}

// NewPolicy wraps a chat provider as a dialogue policy. timeout bounds each
// provider call; zero means 120s.
func NewPolicy(provider Provider, timeout time.Duration) *Policy {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Policy{provider: provider, timeout: timeout}
}

// NextStep asks the policy what to do next given the transcript. Transport
// failures surface as POLICY_UNAVAILABLE; the caller decides the user-facing
// fallback and must not mutate its state.
func (p *Policy) NextStep(ctx context.Context, transcript []Message) (*Step, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.provider.Chat(ctx, ChatRequest{
		System:   systemPrompt,
		Messages: transcript,
	})
	if err != nil {
		return nil, cerrors.WrapWithCode(err, cerrors.CodePolicyUnavailable, "dialogue policy call failed")
	}

	step := &Step{Message: strings.TrimSpace(resp.Content)}
	if call := parseFunctionCall(step.Message); call != nil {
		step.Call = call
	}
	return step, nil
}

// parseFunctionCall recognizes a reply that is a bare JSON function call,
// the convention the original assistant used for structured operations.
// Anything else is treated as plain conversational text.
func parseFunctionCall(content string) *FunctionCall {
	if !strings.HasPrefix(content, "{") {
		return nil
	}
	var wrapper struct {
		FunctionCall *FunctionCall `json:"function_call"`
	}
	if err := json.Unmarshal([]byte(content), &wrapper); err != nil {
		return nil
	}
	if wrapper.FunctionCall == nil || wrapper.FunctionCall.Name == "" {
		return nil
	}
	return wrapper.FunctionCall
}
