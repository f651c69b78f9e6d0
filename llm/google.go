package llm

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	cerrors "github.com/connectify-ai/connectify/errors"
)

// GoogleProvider implements Provider using the Gemini SDK.
type GoogleProvider struct {
	client *genai.Client
	model  string
}

// NewGoogleProvider creates a new Gemini chat provider.
func NewGoogleProvider(ctx context.Context, cfg ProviderConfig) (*GoogleProvider, error) {
	if cfg.APIKey == "" {
		return nil, cerrors.New(cerrors.CodeInvalidInput, "api_key is required for google")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, cerrors.WrapWithCode(err, cerrors.CodePolicyUnavailable, "creating gemini client")
	}

	return &GoogleProvider{client: client, model: model}, nil
}

// Chat implements the Provider interface. The transcript becomes chat
// history; the last user message is the prompt.
func (p *GoogleProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := p.client.GenerativeModel(p.model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	prompt := ""
	var history []*genai.Content
	for i, m := range req.Messages {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		if i == len(req.Messages)-1 && role == "user" {
			prompt = m.Content
			break
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	if prompt == "" {
		prompt = "Continue."
	}

	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return nil, cerrors.WrapWithCode(err, cerrors.CodePolicyUnavailable, "gemini chat request failed")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, cerrors.New(cerrors.CodePolicyUnavailable, "gemini returned no candidates")
	}

	result := &ChatResponse{Model: p.model}
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			result.Content += string(text)
		}
	}
	if resp.UsageMetadata != nil {
		result.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return result, nil
}

// Close releases the underlying client.
func (p *GoogleProvider) Close() error {
	return p.client.Close()
}
