package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/PabloGalante/supportchat/internal/domain"
)

const (
	geminiDefaultModel    = "gemini-2.5-flash"
	geminiDefaultLocation = "us-central1"
)

type geminiModelsClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var newGenaiClient = func(ctx context.Context, cfg *genai.ClientConfig) (*genai.Client, error) {
	return genai.NewClient(ctx, cfg)
}

// GeminiProvider talks to Gemini either through the Gemini API (API key) or
// through Vertex AI (project + application default credentials).
type GeminiProvider struct {
	name            string
	models          geminiModelsClient
	modelName       string
	temperature     float32
	maxOutputTokens int32
}

// NewGeminiProvider creates a provider backed by the Gemini API.
func NewGeminiProvider(ctx context.Context, cfg ProviderConfig) (*GeminiProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, domain.NewGatewayError(domain.GatewayInvalidCredential, errors.New("gemini api key is required"))
	}

	client, err := newGenaiClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	return newGeminiProvider("gemini", client.Models, cfg), nil
}

// NewVertexProvider creates a provider backed by Vertex AI (Gemini).
// Authentication uses application default credentials; the project is the
// credential the gateway requires up front.
func NewVertexProvider(ctx context.Context, cfg ProviderConfig) (*GeminiProvider, error) {
	projectID := strings.TrimSpace(cfg.GCPProjectID)
	if projectID == "" {
		return nil, domain.NewGatewayError(domain.GatewayInvalidCredential, errors.New("vertex requires a GCP project"))
	}
	location := cfg.GCPLocation
	if location == "" {
		location = geminiDefaultLocation
	}

	client, err := newGenaiClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return newGeminiProvider("vertex", client.Models, cfg), nil
}

func newGeminiProvider(name string, models geminiModelsClient, cfg ProviderConfig) *GeminiProvider {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = geminiDefaultModel
	}
	return &GeminiProvider{
		name:            name,
		models:          models,
		modelName:       model,
		temperature:     float32(cfg.Temperature),
		maxOutputTokens: int32(cfg.MaxOutputTokens),
	}
}

func (p *GeminiProvider) Name() string {
	return p.name
}

// Generate sends the rendered prompt as a single user turn with the
// instructions as system instruction.
func (p *GeminiProvider) Generate(ctx context.Context, prompt Prompt) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt.User, genai.RoleUser),
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		Temperature:       genai.Ptr(p.temperature),
	}
	if p.maxOutputTokens > 0 {
		cfg.MaxOutputTokens = p.maxOutputTokens
	}

	res, err := p.models.GenerateContent(ctx, p.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("%s generate content: %w", p.name, err)
	}

	if reason := blockReason(res); reason != "" {
		return "", fmt.Errorf("%s response blocked by safety filter: %s", p.name, reason)
	}

	return res.Text(), nil
}

// blockReason reports why Gemini refused to answer, if it did.
func blockReason(res *genai.GenerateContentResponse) string {
	if res == nil {
		return ""
	}
	if res.PromptFeedback != nil && res.PromptFeedback.BlockReason != "" {
		return string(res.PromptFeedback.BlockReason)
	}
	if len(res.Candidates) > 0 && res.Candidates[0] != nil {
		switch res.Candidates[0].FinishReason {
		case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist:
			return string(res.Candidates[0].FinishReason)
		}
	}
	return ""
}

var _ Provider = (*GeminiProvider)(nil)
