package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/PabloGalante/supportchat/internal/domain"
)

const (
	openAIDefaultAPIURL = "https://api.openai.com/v1"
	openAIDefaultModel  = "gpt-4o-mini"

	finishReasonContentFilter = "content_filter"
)

// OpenAIProvider implements Provider using the OpenAI chat completions API.
type OpenAIProvider struct {
	client          openai.Client
	model           string
	temperature     float64
	maxOutputTokens int
}

// NewOpenAIProvider creates a new OpenAI provider from config. httpClient may
// be nil.
func NewOpenAIProvider(cfg ProviderConfig, httpClient *http.Client) (*OpenAIProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, domain.NewGatewayError(domain.GatewayInvalidCredential, errors.New("openai api key is required"))
	}

	apiURL := cfg.BaseURL
	if apiURL == "" {
		apiURL = openAIDefaultAPIURL
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = openAIDefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(apiURL),
		// retries belong to the caller, not the gateway
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &OpenAIProvider{
		client:          openai.NewClient(opts...),
		model:           model,
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
	}, nil
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Generate sends a non-streaming chat completion request.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt Prompt) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
	}
	params.Temperature = openai.Float(p.temperature)
	if p.maxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.maxOutputTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	choice := resp.Choices[0]
	if string(choice.FinishReason) == finishReasonContentFilter {
		return "", fmt.Errorf("openai response stopped by %s", finishReasonContentFilter)
	}

	return choice.Message.Content, nil
}

var _ Provider = (*OpenAIProvider)(nil)
