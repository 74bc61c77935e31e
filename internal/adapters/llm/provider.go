package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ProviderType names a supported text-generation backend.
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderVertex ProviderType = "vertex"
	ProviderOpenAI ProviderType = "openai"
	ProviderMock   ProviderType = "mock"
)

// ProviderConfig holds everything needed to build a provider.
type ProviderConfig struct {
	Type ProviderType

	APIKey  string
	BaseURL string

	GCPProjectID string
	GCPLocation  string

	Model           string
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
	HistoryTurns    int
}

// New builds the provider named by cfg.Type and wraps it in a Gateway.
// Missing credentials fail here, not on the first request.
func New(ctx context.Context, cfg ProviderConfig) (*Gateway, error) {
	var (
		provider Provider
		err      error
	)

	switch ProviderType(strings.ToLower(string(cfg.Type))) {
	case ProviderGemini, "":
		provider, err = NewGeminiProvider(ctx, cfg)
	case ProviderVertex:
		provider, err = NewVertexProvider(ctx, cfg)
	case ProviderOpenAI:
		provider, err = NewOpenAIProvider(cfg, nil)
	case ProviderMock:
		provider = NewMockLLM()
	default:
		return nil, fmt.Errorf("unknown model provider %q (supported: %v)", cfg.Type, SupportedProviders())
	}
	if err != nil {
		return nil, err
	}

	return NewGateway(provider, GatewayOptions{
		Timeout:      cfg.Timeout,
		HistoryTurns: cfg.HistoryTurns,
	})
}

// SupportedProviders lists the provider names New accepts.
func SupportedProviders() []ProviderType {
	return []ProviderType{ProviderGemini, ProviderVertex, ProviderOpenAI, ProviderMock}
}
