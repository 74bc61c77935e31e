package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PabloGalante/supportchat/internal/domain"
	"github.com/PabloGalante/supportchat/internal/metrics"
	"github.com/PabloGalante/supportchat/internal/observability"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 30 * time.Second

// Provider is one external text-generation backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// GatewayOptions tunes a Gateway. Zero values fall back to defaults.
type GatewayOptions struct {
	Timeout      time.Duration
	HistoryTurns int
}

// Gateway wraps a Provider with prompt assembly, a bounded wait and error
// classification. It implements domain.ReplyGenerator.
type Gateway struct {
	provider     Provider
	timeout      time.Duration
	historyTurns int
}

// NewGateway fails with an InvalidCredential GatewayError when no provider
// is configured, so a misconfigured process fails at startup.
func NewGateway(provider Provider, opts GatewayOptions) (*Gateway, error) {
	if provider == nil {
		return nil, domain.NewGatewayError(domain.GatewayInvalidCredential, errors.New("no model provider configured"))
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	turns := opts.HistoryTurns
	if turns <= 0 {
		turns = DefaultHistoryTurns
	}

	return &Gateway{
		provider:     provider,
		timeout:      timeout,
		historyTurns: turns,
	}, nil
}

// GenerateReply implements domain.ReplyGenerator. Every error it returns is a
// *domain.GatewayError.
func (g *Gateway) GenerateReply(ctx context.Context, history []domain.Turn, newMessage string) (string, error) {
	if domain.IsBlank(newMessage) {
		return "", domain.NewGatewayError(domain.GatewayInvalidRequest, errors.New("new message is empty"))
	}

	log := observability.LoggerFromContext(ctx).With(
		"provider", g.provider.Name(),
		"history_turns", len(history),
	)

	prompt := BuildPrompt(history, newMessage, g.historyTurns)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.provider.Generate(callCtx, prompt)
	elapsed := time.Since(start)
	metrics.GatewayLatency.WithLabelValues(g.provider.Name()).Observe(elapsed.Seconds())

	if err != nil {
		// The provider may report our own deadline as a transport error.
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = errors.Join(context.DeadlineExceeded, err)
		}
		gerr := toGatewayError(err)
		metrics.GatewayFailures.WithLabelValues(string(gerr.Kind)).Inc()
		log.Warn("model generation failed",
			"kind", gerr.Kind,
			"error", gerr.Technical,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		return "", gerr
	}

	reply := strings.TrimSpace(text)
	if reply == "" {
		gerr := domain.NewGatewayError(domain.GatewayUnknown, errors.New("provider returned an empty response"))
		metrics.GatewayFailures.WithLabelValues(string(gerr.Kind)).Inc()
		log.Warn("model returned empty text", "elapsed_ms", elapsed.Milliseconds())
		return "", gerr
	}

	log.Debug("model generation completed", "elapsed_ms", elapsed.Milliseconds(), "reply_len", len(reply))
	return reply, nil
}

var _ domain.ReplyGenerator = (*Gateway)(nil)
