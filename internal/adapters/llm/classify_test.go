package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/PabloGalante/supportchat/internal/domain"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o wait" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.GatewayErrorKind
	}{
		{"nil", nil, domain.GatewayUnknown},
		{"openai 401", errors.New(`POST "https://api.openai.com/v1/chat/completions": 401 Unauthorized {"message":"Incorrect API key provided"}`), domain.GatewayInvalidCredential},
		{"gemini bad key", errors.New("Error 400, Message: API key not valid. Please pass a valid API key., Status: INVALID_ARGUMENT"), domain.GatewayInvalidCredential},
		{"permission", errors.New("rpc error: code = PermissionDenied desc = PERMISSION_DENIED"), domain.GatewayInvalidCredential},
		{"openai 429", errors.New(`POST "https://api.openai.com/v1/chat/completions": 429 Too Many Requests`), domain.GatewayRateLimited},
		{"gemini quota", errors.New("Error 429, Message: Resource has been exhausted (e.g. check quota)., Status: RESOURCE_EXHAUSTED"), domain.GatewayRateLimited},
		{"context deadline", fmt.Errorf("gemini generate content: %w", context.DeadlineExceeded), domain.GatewayTimedOut},
		{"net timeout", fmt.Errorf("post: %w", timeoutErr{}), domain.GatewayTimedOut},
		{"timeout text", errors.New("request timed out"), domain.GatewayTimedOut},
		{"refused", errors.New("dial tcp 127.0.0.1:443: connect: connection refused"), domain.GatewayNetworkUnavailable},
		{"dns", errors.New("lookup api.openai.com: no such host"), domain.GatewayNetworkUnavailable},
		{"unavailable", errors.New("Error 503, Message: The model is overloaded., Status: UNAVAILABLE"), domain.GatewayNetworkUnavailable},
		{"safety", errors.New("gemini response blocked by safety filter: SAFETY"), domain.GatewayContentFiltered},
		{"content filter", errors.New("openai response stopped by content_filter"), domain.GatewayContentFiltered},
		{"bad request", errors.New(`POST "https://api.openai.com/v1/chat/completions": 400 Bad Request {"message":"max_tokens is too large"}`), domain.GatewayInvalidRequest},
		{"invalid argument", errors.New("Error 400, Message: Request contains an invalid argument., Status: INVALID_ARGUMENT"), domain.GatewayInvalidRequest},
		{"unmatched", errors.New("something odd happened"), domain.GatewayUnknown},
		{"existing gateway error", fmt.Errorf("wrapped: %w", domain.NewGatewayError(domain.GatewayContentFiltered, nil)), domain.GatewayContentFiltered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestToGatewayError_KeepsTechnicalText(t *testing.T) {
	cause := errors.New("429 Too Many Requests: org-abc123 exceeded")
	gerr := toGatewayError(cause)

	if gerr.Kind != domain.GatewayRateLimited {
		t.Fatalf("expected rate limited, got %s", gerr.Kind)
	}
	if gerr.Technical != cause.Error() {
		t.Fatalf("technical text lost: %q", gerr.Technical)
	}
	if gerr.UserMessage != domain.GatewayUserMessage(domain.GatewayRateLimited) {
		t.Fatalf("unexpected user message %q", gerr.UserMessage)
	}
}
