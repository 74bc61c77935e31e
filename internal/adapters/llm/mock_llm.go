package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockLLM answers without calling any provider. Useful for local runs.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) Name() string {
	return "mock"
}

func (m *MockLLM) Generate(ctx context.Context, prompt Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Thanks for reaching out. You said: %q. How else can I help?", lastUserLine(prompt.User)), nil
}

// lastUserLine pulls the new message back out of the rendered user content.
func lastUserLine(user string) string {
	body := strings.TrimSuffix(user, "\n\n"+assistantLabel+":")
	if i := strings.LastIndex(body, "\n\n"+userLabel+": "); i >= 0 {
		return body[i+len("\n\n"+userLabel+": "):]
	}
	return body
}
