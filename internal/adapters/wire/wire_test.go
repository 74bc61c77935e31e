package wire_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/PabloGalante/supportchat/internal/adapters/wire"
	"github.com/PabloGalante/supportchat/internal/app/conversation"
	"github.com/PabloGalante/supportchat/internal/domain"
)

func TestDecodeSendRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    wire.SendRequest
		wantErr bool
	}{
		{"message only", `{"message":"hi"}`, wire.SendRequest{Message: "hi"}, false},
		{"with session", `{"message":"hi","sessionId":"abc"}`, wire.SendRequest{Message: "hi", SessionID: "abc"}, false},
		{"unknown fields ignored", `{"message":"hi","extra":1}`, wire.SendRequest{Message: "hi"}, false},
		{"not json", `hello`, wire.SendRequest{}, true},
		{"wrong type", `{"message":42}`, wire.SendRequest{}, true},
		{"two objects", `{"message":"a"}{"message":"b"}`, wire.SendRequest{}, true},
		{"empty", ``, wire.SendRequest{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := wire.DecodeSendRequest(strings.NewReader(tt.body))
			if tt.wantErr {
				var derr *conversation.Error
				if !errors.As(err, &derr) || derr.Kind != conversation.KindInvalidInput {
					t.Fatalf("expected INVALID_INPUT, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewHistoryResponse(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)
	out := &conversation.GetHistoryOutput{
		ConversationID: "11111111-2222-4333-8444-555555555555",
		Messages: []*domain.Message{
			{ID: "m1", Role: domain.RoleUser, Text: "hi", CreatedAt: at},
			{ID: "m2", Role: domain.RoleAssistant, Text: "hello", CreatedAt: at},
		},
	}

	resp := wire.NewHistoryResponse(out)
	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"sessionId":"11111111-2222-4333-8444-555555555555","messages":[` +
		`{"id":"m1","sender":"user","text":"hi","timestamp":"2026-03-01T12:00:00.0000005Z"},` +
		`{"id":"m2","sender":"assistant","text":"hello","timestamp":"2026-03-01T12:00:00.0000005Z"}]}`
	if string(raw) != want {
		t.Fatalf("got %s\nwant %s", raw, want)
	}
}

func TestNewHistoryResponseEmptyIsArray(t *testing.T) {
	raw, _ := json.Marshal(wire.NewHistoryResponse(&conversation.GetHistoryOutput{ConversationID: "x"}))
	if !strings.Contains(string(raw), `"messages":[]`) {
		t.Fatalf("expected empty array, got %s", raw)
	}
}

func TestNewErrorEnvelope(t *testing.T) {
	status, env := wire.NewErrorEnvelope(conversation.InvalidInput("bad"))
	if status != http.StatusBadRequest || env.Error.Kind != "INVALID_INPUT" || env.Error.Message != "bad" || env.Error.StatusCode != status {
		t.Fatalf("got %d %+v", status, env)
	}

	status, env = wire.NewErrorEnvelope(errors.New("raw failure with secret"))
	if status != http.StatusInternalServerError || env.Error.Kind != "UNKNOWN" {
		t.Fatalf("got %d %+v", status, env)
	}
	if strings.Contains(env.Error.Message, "secret") {
		t.Fatalf("technical detail leaked: %q", env.Error.Message)
	}
}

func TestMarshalFallback(t *testing.T) {
	out := wire.Marshal(func() {})
	var env wire.ErrorEnvelope
	if err := json.Unmarshal(out, &env); err != nil {
		t.Fatalf("fallback is not valid JSON: %v", err)
	}
	if env.Error.Kind != "UNKNOWN" || env.Error.StatusCode != 500 {
		t.Fatalf("fallback = %+v", env)
	}
}
