package conversation_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/PabloGalante/supportchat/internal/adapters/llm"
	"github.com/PabloGalante/supportchat/internal/adapters/storage/memory"
	"github.com/PabloGalante/supportchat/internal/app/conversation"
	"github.com/PabloGalante/supportchat/internal/domain"
)

// scriptedLLM returns replies in order and records the history it saw.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []string
	err      error
	calls    int
	sawTurns [][]domain.Turn
}

func (s *scriptedLLM) GenerateReply(ctx context.Context, history []domain.Turn, newMessage string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.sawTurns = append(s.sawTurns, append([]domain.Turn(nil), history...))
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "reply to " + newMessage, nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

// failingStore injects storage failures into a working memory store.
type failingStore struct {
	*memory.Store
	failAppend bool
	failGet    bool
}

var errDisk = errors.New("disk I/O error")

func (f *failingStore) AppendMessage(ctx context.Context, id domain.ConversationID, role domain.Role, text string) (*domain.Message, error) {
	if f.failAppend {
		return nil, domain.NewStorageError("append message", errDisk)
	}
	return f.Store.AppendMessage(ctx, id, role, text)
}

func (f *failingStore) GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	if f.failGet {
		return nil, domain.NewStorageError("get conversation", errDisk)
	}
	return f.Store.GetConversation(ctx, id)
}

func asError(t *testing.T, err error) *conversation.Error {
	t.Helper()
	var derr *conversation.Error
	if !errors.As(err, &derr) {
		t.Fatalf("expected *conversation.Error, got %T: %v", err, err)
	}
	return derr
}

func countMessages(t *testing.T, store domain.ConversationStore, id domain.ConversationID) int {
	t.Helper()
	msgs, err := store.ListMessages(context.Background(), id)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	return len(msgs)
}

func TestSendMessageCreatesConversation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	gateway, err := llm.NewGateway(llm.NewMockLLM(), llm.GatewayOptions{})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	svc := conversation.NewService(gateway, store)

	out, err := svc.SendMessage(ctx, conversation.SendMessageInput{Message: "Hola"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if _, err := domain.ParseConversationID(string(out.ConversationID)); err != nil {
		t.Fatalf("returned id %q is not well formed", out.ConversationID)
	}
	if out.Reply == "" {
		t.Fatalf("expected non-empty reply")
	}
	if out.Timestamp.IsZero() {
		t.Fatalf("expected timestamp")
	}

	msgs, err := store.ListMessages(ctx, out.ConversationID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != domain.RoleUser || msgs[1].Role != domain.RoleAssistant {
		t.Fatalf("expected user then assistant, got %+v", msgs)
	}
	if msgs[0].Text != "Hola" || msgs[1].Text != out.Reply {
		t.Fatalf("stored texts = %q, %q", msgs[0].Text, msgs[1].Text)
	}
}

func TestSendMessageEndToEnd(t *testing.T) {
	ctx := context.Background()
	gen := &scriptedLLM{replies: []string{"R1", "R2"}}
	svc := conversation.NewService(gen, memory.NewStore())

	first, err := svc.SendMessage(ctx, conversation.SendMessageInput{Message: "Hello"})
	if err != nil {
		t.Fatalf("first SendMessage: %v", err)
	}
	if first.Reply != "R1" {
		t.Fatalf("first reply = %q", first.Reply)
	}

	second, err := svc.SendMessage(ctx, conversation.SendMessageInput{
		Message:        "Follow-up",
		ConversationID: strings.ToUpper(string(first.ConversationID)),
	})
	if err != nil {
		t.Fatalf("second SendMessage: %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Fatalf("conversation id changed: %s -> %s", first.ConversationID, second.ConversationID)
	}

	hist, err := svc.GetHistory(ctx, conversation.GetHistoryInput{ConversationID: string(first.ConversationID)})
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	want := []string{"Hello", "R1", "Follow-up", "R2"}
	if len(hist.Messages) != len(want) {
		t.Fatalf("got %d messages, want %d", len(hist.Messages), len(want))
	}
	for i, w := range want {
		if hist.Messages[i].Text != w {
			t.Fatalf("message %d = %q, want %q", i, hist.Messages[i].Text, w)
		}
	}

	// The model sees the state before the current turn.
	if len(gen.sawTurns[0]) != 0 {
		t.Fatalf("first call saw %d turns, want 0", len(gen.sawTurns[0]))
	}
	if got := gen.sawTurns[1]; len(got) != 2 || got[0].Content != "Hello" || got[1].Content != "R1" {
		t.Fatalf("second call saw %+v", got)
	}
}

func TestSendMessageAlternatesRoles(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := conversation.NewService(&scriptedLLM{}, store)

	out, err := svc.SendMessage(ctx, conversation.SendMessageInput{Message: "one"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	for _, m := range []string{"two", "three"} {
		if _, err := svc.SendMessage(ctx, conversation.SendMessageInput{Message: m, ConversationID: string(out.ConversationID)}); err != nil {
			t.Fatalf("SendMessage(%q): %v", m, err)
		}
	}

	msgs, _ := store.ListMessages(ctx, out.ConversationID)
	want := []string{"one", "reply to one", "two", "reply to two", "three", "reply to three"}
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(want))
	}
	for i, m := range msgs {
		wantRole := domain.RoleUser
		if i%2 == 1 {
			wantRole = domain.RoleAssistant
		}
		if m.Role != wantRole || m.Text != want[i] {
			t.Fatalf("message %d = %s/%q, want %s/%q", i, m.Role, m.Text, wantRole, want[i])
		}
	}
}

func TestSendMessageInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	gen := &scriptedLLM{}
	svc := conversation.NewService(gen, store)

	seed, err := svc.SendMessage(ctx, conversation.SendMessageInput{Message: "seed"})
	if err != nil {
		t.Fatalf("seed SendMessage: %v", err)
	}
	callsBefore := gen.calls

	tests := []struct {
		name string
		in   conversation.SendMessageInput
	}{
		{"empty", conversation.SendMessageInput{Message: "", ConversationID: string(seed.ConversationID)}},
		{"whitespace", conversation.SendMessageInput{Message: " \t\n ", ConversationID: string(seed.ConversationID)}},
		{"too long", conversation.SendMessageInput{Message: strings.Repeat("a", conversation.MaxMessageLength+1), ConversationID: string(seed.ConversationID)}},
		{"malformed id", conversation.SendMessageInput{Message: "hi", ConversationID: "not-a-uuid"}},
		{"unhyphenated id", conversation.SendMessageInput{Message: "hi", ConversationID: strings.ReplaceAll(string(seed.ConversationID), "-", "")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendMessage(ctx, tt.in)
			derr := asError(t, err)
			if derr.Kind != conversation.KindInvalidInput || derr.StatusCode != http.StatusBadRequest {
				t.Fatalf("got %s/%d, want INVALID_INPUT/400", derr.Kind, derr.StatusCode)
			}
		})
	}

	if n := countMessages(t, store, seed.ConversationID); n != 2 {
		t.Fatalf("invalid input appended messages: have %d, want 2", n)
	}
	if gen.calls != callsBefore {
		t.Fatalf("invalid input reached the model")
	}
}

func TestSendMessageAcceptsMaxLength(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := conversation.NewService(&scriptedLLM{replies: []string{"ok"}}, store)

	// Multi-byte runes: the cap counts characters, not bytes.
	text := strings.Repeat("ñ", conversation.MaxMessageLength)
	out, err := svc.SendMessage(ctx, conversation.SendMessageInput{Message: text})
	if err != nil {
		t.Fatalf("SendMessage at the cap: %v", err)
	}

	msgs, _ := store.ListMessages(ctx, out.ConversationID)
	if msgs[0].Text != text {
		t.Fatalf("stored text was altered")
	}
}

func TestConversationNotFound(t *testing.T) {
	ctx := context.Background()
	svc := conversation.NewService(&scriptedLLM{}, memory.NewStore())
	missing := string(domain.NewConversationID())

	_, err := svc.SendMessage(ctx, conversation.SendMessageInput{Message: "hi", ConversationID: missing})
	if derr := asError(t, err); derr.Kind != conversation.KindConversationNotFound || derr.StatusCode != http.StatusNotFound {
		t.Fatalf("SendMessage got %s/%d", derr.Kind, derr.StatusCode)
	}

	_, err = svc.GetHistory(ctx, conversation.GetHistoryInput{ConversationID: missing})
	if derr := asError(t, err); derr.Kind != conversation.KindConversationNotFound {
		t.Fatalf("GetHistory got %s", derr.Kind)
	}
}

func TestSendMessageKeepsUserMessageOnGatewayFailure(t *testing.T) {
	tests := []struct {
		kind      domain.GatewayErrorKind
		status    int
		retryable bool
	}{
		{domain.GatewayRateLimited, http.StatusTooManyRequests, true},
		{domain.GatewayTimedOut, http.StatusRequestTimeout, true},
		{domain.GatewayNetworkUnavailable, http.StatusServiceUnavailable, true},
		{domain.GatewayInvalidRequest, http.StatusBadRequest, false},
		{domain.GatewayContentFiltered, http.StatusBadRequest, false},
		{domain.GatewayInvalidCredential, http.StatusInternalServerError, false},
		{domain.GatewayUnknown, http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			ctx := context.Background()
			store := memory.NewStore()
			gen := &scriptedLLM{}
			svc := conversation.NewService(gen, store)

			seed, err := svc.SendMessage(ctx, conversation.SendMessageInput{Message: "first"})
			if err != nil {
				t.Fatalf("seed SendMessage: %v", err)
			}

			gen.err = domain.NewGatewayError(tt.kind, errors.New("provider said api key sk-secret is bad"))
			_, err = svc.SendMessage(ctx, conversation.SendMessageInput{Message: "lost?", ConversationID: string(seed.ConversationID)})

			derr := asError(t, err)
			if derr.Kind != conversation.KindAIService {
				t.Fatalf("kind = %s, want AI_SERVICE_ERROR", derr.Kind)
			}
			if derr.StatusCode != tt.status || derr.Retryable != tt.retryable || derr.GatewayKind != tt.kind {
				t.Fatalf("got status %d retryable %v gateway %s", derr.StatusCode, derr.Retryable, derr.GatewayKind)
			}
			if derr.Message != domain.GatewayUserMessage(tt.kind) {
				t.Fatalf("message = %q, want the gateway's user message", derr.Message)
			}
			if strings.Contains(derr.Message, "sk-secret") {
				t.Fatalf("user message leaks technical detail")
			}

			hist, err := svc.GetHistory(ctx, conversation.GetHistoryInput{ConversationID: string(seed.ConversationID)})
			if err != nil {
				t.Fatalf("GetHistory: %v", err)
			}
			if len(hist.Messages) != 3 || hist.Messages[2].Text != "lost?" || hist.Messages[2].Role != domain.RoleUser {
				t.Fatalf("user message not preserved: %+v", hist.Messages)
			}
		})
	}
}

func TestSendMessageUnclassifiedGatewayError(t *testing.T) {
	svc := conversation.NewService(&scriptedLLM{err: errors.New("boom")}, memory.NewStore())

	_, err := svc.SendMessage(context.Background(), conversation.SendMessageInput{Message: "hi"})
	derr := asError(t, err)
	if derr.Kind != conversation.KindAIService || derr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("got %s/%d, want AI_SERVICE_ERROR/500", derr.Kind, derr.StatusCode)
	}
	if derr.GatewayKind != domain.GatewayUnknown || derr.Retryable {
		t.Fatalf("gateway kind = %s retryable = %v, want unknown/false", derr.GatewayKind, derr.Retryable)
	}
	if derr.Message != domain.GatewayUserMessage(domain.GatewayUnknown) {
		t.Fatalf("message = %q", derr.Message)
	}
	if strings.Contains(derr.Message, "boom") {
		t.Fatalf("user message leaks technical detail: %q", derr.Message)
	}
	if !strings.Contains(derr.Technical(), "boom") {
		t.Fatalf("technical detail lost: %q", derr.Technical())
	}
}

func TestStorageFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("append", func(t *testing.T) {
		store := &failingStore{Store: memory.NewStore(), failAppend: true}
		svc := conversation.NewService(&scriptedLLM{}, store)

		_, err := svc.SendMessage(ctx, conversation.SendMessageInput{Message: "hi"})
		derr := asError(t, err)
		if derr.Kind != conversation.KindStorage || derr.StatusCode != http.StatusInternalServerError {
			t.Fatalf("got %s/%d, want STORAGE_ERROR/500", derr.Kind, derr.StatusCode)
		}
		if strings.Contains(derr.Message, "disk") {
			t.Fatalf("user message leaks technical detail: %q", derr.Message)
		}
		if !errors.Is(err, errDisk) {
			t.Fatalf("underlying error not preserved")
		}
	})

	t.Run("lookup", func(t *testing.T) {
		store := &failingStore{Store: memory.NewStore(), failGet: true}
		svc := conversation.NewService(&scriptedLLM{}, store)

		_, err := svc.GetHistory(ctx, conversation.GetHistoryInput{ConversationID: string(domain.NewConversationID())})
		if derr := asError(t, err); derr.Kind != conversation.KindStorage {
			t.Fatalf("got %s, want STORAGE_ERROR", derr.Kind)
		}
	})
}

func TestGetHistoryLimit(t *testing.T) {
	ctx := context.Background()
	svc := conversation.NewService(&scriptedLLM{}, memory.NewStore())

	out, err := svc.SendMessage(ctx, conversation.SendMessageInput{Message: "m1"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	id := string(out.ConversationID)
	for _, m := range []string{"m2", "m3"} {
		if _, err := svc.SendMessage(ctx, conversation.SendMessageInput{Message: m, ConversationID: id}); err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
	}

	full, err := svc.GetHistory(ctx, conversation.GetHistoryInput{ConversationID: id})
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(full.Messages) != 6 {
		t.Fatalf("full history has %d messages", len(full.Messages))
	}

	for _, k := range []int{1, 2, 5, 6, 7, 100} {
		got, err := svc.GetHistory(ctx, conversation.GetHistoryInput{ConversationID: id, Limit: k})
		if err != nil {
			t.Fatalf("GetHistory(limit=%d): %v", k, err)
		}
		wantN := k
		if k > len(full.Messages) {
			wantN = len(full.Messages)
		}
		if len(got.Messages) != wantN {
			t.Fatalf("limit %d returned %d messages, want %d", k, len(got.Messages), wantN)
		}
		offset := len(full.Messages) - wantN
		for i, m := range got.Messages {
			if m.ID != full.Messages[offset+i].ID {
				t.Fatalf("limit %d: message %d is not the tail of the history", k, i)
			}
		}
	}
}

func TestGetHistoryInvalidInput(t *testing.T) {
	ctx := context.Background()
	svc := conversation.NewService(&scriptedLLM{}, memory.NewStore())

	tests := []conversation.GetHistoryInput{
		{ConversationID: ""},
		{ConversationID: "abc"},
		{ConversationID: string(domain.NewConversationID()), Limit: -1},
	}
	for _, in := range tests {
		_, err := svc.GetHistory(ctx, in)
		if derr := asError(t, err); derr.Kind != conversation.KindInvalidInput {
			t.Fatalf("GetHistory(%+v) got %s, want INVALID_INPUT", in, derr.Kind)
		}
	}
}

func TestSendMessageConcurrentSameConversation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := conversation.NewService(&scriptedLLM{}, store)

	seed, err := svc.SendMessage(ctx, conversation.SendMessageInput{Message: "seed"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SendMessage(ctx, conversation.SendMessageInput{Message: "again", ConversationID: string(seed.ConversationID)})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent SendMessage: %v", err)
	}

	if got := countMessages(t, store, seed.ConversationID); got != 2+2*n {
		t.Fatalf("got %d messages, want %d", got, 2+2*n)
	}
}
