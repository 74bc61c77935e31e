// Package storetest holds the behaviour every domain.ConversationStore
// backend must share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/PabloGalante/supportchat/internal/domain"
)

// Open returns a ready store for one subtest. Backends register cleanup on t.
type Open func(t *testing.T) domain.ConversationStore

func Run(t *testing.T, open Open) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s domain.ConversationStore)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"GetUnknown", testGetUnknown},
		{"UnknownConversation", testUnknownConversation},
		{"AppendOrder", testAppendOrder},
		{"RoundTripText", testRoundTripText},
		{"EmptyConversation", testEmptyConversation},
		{"Isolation", testIsolation},
		{"Delete", testDelete},
		{"ConcurrentAppends", testConcurrentAppends},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, open(t))
		})
	}
}

func testCreateAndGet(t *testing.T, s domain.ConversationStore) {
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if _, err := domain.ParseConversationID(string(conv.ID)); err != nil {
		t.Fatalf("conversation id %q is not canonical: %v", conv.ID, err)
	}
	if conv.CreatedAt.IsZero() {
		t.Fatalf("expected creation timestamp")
	}

	got, err := s.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got == nil || got.ID != conv.ID {
		t.Fatalf("GetConversation = %+v, want id %s", got, conv.ID)
	}

	other, err := s.CreateConversation(ctx)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if other.ID == conv.ID {
		t.Fatalf("two conversations share id %s", conv.ID)
	}
}

func testGetUnknown(t *testing.T, s domain.ConversationStore) {
	got, err := s.GetConversation(context.Background(), domain.NewConversationID())
	if err != nil {
		t.Fatalf("GetConversation on unknown id returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("GetConversation on unknown id = %+v, want nil", got)
	}
}

func testUnknownConversation(t *testing.T, s domain.ConversationStore) {
	ctx := context.Background()
	id := domain.NewConversationID()

	if _, err := s.AppendMessage(ctx, id, domain.RoleUser, "hello"); !errors.Is(err, domain.ErrConversationNotFound) {
		t.Fatalf("AppendMessage error = %v, want ErrConversationNotFound", err)
	}
	if _, err := s.ListMessages(ctx, id); !errors.Is(err, domain.ErrConversationNotFound) {
		t.Fatalf("ListMessages error = %v, want ErrConversationNotFound", err)
	}

	var se *domain.StorageError
	if _, err := s.ListMessages(ctx, id); errors.As(err, &se) {
		t.Fatalf("not-found must not be reported as a storage error: %v", err)
	}
}

func testAppendOrder(t *testing.T, s domain.ConversationStore) {
	ctx := context.Background()
	conv := mustCreate(t, s)

	want := []struct {
		role domain.Role
		text string
	}{
		{domain.RoleUser, "first"},
		{domain.RoleAssistant, "second"},
		{domain.RoleUser, "third"},
		{domain.RoleAssistant, "fourth"},
	}

	for _, w := range want {
		msg, err := s.AppendMessage(ctx, conv.ID, w.role, w.text)
		if err != nil {
			t.Fatalf("AppendMessage(%q): %v", w.text, err)
		}
		if msg.ID == "" || msg.ConversationID != conv.ID || msg.Role != w.role || msg.Text != w.text {
			t.Fatalf("AppendMessage returned %+v", msg)
		}
	}

	msgs := mustList(t, s, conv.ID)
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(want))
	}
	for i, w := range want {
		if msgs[i].Role != w.role || msgs[i].Text != w.text {
			t.Fatalf("message %d = %s/%q, want %s/%q", i, msgs[i].Role, msgs[i].Text, w.role, w.text)
		}
		if i > 0 && msgs[i].Seq <= msgs[i-1].Seq {
			t.Fatalf("seq not increasing: %d then %d", msgs[i-1].Seq, msgs[i].Seq)
		}
	}
}

func testRoundTripText(t *testing.T, s domain.ConversationStore) {
	texts := []string{
		"  leading and trailing whitespace  \n",
		"emoji 😀 and accents café, ñandú",
		"line one\nline two\ttabbed",
		`quotes "double" 'single' and \backslash`,
		strings.Repeat("é", 10000),
	}

	conv := mustCreate(t, s)
	for _, text := range texts {
		if _, err := s.AppendMessage(context.Background(), conv.ID, domain.RoleUser, text); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	msgs := mustList(t, s, conv.ID)
	if len(msgs) != len(texts) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(texts))
	}
	for i, text := range texts {
		if msgs[i].Text != text {
			t.Fatalf("message %d changed: got %d runes, want %d", i,
				utf8.RuneCountInString(msgs[i].Text), utf8.RuneCountInString(text))
		}
	}
}

func testEmptyConversation(t *testing.T, s domain.ConversationStore) {
	conv := mustCreate(t, s)
	if msgs := mustList(t, s, conv.ID); len(msgs) != 0 {
		t.Fatalf("new conversation has %d messages", len(msgs))
	}
}

func testIsolation(t *testing.T, s domain.ConversationStore) {
	ctx := context.Background()
	a := mustCreate(t, s)
	b := mustCreate(t, s)

	if _, err := s.AppendMessage(ctx, a.ID, domain.RoleUser, "for a"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if _, err := s.AppendMessage(ctx, b.ID, domain.RoleUser, "for b"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	for _, tc := range []struct {
		id   domain.ConversationID
		want string
	}{{a.ID, "for a"}, {b.ID, "for b"}} {
		msgs := mustList(t, s, tc.id)
		if len(msgs) != 1 || msgs[0].Text != tc.want {
			t.Fatalf("conversation %s messages = %+v", tc.id, msgs)
		}
	}
}

func testDelete(t *testing.T, s domain.ConversationStore) {
	ctx := context.Background()
	conv := mustCreate(t, s)
	keep := mustCreate(t, s)

	for i := 0; i < 3; i++ {
		if _, err := s.AppendMessage(ctx, conv.ID, domain.RoleUser, fmt.Sprintf("m%d", i)); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}
	if _, err := s.AppendMessage(ctx, keep.ID, domain.RoleUser, "kept"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	deleted, err := s.DeleteConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if !deleted {
		t.Fatalf("DeleteConversation reported nothing deleted")
	}

	got, err := s.GetConversation(ctx, conv.ID)
	if err != nil || got != nil {
		t.Fatalf("GetConversation after delete = %+v, %v", got, err)
	}
	if _, err := s.ListMessages(ctx, conv.ID); !errors.Is(err, domain.ErrConversationNotFound) {
		t.Fatalf("ListMessages after delete error = %v", err)
	}

	deleted, err = s.DeleteConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("second DeleteConversation: %v", err)
	}
	if deleted {
		t.Fatalf("second DeleteConversation reported a deletion")
	}

	if msgs := mustList(t, s, keep.ID); len(msgs) != 1 {
		t.Fatalf("delete touched another conversation: %d messages left", len(msgs))
	}
}

func testConcurrentAppends(t *testing.T, s domain.ConversationStore) {
	const (
		workers   = 8
		perWorker = 5
	)
	ctx := context.Background()
	convs := []*domain.Conversation{mustCreate(t, s), mustCreate(t, s)}

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker*len(convs))
	for _, conv := range convs {
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(id domain.ConversationID, w int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					if _, err := s.AppendMessage(ctx, id, domain.RoleUser, fmt.Sprintf("w%d-%d", w, i)); err != nil {
						errs <- err
					}
				}
			}(conv.ID, w)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent AppendMessage: %v", err)
	}

	for _, conv := range convs {
		msgs := mustList(t, s, conv.ID)
		if len(msgs) != workers*perWorker {
			t.Fatalf("conversation %s has %d messages, want %d", conv.ID, len(msgs), workers*perWorker)
		}
		seen := make(map[string]bool, len(msgs))
		for i, m := range msgs {
			if seen[m.Text] {
				t.Fatalf("duplicate message %q", m.Text)
			}
			seen[m.Text] = true
			if i > 0 && m.Seq <= msgs[i-1].Seq {
				t.Fatalf("seq not increasing at %d: %d then %d", i, msgs[i-1].Seq, m.Seq)
			}
		}
	}
}

func mustCreate(t *testing.T, s domain.ConversationStore) *domain.Conversation {
	t.Helper()
	conv, err := s.CreateConversation(context.Background())
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	return conv
}

func mustList(t *testing.T, s domain.ConversationStore, id domain.ConversationID) []*domain.Message {
	t.Helper()
	msgs, err := s.ListMessages(context.Background(), id)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	return msgs
}
