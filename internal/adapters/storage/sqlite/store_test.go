package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/PabloGalante/supportchat/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/supportchat/internal/adapters/storage/storetest"
	"github.com/PabloGalante/supportchat/internal/domain"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.ConversationStore {
		s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "chat.db")

	s, err := sqlite.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	conv, err := s.CreateConversation(ctx)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if _, err := s.AppendMessage(ctx, conv.ID, domain.RoleAssistant, "still here"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	_ = s.Close()

	s, err = sqlite.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	msgs, err := s.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != domain.RoleAssistant || msgs[0].Text != "still here" {
		t.Fatalf("messages after reopen = %+v", msgs)
	}
}
