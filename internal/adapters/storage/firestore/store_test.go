package firestore_test

import (
	"context"
	"os"
	"testing"

	"github.com/PabloGalante/supportchat/internal/adapters/storage/firestore"
	"github.com/PabloGalante/supportchat/internal/adapters/storage/storetest"
	"github.com/PabloGalante/supportchat/internal/domain"
)

// Runs against the emulator: FIRESTORE_EMULATOR_HOST routes the client there.
func TestStoreConformance(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	storetest.Run(t, func(t *testing.T) domain.ConversationStore {
		s, err := firestore.NewStore(context.Background(), "supportchat-test")
		if err != nil {
			t.Fatalf("NewStore: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestNewStoreRequiresProject(t *testing.T) {
	if _, err := firestore.NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty project id")
	}
}
