package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/PabloGalante/supportchat/internal/adapters/storage/postgres"
	"github.com/PabloGalante/supportchat/internal/adapters/storage/storetest"
	"github.com/PabloGalante/supportchat/internal/domain"
)

func TestStoreConformance(t *testing.T) {
	url := os.Getenv("SUPPORT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SUPPORT_TEST_DATABASE_URL not set")
	}

	storetest.Run(t, func(t *testing.T) domain.ConversationStore {
		s, err := postgres.Open(context.Background(), url)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(s.Close)
		return s
	})
}

func TestOpenRequiresURL(t *testing.T) {
	if _, err := postgres.Open(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty database url")
	}
}
