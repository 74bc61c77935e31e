package redis_test

import (
	"context"
	"os"
	"testing"

	"github.com/PabloGalante/supportchat/internal/adapters/storage/redis"
	"github.com/PabloGalante/supportchat/internal/adapters/storage/storetest"
	"github.com/PabloGalante/supportchat/internal/domain"
)

func TestStoreConformance(t *testing.T) {
	url := os.Getenv("SUPPORT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SUPPORT_TEST_REDIS_URL not set")
	}

	storetest.Run(t, func(t *testing.T) domain.ConversationStore {
		s, err := redis.Open(context.Background(), url)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpenRejectsBadURL(t *testing.T) {
	ctx := context.Background()
	if _, err := redis.Open(ctx, ""); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if _, err := redis.Open(ctx, "http://not-redis"); err == nil {
		t.Fatalf("expected error for non-redis scheme")
	}
}
