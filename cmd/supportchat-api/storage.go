package main

import (
	"context"
	"fmt"

	boltstore "github.com/PabloGalante/supportchat/internal/adapters/storage/bolt"
	firestorestore "github.com/PabloGalante/supportchat/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/supportchat/internal/adapters/storage/memory"
	pgstore "github.com/PabloGalante/supportchat/internal/adapters/storage/postgres"
	redisstore "github.com/PabloGalante/supportchat/internal/adapters/storage/redis"
	sqlitestore "github.com/PabloGalante/supportchat/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/supportchat/internal/config"
	"github.com/PabloGalante/supportchat/internal/domain"
)

// openStore returns the configured store and a func releasing it.
func openStore(ctx context.Context, cfg *config.Config) (domain.ConversationStore, func(), error) {
	switch cfg.StorageBackend {
	case config.StorageBolt:
		s, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case config.StorageSQLite:
		s, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case config.StoragePostgres:
		s, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.StorageRedis:
		s, err := redisstore.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case config.StorageFirestore:
		s, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case config.StorageMemory:
		return memstore.NewStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}
