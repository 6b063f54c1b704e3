package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/todoproduction/todo-client/config"
	memstore "github.com/todoproduction/todo-client/internal/adapters/memory"
	redisstore "github.com/todoproduction/todo-client/internal/adapters/redis"
	"github.com/todoproduction/todo-client/internal/adapters/sealed"
	sqlitestore "github.com/todoproduction/todo-client/internal/adapters/sqlite"
	"github.com/todoproduction/todo-client/internal/ports"
)

// OpenCredentialStore builds the configured credential store. The returned
// close function releases its connection and is never nil.
func OpenCredentialStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (ports.CredentialStore, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store, closeFn, err := openBackend(ctx, cfg, logger)
	if err != nil || cfg.EncryptionKey == "" {
		return store, closeFn, err
	}
	key, err := sealed.KeyFromString(cfg.EncryptionKey)
	if err == nil {
		var c *sealed.AESGCM
		if c, err = sealed.NewAESGCM(key); err == nil {
			logger.DebugContext(ctx, "credential values encrypted at rest")
			return sealed.NewStore(store, c), closeFn, nil
		}
	}
	return nil, func() error { return nil }, errors.Join(fmt.Errorf("credential store encryption: %w", err), closeFn())
}

func openBackend(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (ports.CredentialStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.StoreBackendMemory:
		logger.DebugContext(ctx, "using in-memory credential store")
		return memstore.NewCredentialStore(), noop, nil

	case config.StoreBackendRedis:
		client, err := ConnectRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("connect credential store: %w", err)
		}
		store := redisstore.NewCredentialStore(client, redisstore.Options{
			Prefix:     cfg.Redis.KeyPrefix,
			RefreshTTL: cfg.Redis.RefreshTTL,
		})
		return store, client.Close, nil

	case config.StoreBackendSQLite, "":
		path := cfg.SQLite.Path
		if path == "" {
			path = config.DefaultSQLitePath()
		}
		store, err := sqlitestore.Open(sqlitestore.Config{Path: path, BusyTimeout: cfg.SQLite.BusyTimeout})
		if err != nil {
			return nil, noop, fmt.Errorf("open credential store: %w", err)
		}
		logger.DebugContext(ctx, "using sqlite credential store", "path", store.Path())
		return store, store.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown credential store backend %q", cfg.Backend)
	}
}
