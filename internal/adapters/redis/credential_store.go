// Package redis provides a Redis-backed credential store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	domainauth "github.com/todoproduction/todo-client/internal/domain/auth"
)

const defaultPrefix = "todo:session:"

// CredentialStore keeps session credentials in Redis so several processes
// (CLI invocations, workers) can share one login.
type CredentialStore struct {
	client     redis.UniversalClient
	prefix     string
	refreshTTL time.Duration
}

// Options configures a CredentialStore.
type Options struct {
	// Prefix namespaces every key. Defaults to "todo:session:".
	Prefix string
	// RefreshTTL expires the refresh token entry; zero keeps it until deleted.
	RefreshTTL time.Duration
}

// NewCredentialStore creates a Redis credential store.
func NewCredentialStore(client redis.UniversalClient, opts Options) *CredentialStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	ttl := opts.RefreshTTL
	if ttl < 0 {
		ttl = 0
	}
	return &CredentialStore{
		client:     client,
		prefix:     prefix,
		refreshTTL: ttl,
	}
}

func (s *CredentialStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}

	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (s *CredentialStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	var ttl time.Duration
	if key == domainauth.KeyRefreshToken {
		ttl = s.refreshTTL
	}
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *CredentialStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil // Nothing to delete
	}

	full := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			full = append(full, s.prefix+k)
		}
	}
	if len(full) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
