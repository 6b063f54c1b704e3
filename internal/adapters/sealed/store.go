package sealed

import (
	"context"
	"fmt"

	"github.com/todoproduction/todo-client/internal/ports"
)

// Store wraps a CredentialStore so values are encrypted at rest. Keys stay in
// the clear; each value is bound to its key.
type Store struct {
	inner  ports.CredentialStore
	cipher Cipher
}

var _ ports.CredentialStore = (*Store)(nil)

// NewStore wraps inner with c.
func NewStore(inner ports.CredentialStore, c Cipher) *Store {
	return &Store{inner: inner, cipher: c}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	pt, err := s.cipher.Open(key, raw)
	if err != nil {
		return "", false, fmt.Errorf("decrypt %s: %w", key, err)
	}
	return string(pt), true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	ct, err := s.cipher.Seal(key, []byte(value))
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", key, err)
	}
	return s.inner.Set(ctx, key, ct)
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	return s.inner.Delete(ctx, keys...)
}
