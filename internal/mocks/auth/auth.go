// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.
package auth

import (
	"context"
	"errors"
	"slices"
	"sync"

	domainauth "github.com/todoproduction/todo-client/internal/domain/auth"
	"github.com/todoproduction/todo-client/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.CredentialStore = (*FlakyStore)(nil)
	_ ports.SessionListener = (*RecordingListener)(nil)
)

// ErrStoreUnavailable is the default failure returned by FlakyStore when a Fail flag is set.
var ErrStoreUnavailable = errors.New("store unavailable")

// FlakyStore is an in-memory credential store whose operations can be forced to fail.
// Func fields take precedence over the map when set.
type FlakyStore struct {
	GetFunc    func(ctx context.Context, key string) (string, bool, error)
	SetFunc    func(ctx context.Context, key, value string) error
	DeleteFunc func(ctx context.Context, keys ...string) error

	// FailGet, FailSet and FailDelete make the matching operation return ErrStoreUnavailable.
	FailGet    bool
	FailSet    bool
	FailDelete bool
	// FailSetKeys makes Set fail only for the listed keys.
	FailSetKeys []string

	mu      sync.Mutex
	values  map[string]string
	deleted []string
}

// NewFlakyStore creates a FlakyStore seeded with values.
func NewFlakyStore(seed map[string]string) *FlakyStore {
	values := make(map[string]string, len(seed))
	for k, v := range seed {
		values[k] = v
	}
	return &FlakyStore{values: values}
}

func (s *FlakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.GetFunc != nil {
		return s.GetFunc(ctx, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailGet {
		return "", false, ErrStoreUnavailable
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *FlakyStore) Set(ctx context.Context, key, value string) error {
	if s.SetFunc != nil {
		return s.SetFunc(ctx, key, value)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSet || slices.Contains(s.FailSetKeys, key) {
		return ErrStoreUnavailable
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	return nil
}

func (s *FlakyStore) Delete(ctx context.Context, keys ...string) error {
	if s.DeleteFunc != nil {
		return s.DeleteFunc(ctx, keys...)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDelete {
		return ErrStoreUnavailable
	}
	for _, k := range keys {
		delete(s.values, k)
	}
	s.deleted = append(s.deleted, keys...)
	return nil
}

// Values returns a copy of the stored map.
func (s *FlakyStore) Values() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Deleted returns every key passed to Delete, in call order.
func (s *FlakyStore) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// RecordingListener records every SessionInvalidated event it receives.
type RecordingListener struct {
	mu     sync.Mutex
	events []domainauth.SessionInvalidated
}

func (l *RecordingListener) SessionInvalidated(_ context.Context, ev domainauth.SessionInvalidated) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

// Events returns a copy of the recorded events.
func (l *RecordingListener) Events() []domainauth.SessionInvalidated {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domainauth.SessionInvalidated(nil), l.events...)
}

// Count returns the number of recorded events.
func (l *RecordingListener) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
