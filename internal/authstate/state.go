// Package authstate holds who is logged in and mirrors it into the credential store
// so a later process can pick the session up again.
package authstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	domainauth "github.com/todoproduction/todo-client/internal/domain/auth"
	"github.com/todoproduction/todo-client/internal/ports"
)

var _ ports.SessionListener = (*State)(nil)

// State is the process-wide auth state. It is safe for concurrent use.
type State struct {
	store  ports.CredentialStore
	logger *slog.Logger

	mu            sync.RWMutex
	user          *domainauth.User
	agency        *domainauth.Agency
	authenticated bool
}

// New creates an anonymous State backed by store.
func New(store ports.CredentialStore, logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.Default()
	}
	return &State{store: store, logger: logger.With("component", "authstate")}
}

// SaveCredentials persists a freshly issued token pair. The two tokens are
// stored together or not at all: a failed write removes both keys.
func (s *State) SaveCredentials(ctx context.Context, creds domainauth.Credentials) error {
	if !creds.Complete() {
		return errors.New("both access and refresh tokens are required")
	}
	if err := s.store.Set(ctx, domainauth.KeyAccessToken, creds.AccessToken); err != nil {
		return s.dropCredentials(ctx, fmt.Errorf("store access token: %w", err))
	}
	if err := s.store.Set(ctx, domainauth.KeyRefreshToken, creds.RefreshToken); err != nil {
		return s.dropCredentials(ctx, fmt.Errorf("store refresh token: %w", err))
	}
	return nil
}

// dropCredentials removes both tokens after a failed write and returns cause
// joined with any cleanup failure.
func (s *State) dropCredentials(ctx context.Context, cause error) error {
	ctx = context.WithoutCancel(ctx)
	if err := s.store.Delete(ctx, domainauth.KeyAccessToken, domainauth.KeyRefreshToken); err != nil {
		s.logger.ErrorContext(ctx, "removing partially stored credentials", "error", err)
		return errors.Join(cause, fmt.Errorf("remove partial credentials: %w", err))
	}
	return cause
}

// Credentials returns the stored token pair. Missing tokens come back empty.
func (s *State) Credentials(ctx context.Context) (domainauth.Credentials, error) {
	access, err := s.read(ctx, domainauth.KeyAccessToken)
	if err != nil {
		return domainauth.Credentials{}, err
	}
	refresh, err := s.read(ctx, domainauth.KeyRefreshToken)
	if err != nil {
		return domainauth.Credentials{}, err
	}
	return domainauth.Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

// SetAuth records the logged-in user and agency. Agency may be nil.
func (s *State) SetAuth(ctx context.Context, user domainauth.User, agency *domainauth.Agency) error {
	if err := s.writeJSON(ctx, domainauth.KeyUser, user); err != nil {
		return err
	}
	if err := s.writeJSON(ctx, domainauth.KeyAgency, agency); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := user
	s.user = &u
	s.agency = cloneAgency(agency)
	s.authenticated = true
	return nil
}

// SetAgency replaces the current agency after a switch.
func (s *State) SetAgency(ctx context.Context, agency domainauth.Agency) error {
	if err := s.writeJSON(ctx, domainauth.KeyAgency, agency); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agency = cloneAgency(&agency)
	return nil
}

// Logout clears the stored session and the in-memory identity.
// The in-memory state is reset even when the store cannot be cleared.
func (s *State) Logout(ctx context.Context) error {
	s.reset()
	if err := s.store.Delete(ctx, domainauth.SessionKeys()...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Restore loads the identity saved by an earlier process. A session is
// restored only when both tokens and the user snapshot are present.
func (s *State) Restore(ctx context.Context) (domainauth.Identity, error) {
	access, err := s.read(ctx, domainauth.KeyAccessToken)
	if err != nil {
		return domainauth.Identity{}, err
	}
	refresh, err := s.read(ctx, domainauth.KeyRefreshToken)
	if err != nil {
		return domainauth.Identity{}, err
	}
	rawUser, err := s.read(ctx, domainauth.KeyUser)
	if err != nil {
		return domainauth.Identity{}, err
	}

	if access == "" || refresh == "" || rawUser == "" {
		s.reset()
		return domainauth.Identity{}, nil
	}

	var user domainauth.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		s.logger.WarnContext(ctx, "stored user snapshot is unreadable", "error", err)
		s.reset()
		return domainauth.Identity{}, nil
	}

	var agency *domainauth.Agency
	if rawAgency, err := s.read(ctx, domainauth.KeyAgency); err == nil && rawAgency != "" && rawAgency != "null" {
		var a domainauth.Agency
		if err := json.Unmarshal([]byte(rawAgency), &a); err == nil {
			agency = &a
		}
	}

	s.mu.Lock()
	s.user = &user
	s.agency = agency
	s.authenticated = true
	s.mu.Unlock()

	return s.Snapshot(), nil
}

// Snapshot returns a copy of the current identity.
func (s *State) Snapshot() domainauth.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id := domainauth.Identity{IsAuthenticated: s.authenticated}
	if s.user != nil {
		u := *s.user
		id.User = &u
	}
	id.Agency = cloneAgency(s.agency)
	return id
}

// SessionInvalidated resets the in-memory identity; the client has already
// cleared the store.
func (s *State) SessionInvalidated(ctx context.Context, ev domainauth.SessionInvalidated) {
	s.logger.InfoContext(ctx, "session invalidated, clearing identity", "entry_point", ev.EntryPoint)
	s.reset()
}

func (s *State) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.agency = nil
	s.authenticated = false
}

func (s *State) read(ctx context.Context, key string) (string, error) {
	v, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return "", nil
	}
	return strings.TrimSpace(v), nil
}

func (s *State) writeJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.store.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func cloneAgency(a *domainauth.Agency) *domainauth.Agency {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
