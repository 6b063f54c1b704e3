// Package ports defines interfaces (hexagonal ports) for credential storage and session signalling.
// Implementations live in internal/adapters; orchestration in internal/apiclient and internal/service.
package ports

import (
	"context"

	domainauth "github.com/todoproduction/todo-client/internal/domain/auth"
)

// CredentialStore is durable key/value storage for session credentials and identity snapshots.
// Writes are last-write-wins; there is no cross-key transaction.
type CredentialStore interface {
	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set overwrites the value for key.
	Set(ctx context.Context, key, value string) error
	// Delete removes every listed key; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// SessionListener is notified when the client gives up on a session.
type SessionListener interface {
	SessionInvalidated(ctx context.Context, ev domainauth.SessionInvalidated)
}

// SessionListenerFunc adapts a function to the SessionListener interface.
type SessionListenerFunc func(ctx context.Context, ev domainauth.SessionInvalidated)

// SessionInvalidated implements SessionListener.
func (f SessionListenerFunc) SessionInvalidated(ctx context.Context, ev domainauth.SessionInvalidated) {
	if f == nil {
		return
	}
	f(ctx, ev)
}

// SessionListeners fans one event out to several listeners in order.
type SessionListeners []SessionListener

// SessionInvalidated implements SessionListener.
func (ls SessionListeners) SessionInvalidated(ctx context.Context, ev domainauth.SessionInvalidated) {
	for _, l := range ls {
		if l != nil {
			l.SessionInvalidated(ctx, ev)
		}
	}
}
