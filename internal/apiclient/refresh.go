package apiclient

import (
	"context"
	"errors"
	"net/http"
	"strings"

	domainauth "github.com/todoproduction/todo-client/internal/domain/auth"
	apperrors "github.com/todoproduction/todo-client/internal/errors"
	"github.com/todoproduction/todo-client/internal/observability/metrics"
)

var (
	// ErrNoRefreshToken is the cause of an invalidation when no refresh token is stored.
	ErrNoRefreshToken = errors.New("refresh token not found")
	// ErrClientClosed is returned by Refresh after Close.
	ErrClientClosed = apperrors.Internal("apiclient: client closed")
)

// Refresh exchanges the stored refresh token for a new access token and persists it.
//
// Concurrent callers holding the same refresh token share one call to the refresh
// endpoint. If the exchange fails, the session is cleared, the listener is told once,
// and the returned error has code session_invalidated. A caller whose own context
// ends while waiting gets a timeout or canceled error and the session is left alone.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	if !c.track() {
		return "", ErrClientClosed
	}
	refreshToken := c.readToken(ctx, domainauth.KeyRefreshToken)

	// The exchange outlives any single waiter so one caller giving up does not
	// cancel the refresh the others are waiting on.
	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(refreshToken, func() (any, error) {
		return c.exchange(detached, refreshToken)
	})

	select {
	case <-ctx.Done():
		// Close must still wait for the exchange this caller started or joined.
		go func() {
			<-ch
			c.inflight.Done()
		}()
		err := apperrors.MapContextError(ctx.Err())
		metrics.EmitRefresh(c.metrics, err, false)
		return "", err
	case res := <-ch:
		c.inflight.Done()
		metrics.EmitRefresh(c.metrics, res.Err, res.Shared)
		if res.Err != nil {
			return "", res.Err
		}
		token, _ := res.Val.(string)
		return token, nil
	}
}

// track registers a refresh caller unless the client is closed.
func (c *Client) track() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.inflight.Add(1)
	return true
}

// Close stops new refreshes and blocks until every running refresh has
// persisted its outcome and notified the listener. Call it before closing the
// credential store. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.inflight.Wait()
	return nil
}

// exchange runs inside the singleflight group: one call per refresh token at a time.
// Callers without a refresh token share the empty key, so they also invalidate once.
func (c *Client) exchange(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", c.invalidate(ctx, ErrNoRefreshToken)
	}

	req, err := NewJSONRequest(http.MethodPost, c.refreshPath, domainauth.RefreshRequest{Refresh: refreshToken})
	if err != nil {
		return "", c.invalidate(ctx, err)
	}

	// The refresh call carries no bearer token and is never itself retried.
	resp, err := c.send(ctx, req.AsAnonymous(), "", 0)
	if err != nil {
		return "", c.invalidate(ctx, err)
	}

	var out domainauth.RefreshResponse
	if err := resp.Decode(&out); err != nil {
		return "", c.invalidate(ctx, err)
	}
	access := strings.TrimSpace(out.Access)
	if access == "" {
		return "", c.invalidate(ctx, apperrors.Decode(errors.New("missing access token"), "refresh response"))
	}

	// Persist before the retry is sent. A failed write is logged: the retry still
	// carries the new token and the next refresh will try again.
	if err := c.store.Set(ctx, domainauth.KeyAccessToken, access); err != nil {
		c.logger.WarnContext(ctx, "persisting refreshed access token failed", "error", err)
	}
	if rotated := strings.TrimSpace(out.Refresh); rotated != "" && rotated != refreshToken {
		if err := c.store.Set(ctx, domainauth.KeyRefreshToken, rotated); err != nil {
			c.logger.WarnContext(ctx, "persisting rotated refresh token failed", "error", err)
		}
	}

	c.logger.InfoContext(ctx, "access token refreshed", "rotated", out.Refresh != "")
	return access, nil
}

// invalidate clears every session key, notifies the listener and returns the
// session_invalidated error wrapping cause.
func (c *Client) invalidate(ctx context.Context, cause error) error {
	ctx = context.WithoutCancel(ctx)

	if err := c.store.Delete(ctx, domainauth.SessionKeys()...); err != nil {
		c.logger.ErrorContext(ctx, "clearing session after failed refresh", "error", err)
	}

	c.logger.WarnContext(ctx, "session invalidated", "entry_point", c.entryPoint, "reason", cause)
	metrics.EmitSessionInvalidated(c.metrics)

	if c.listener != nil {
		c.listener.SessionInvalidated(ctx, domainauth.SessionInvalidated{
			EntryPoint: c.entryPoint,
			Reason:     cause,
			OccurredAt: c.now(),
		})
	}
	return apperrors.SessionInvalidated(cause)
}
