package apiclient

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	domainauth "github.com/todoproduction/todo-client/internal/domain/auth"
)

// ErrNotAuthenticated is returned by the token source when no access token is stored.
var ErrNotAuthenticated = errors.New("not authenticated")

// expiryLeeway refreshes slightly before the exp claim so in-flight calls don't race it.
const expiryLeeway = 10 * time.Second

// TokenSource exposes the stored session as an oauth2.TokenSource, so
// oauth2-aware HTTP clients can call other services with the same bearer token.
// Tokens whose exp claim has passed are refreshed through Refresh first.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &storeTokenSource{ctx: ctx, client: c}
}

type storeTokenSource struct {
	ctx    context.Context
	client *Client
}

func (s *storeTokenSource) Token() (*oauth2.Token, error) {
	creds := domainauth.Credentials{
		AccessToken:  s.client.readToken(s.ctx, domainauth.KeyAccessToken),
		RefreshToken: s.client.readToken(s.ctx, domainauth.KeyRefreshToken),
	}
	if creds.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}

	tok := creds.OAuth2Token()
	if tok.Expiry.IsZero() || s.client.now().Add(expiryLeeway).Before(tok.Expiry) {
		return tok, nil
	}

	access, err := s.client.Refresh(s.ctx)
	if err != nil {
		return nil, err
	}
	creds.AccessToken = access
	creds.RefreshToken = s.client.readToken(s.ctx, domainauth.KeyRefreshToken)
	return creds.OAuth2Token(), nil
}
