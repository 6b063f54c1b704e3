package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the subset of SimpleJWT access token claims the client reads.
// Signatures are not verified here; the API remains the authority on validity.
type AccessClaims struct {
	UserID    string
	TokenType string
	TokenID   string
	ExpiresAt time.Time
}

type simpleJWTClaims struct {
	UserID    any    `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// ParseAccessClaims decodes the claims of a JWT access token without verifying it.
func ParseAccessClaims(token string) (AccessClaims, error) {
	if token == "" {
		return AccessClaims{}, errors.New("empty token")
	}

	var claims simpleJWTClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return AccessClaims{}, fmt.Errorf("parse access token: %w", err)
	}

	out := AccessClaims{
		TokenType: claims.TokenType,
		TokenID:   claims.ID,
	}
	switch v := claims.UserID.(type) {
	case string:
		out.UserID = v
	case float64:
		out.UserID = fmt.Sprintf("%.0f", v)
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// Expired reports whether the claims carry an expiry that is already in the past.
func (c AccessClaims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}
