// Package auth contains domain-level types for credentials, identity and the session lifecycle.
// It is pure and free of transport/storage concerns.
package auth

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Storage keys shared by every credential store backend.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
	KeyAgency       = "agency"
)

// SessionKeys lists every key a logout or invalidated session must clear.
func SessionKeys() []string {
	return []string{KeyAccessToken, KeyRefreshToken, KeyUser, KeyAgency}
}

// Credentials is the access/refresh token pair.
// Both present or both absent; a half-filled pair is treated as anonymous.
type Credentials struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

// Complete reports whether both tokens are present.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.AccessToken) != "" && strings.TrimSpace(c.RefreshToken) != ""
}

// OAuth2Token converts the pair into an oauth2.Token. Expiry comes from the
// access token's exp claim when it can be read.
func (c Credentials) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
	}
	if claims, err := ParseAccessClaims(c.AccessToken); err == nil {
		tok.Expiry = claims.ExpiresAt
	}
	return tok
}

// User is the authenticated user record returned by login, register and /users/me/.
type User struct {
	ID         int64  `json:"id"                  yaml:"id"`
	Email      string `json:"email"               yaml:"email"`
	Username   string `json:"username,omitempty"  yaml:"username,omitempty"`
	FirstName  string `json:"first_name"          yaml:"first_name"`
	LastName   string `json:"last_name"           yaml:"last_name"`
	FullName   string `json:"full_name,omitempty" yaml:"full_name,omitempty"`
	Avatar     string `json:"avatar,omitempty"    yaml:"avatar,omitempty"`
	Phone      string `json:"phone,omitempty"     yaml:"phone,omitempty"`
	RoleName   string `json:"role_name,omitempty" yaml:"role_name,omitempty"`
	IsActive   bool   `json:"is_active,omitempty" yaml:"is_active,omitempty"`
	DateJoined string `json:"date_joined,omitempty" yaml:"date_joined,omitempty"`
}

// DisplayName returns the full name, falling back to first/last name and then email.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Email
}

// Agency is the tenant the user is currently acting in.
type Agency struct {
	ID        int64  `json:"id"                   yaml:"id"`
	Name      string `json:"name"                 yaml:"name"`
	Slug      string `json:"slug,omitempty"       yaml:"slug,omitempty"`
	Plan      string `json:"plan,omitempty"       yaml:"plan,omitempty"`
	Role      string `json:"role,omitempty"       yaml:"role,omitempty"`
	IsOwner   bool   `json:"is_owner"             yaml:"is_owner"`
	IsCurrent bool   `json:"is_current,omitempty" yaml:"is_current,omitempty"`
	JoinedAt  string `json:"joined_at,omitempty"  yaml:"joined_at,omitempty"`
}

// Identity is the in-memory view of who is logged in.
// It is set only by login, registration or agency switch and cleared by logout or invalidation.
type Identity struct {
	User            *User   `json:"user"             yaml:"user"`
	Agency          *Agency `json:"agency"           yaml:"agency"`
	IsAuthenticated bool    `json:"is_authenticated" yaml:"is_authenticated"`
}

// SessionInvalidated is emitted once when the refresh protocol cannot recover a session.
// The presentation layer reacts by sending the user to EntryPoint.
type SessionInvalidated struct {
	EntryPoint string
	Reason     error
	OccurredAt time.Time
}
