//revive:disable-next-line:var-naming // package name mirrors the API resource layer
package model

import (
	"errors"
	"net/mail"
	"strings"
)

// TeamMember is one row of GET /users/team/.
type TeamMember struct {
	ID       int64  `json:"id"                  yaml:"id"`
	Name     string `json:"name"                yaml:"name"`
	Email    string `json:"email"               yaml:"email"`
	Avatar   string `json:"avatar,omitempty"    yaml:"avatar,omitempty"`
	Phone    string `json:"phone,omitempty"     yaml:"phone,omitempty"`
	Role     string `json:"role"                yaml:"role"`
	IsOwner  bool   `json:"is_owner"            yaml:"is_owner"`
	JoinedAt string `json:"joined_at,omitempty" yaml:"joined_at,omitempty"`
}

// Team is the envelope returned by GET /users/team/.
type Team struct {
	Count   int          `json:"count"        yaml:"count"`
	Members []TeamMember `json:"team_members" yaml:"team_members"`
}

// InviteRequest is the payload for POST /users/invite/.
type InviteRequest struct {
	Email  string `json:"email"`
	RoleID *int64 `json:"role_id,omitempty"`
}

// Normalize trims and lowercases the email.
func (r *InviteRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// Validate checks the invite before it is sent.
func (r *InviteRequest) Validate() error {
	if r.Email == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return errors.New("email is not a valid address")
	}
	if r.RoleID != nil && *r.RoleID <= 0 {
		return errors.New("role_id must be positive")
	}
	return nil
}

// InviteResult is the API response to an invitation.
// An already-member invite answers 200 with only Message set.
type InviteResult struct {
	Message        string `json:"message"                    yaml:"message"`
	CreatedNewUser bool   `json:"created_new_user,omitempty" yaml:"created_new_user,omitempty"`
	UserID         int64  `json:"user_id,omitempty"          yaml:"user_id,omitempty"`
	AlreadyMember  bool   `json:"-"                          yaml:"already_member"`
}

// HealthStatus is GET /health/.
type HealthStatus struct {
	Status   string `json:"status"   yaml:"status"`
	Database string `json:"database" yaml:"database"`
	Cache    string `json:"cache"    yaml:"cache"`
}

// Healthy reports whether the API considers itself healthy.
func (h HealthStatus) Healthy() bool {
	return h.Status == "healthy"
}
