package auth

import (
	"errors"
	"net/mail"
	"strings"
)

// LoginRequest is the payload for POST /auth/login/.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the request before any network call.
func (r LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return errors.New("email and password are required")
	}
	return nil
}

// RegisterRequest is the payload for POST /auth/register/.
type RegisterRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	AgencyName string `json:"agency_name"`
}

// Normalize trims whitespace from text fields in place.
func (r *RegisterRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.AgencyName = strings.TrimSpace(r.AgencyName)
}

// Validate checks the request before any network call.
func (r RegisterRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return errors.New("email and password are required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return errors.New("email is not a valid address")
	}
	if r.AgencyName == "" {
		return errors.New("agency name is required")
	}
	return nil
}

// AuthResponse is returned by login and register. Register may omit tokens and agency.
type AuthResponse struct {
	Message string       `json:"message,omitempty" yaml:"message,omitempty"`
	User    *User        `json:"user"              yaml:"user"`
	Agency  *Agency      `json:"agency"            yaml:"agency"`
	Tokens  *Credentials `json:"tokens,omitempty"  yaml:"-"`
}

// RefreshRequest is the payload for POST /auth/refresh/ and /auth/logout/.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshResponse is returned by POST /auth/refresh/.
// Refresh is only set when the server rotates refresh tokens.
type RefreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// SwitchAgencyRequest is the payload for POST /auth/switch-agency/.
type SwitchAgencyRequest struct {
	AgencyID int64 `json:"agency_id"`
}

// SwitchAgencyResponse is returned by POST /auth/switch-agency/.
type SwitchAgencyResponse struct {
	Message string `json:"message" yaml:"message"`
	Agency  Agency `json:"agency"  yaml:"agency"`
}

// AgencyList is returned by GET /auth/my-agencies/.
type AgencyList struct {
	Count    int      `json:"count"    yaml:"count"`
	Agencies []Agency `json:"agencies" yaml:"agencies"`
}
