package config

import (
	"strings"
	"time"
)

const (
	defaultAPIBaseURL = "http://localhost:8000/api"
	defaultAPITimeout = 30 * time.Second
)

// APIConfig controls how the client reaches the Todo Production API.
type APIConfig struct {
	// BaseURL is the API root, e.g. "https://api.example.com/api".
	BaseURL string `env:"TODO_API_URL"`

	// PublicBaseURL is read from NEXT_PUBLIC_API_URL so a frontend .env file
	// can be shared. TODO_API_URL wins when both are set.
	PublicBaseURL string `env:"NEXT_PUBLIC_API_URL"`

	// Timeout bounds every HTTP round trip, including the refresh call.
	Timeout time.Duration `env:"TODO_API_TIMEOUT" envDefault:"30s"`

	// UserAgent overrides the default User-Agent header.
	UserAgent string `env:"TODO_API_USER_AGENT"`

	// RefreshPath is the token refresh endpoint relative to BaseURL.
	RefreshPath string `env:"TODO_API_REFRESH_PATH" envDefault:"/auth/refresh/"`

	// EntryPoint is where an invalidated session sends the user.
	EntryPoint string `env:"TODO_API_ENTRY_POINT" envDefault:"/"`
}

// Sanitize resolves the base URL fallback chain and clamps the timeout.
func (c *APIConfig) Sanitize() {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.PublicBaseURL = strings.TrimSpace(c.PublicBaseURL)
	if c.BaseURL == "" {
		c.BaseURL = c.PublicBaseURL
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultAPIBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if c.Timeout <= 0 {
		c.Timeout = defaultAPITimeout
	}

	c.UserAgent = strings.TrimSpace(c.UserAgent)
	if c.RefreshPath = strings.TrimSpace(c.RefreshPath); c.RefreshPath == "" {
		c.RefreshPath = "/auth/refresh/"
	}
	if c.EntryPoint = strings.TrimSpace(c.EntryPoint); c.EntryPoint == "" {
		c.EntryPoint = "/"
	}
}
