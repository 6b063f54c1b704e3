package apiclient

import (
	"net/http"

	"github.com/google/uuid"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "todo-client/1.0"

// HeaderRequestID carries a per-attempt correlation id.
const HeaderRequestID = "X-Request-ID"

// decoratingTransport adds JSON content negotiation, a user agent and a
// request id to every outbound request. Headers already set are kept.
type decoratingTransport struct {
	base      http.RoundTripper
	userAgent string
}

func newDecoratingTransport(base http.RoundTripper, userAgent string) *decoratingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &decoratingTransport{base: base, userAgent: userAgent}
}

func (t *decoratingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	setDefault(r.Header, "Accept", "application/json")
	setDefault(r.Header, "Content-Type", "application/json")
	setDefault(r.Header, "User-Agent", t.userAgent)
	setDefault(r.Header, HeaderRequestID, uuid.NewString())
	return t.base.RoundTrip(r)
}

func setDefault(h http.Header, key, value string) {
	if h.Get(key) == "" {
		h.Set(key, value)
	}
}
