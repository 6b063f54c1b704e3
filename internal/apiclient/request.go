package apiclient

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/todoproduction/todo-client/internal/errors"
)

// Request describes one API call. It is a value: the client never modifies it,
// so the same Request can be replayed after a token refresh.
type Request struct {
	Method string
	// Path is relative to the client's base URL, e.g. "/projects/".
	Path   string
	Query  url.Values
	Body   []byte
	Header http.Header
	// Anonymous requests carry no bearer token and a 401 is returned as-is
	// instead of starting the refresh protocol (login, register).
	Anonymous bool
	// NoRefresh requests carry the bearer token but a 401 is returned as-is
	// (logout, where refreshing only to revoke would end the session twice).
	NoRefresh bool
}

// NewJSONRequest encodes in as the request body. A nil in produces no body.
func NewJSONRequest(method, path string, in any) (Request, error) {
	req := Request{Method: method, Path: path}
	if in == nil {
		return req, nil
	}
	body, err := json.Marshal(in)
	if err != nil {
		return Request{}, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "encode %s %s body", method, path)
	}
	req.Body = body
	return req, nil
}

// WithQuery returns a copy of r with q as its query string.
func (r Request) WithQuery(q url.Values) Request {
	r.Query = q
	return r
}

// AsAnonymous returns a copy of r marked as anonymous.
func (r Request) AsAnonymous() Request {
	r.Anonymous = true
	return r
}

// WithoutRefresh returns a copy of r whose 401 does not start a refresh.
func (r Request) WithoutRefresh() Request {
	r.NoRefresh = true
	return r
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// Response is a fully read 2xx API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if r == nil || v == nil || len(strings.TrimSpace(string(r.Body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return apperrors.Decode(err, "response body")
	}
	return nil
}
