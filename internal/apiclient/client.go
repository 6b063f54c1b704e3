// Package apiclient is the authenticated HTTP client for the Todo Production API.
//
// Every request carries the stored access token as a bearer credential. A 401
// triggers one refresh through the refresh endpoint followed by one retry; if the
// refresh fails the stored session is cleared and a SessionInvalidated event is
// sent to the configured listener.
package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"

	domainauth "github.com/todoproduction/todo-client/internal/domain/auth"
	apperrors "github.com/todoproduction/todo-client/internal/errors"
	"github.com/todoproduction/todo-client/internal/observability/metrics"
	"github.com/todoproduction/todo-client/internal/observability/statsd"
	"github.com/todoproduction/todo-client/internal/ports"
)

// Defaults applied by New when the matching option is empty.
const (
	DefaultBaseURL     = "http://localhost:8000/api"
	DefaultRefreshPath = "/auth/refresh/"
	DefaultEntryPoint  = "/"
	DefaultTimeout     = 30 * time.Second

	maxBodyBytes = 10 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL string
	// Store holds the session credentials. Required.
	Store ports.CredentialStore
	// Listener is told when a session is invalidated. Optional.
	Listener ports.SessionListener
	// HTTPClient is used as-is apart from its transport, which gets wrapped
	// with header decoration. Nil builds a client with Timeout and a cookie jar.
	HTTPClient  *http.Client
	Timeout     time.Duration
	Logger      *slog.Logger
	Metrics     statsd.Sink
	RefreshPath string
	EntryPoint  string
	UserAgent   string
	// Now is used for event timestamps; tests may override it.
	Now func() time.Time
}

// Client issues authenticated API calls. It is safe for concurrent use.
type Client struct {
	baseURL     *url.URL
	store       ports.CredentialStore
	listener    ports.SessionListener
	http        *http.Client
	logger      *slog.Logger
	metrics     statsd.Sink
	refreshPath string
	entryPoint  string
	now         func() time.Time

	flight singleflight.Group

	// inflight counts callers whose refresh exchange has not delivered its
	// result yet. closed stops new refreshes once Close starts waiting.
	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	if opts.Store == nil {
		return nil, apperrors.Internal("apiclient: credential store is required")
	}

	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "apiclient: invalid base url %q", raw)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, apperrors.Internal(fmt.Sprintf("apiclient: base url %q must be http or https", raw))
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hc, err := buildHTTPClient(opts)
	if err != nil {
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL:     base,
		store:       opts.Store,
		listener:    opts.Listener,
		http:        hc,
		logger:      logger.With("component", "apiclient"),
		metrics:     opts.Metrics,
		refreshPath: fallback(opts.RefreshPath, DefaultRefreshPath),
		entryPoint:  fallback(opts.EntryPoint, DefaultEntryPoint),
		now:         now,
	}, nil
}

func buildHTTPClient(opts Options) (*http.Client, error) {
	var hc http.Client
	if opts.HTTPClient != nil {
		hc = *opts.HTTPClient
	} else {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "apiclient: cookie jar")
		}
		hc.Jar = jar
		hc.Timeout = opts.Timeout
		if hc.Timeout <= 0 {
			hc.Timeout = DefaultTimeout
		}
	}
	hc.Transport = newDecoratingTransport(hc.Transport, strings.TrimSpace(opts.UserAgent))
	return &hc, nil
}

func fallback(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}

// BaseURL returns the API root every request path is joined to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Store returns the credential store the client reads tokens from.
func (c *Client) Store() ports.CredentialStore {
	return c.store
}

// Do sends req and returns its 2xx response. Non-2xx answers come back as
// *errors.AppError values carrying the status and body.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, status, retried, err := c.do(ctx, req)

	metrics.EmitRequest(c.metrics, metrics.RequestMetric{
		Method:   req.method(),
		Status:   status,
		Retried:  retried,
		Duration: time.Since(start),
		Err:      err,
	})
	return resp, err
}

// do runs the outbound path, the 401 recovery and the single retry.
func (c *Client) do(ctx context.Context, req Request) (*Response, int, bool, error) {
	token := ""
	if !req.Anonymous {
		token = c.readToken(ctx, domainauth.KeyAccessToken)
	}

	resp, err := c.send(ctx, req, token, 0)
	if err == nil || req.Anonymous || req.NoRefresh || !apperrors.IsUnauthorized(err) {
		return resp, statusOf(resp, err), false, err
	}

	retryToken, err := c.tokenForRetry(ctx, token)
	if err != nil {
		return nil, http.StatusUnauthorized, false, err
	}

	resp, err = c.send(ctx, req, retryToken, 1)
	return resp, statusOf(resp, err), true, err
}

// tokenForRetry returns the access token the retry should use. When another
// caller already replaced the token this request was sent with, the stored
// token is reused instead of refreshing again.
func (c *Client) tokenForRetry(ctx context.Context, sent string) (string, error) {
	if stored := c.readToken(ctx, domainauth.KeyAccessToken); stored != "" && stored != sent {
		c.logger.DebugContext(ctx, "access token replaced by a concurrent refresh, retrying")
		return stored, nil
	}
	return c.Refresh(ctx)
}

// send performs one HTTP exchange. attempt is 0 for the original call and 1 for the retry.
func (c *Client) send(ctx context.Context, req Request, token string, attempt int) (*Response, error) {
	method := req.method()
	httpReq, err := c.newHTTPRequest(ctx, req, token)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperrors.MapContextError(apperrors.Transport(err, method, req.Path))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, apperrors.MapContextError(apperrors.Transport(err, method, req.Path))
	}

	c.logger.DebugContext(ctx, "api call",
		"method", method,
		"path", req.Path,
		"status", httpResp.StatusCode,
		"attempt", attempt,
	)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, apperrors.FromStatus(method, req.Path, httpResp.StatusCode, body)
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request, token string) (*http.Request, error) {
	u, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method(), u, body)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "build %s %s", req.method(), req.Path)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

// resolve joins path onto the base URL, keeping the base path prefix.
func (c *Client) resolve(path string, query url.Values) (string, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrCodeValidation, "invalid path %q", path)
	}
	if rel.IsAbs() || rel.Host != "" {
		return "", apperrors.Validation(fmt.Sprintf("path %q must be relative to the base url", path))
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(rel.Path, "/")
	u.RawPath = ""
	q := rel.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// readToken returns the stored value for key, or "" when it is missing or the
// store cannot be read. A broken store must not fail the request.
func (c *Client) readToken(ctx context.Context, key string) string {
	v, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "credential store read failed, continuing without token",
			"key", key, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func statusOf(resp *Response, err error) int {
	if resp != nil {
		return resp.StatusCode
	}
	return apperrors.GetStatus(err)
}
