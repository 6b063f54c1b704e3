package apiclient_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memstore "github.com/todoproduction/todo-client/internal/adapters/memory"
	"github.com/todoproduction/todo-client/internal/apiclient"
	domainauth "github.com/todoproduction/todo-client/internal/domain/auth"
	apperrors "github.com/todoproduction/todo-client/internal/errors"
	mockauth "github.com/todoproduction/todo-client/internal/mocks/auth"
	"github.com/todoproduction/todo-client/internal/observability/metrics"
	"github.com/todoproduction/todo-client/internal/observability/statsd"
	"github.com/todoproduction/todo-client/internal/ports"
	"github.com/todoproduction/todo-client/internal/testutil"
)

type harness struct {
	client   *apiclient.Client
	store    ports.CredentialStore
	listener *mockauth.RecordingListener
	metrics  *statsd.Recorder
}

func newHarness(t *testing.T, baseURL string, store ports.CredentialStore) *harness {
	t.Helper()
	if store == nil {
		store = memstore.NewCredentialStore()
	}
	h := &harness{
		store:    store,
		listener: &mockauth.RecordingListener{},
		metrics:  &statsd.Recorder{},
	}
	client, err := apiclient.New(apiclient.Options{
		BaseURL:   baseURL,
		Store:     store,
		Listener:  h.listener,
		Metrics:   h.metrics,
		UserAgent: "todo-test/1",
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	h.client = client
	return h
}

func seed(t *testing.T, store ports.CredentialStore, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		require.NoError(t, store.Set(context.Background(), k, v))
	}
}

func stored(t *testing.T, store ports.CredentialStore, key string) (string, bool) {
	t.Helper()
	v, ok, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	return v, ok
}

func loginAndExpire(t *testing.T, api *testutil.FakeAPI, h *harness) domainauth.Credentials {
	t.Helper()
	creds := api.IssueTokens(testutil.FakeEmail)
	seed(t, h.store, map[string]string{
		domainauth.KeyAccessToken:  creds.AccessToken,
		domainauth.KeyRefreshToken: creds.RefreshToken,
		domainauth.KeyUser:         `{"id":1}`,
		domainauth.KeyAgency:       `{"id":10}`,
	})
	api.ExpireAccess(creds.AccessToken)
	return creds
}

func TestNew_Validation(t *testing.T) {
	_, err := apiclient.New(apiclient.Options{BaseURL: "http://x"})
	require.Error(t, err)

	_, err = apiclient.New(apiclient.Options{BaseURL: "ftp://x", Store: memstore.NewCredentialStore()})
	require.Error(t, err)

	c, err := apiclient.New(apiclient.Options{Store: memstore.NewCredentialStore()})
	require.NoError(t, err)
	assert.Equal(t, apiclient.DefaultBaseURL, c.BaseURL())
}

func TestDo_AttachesBearerToken(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	h := newHarness(t, api.BaseURL(), nil)
	creds := api.IssueTokens(testutil.FakeEmail)
	seed(t, h.store, map[string]string{domainauth.KeyAccessToken: creds.AccessToken})

	var me struct {
		Email string `json:"email"`
	}
	require.NoError(t, h.client.GetJSON(context.Background(), "/users/me/", &me))
	assert.Equal(t, testutil.FakeEmail, me.Email)

	reqs := api.RequestsTo("/users/me/")
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer "+creds.AccessToken, reqs[0].Authorization)
	assert.Equal(t, "todo-test/1", reqs[0].UserAgent)
	assert.NotEmpty(t, reqs[0].RequestID)
}

func TestDo_NoTokenStillTransmits(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	h := newHarness(t, api.BaseURL(), nil)

	var health map[string]string
	require.NoError(t, h.client.GetJSON(context.Background(), "/health/", &health))
	assert.Equal(t, "healthy", health["status"])

	reqs := api.RequestsTo("/health/")
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Authorization)
}

func TestDo_StoreReadFailureIsNotFatal(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	store := &mockauth.FlakyStore{FailGet: true}
	h := newHarness(t, api.BaseURL(), store)

	require.NoError(t, h.client.GetJSON(context.Background(), "/health/", nil))
	reqs := api.RequestsTo("/health/")
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Authorization)
}

func TestDo_RefreshAndRetryScenario(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	h := newHarness(t, api.BaseURL(), nil)
	ctx := context.Background()

	// Login returns A1/R1.
	login, err := apiclient.NewJSONRequest(http.MethodPost, "/auth/login/",
		domainauth.LoginRequest{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)
	resp, err := h.client.Do(ctx, login.AsAnonymous())
	require.NoError(t, err)
	var auth domainauth.AuthResponse
	require.NoError(t, resp.Decode(&auth))
	require.NotNil(t, auth.Tokens)
	assert.Equal(t, domainauth.Credentials{AccessToken: "A1", RefreshToken: "R1"}, *auth.Tokens)
	seed(t, h.store, map[string]string{
		domainauth.KeyAccessToken:  auth.Tokens.AccessToken,
		domainauth.KeyRefreshToken: auth.Tokens.RefreshToken,
	})

	// A1 expires; the next call is refreshed with R1 and retried with A2.
	api.ExpireAccess("A1")
	require.NoError(t, h.client.GetJSON(ctx, "/users/me/", nil))

	reqs := api.RequestsTo("/users/me/")
	require.Len(t, reqs, 2)
	assert.Equal(t, "Bearer A1", reqs[0].Authorization)
	assert.Equal(t, "Bearer A2", reqs[1].Authorization)

	refreshReqs := api.RequestsTo("/auth/refresh/")
	require.Len(t, refreshReqs, 1)
	assert.Empty(t, refreshReqs[0].Authorization)
	assert.JSONEq(t, `{"refresh":"R1"}`, refreshReqs[0].Body)

	access, _ := stored(t, h.store, domainauth.KeyAccessToken)
	refresh, _ := stored(t, h.store, domainauth.KeyRefreshToken)
	assert.Equal(t, "A2", access)
	assert.Equal(t, "R1", refresh)
	assert.Zero(t, h.listener.Count())
}

func TestDo_PersistsTokenBeforeRetry(t *testing.T) {
	store := memstore.NewCredentialStore()
	var persistedBeforeRetry atomic.Bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/auth/refresh/":
			_, _ = io.WriteString(w, `{"access":"A2"}`)
		case r.Header.Get("Authorization") == "Bearer A2":
			v, _, _ := store.Get(r.Context(), domainauth.KeyAccessToken)
			persistedBeforeRetry.Store(v == "A2")
			_, _ = io.WriteString(w, `{"ok":true}`)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	h := newHarness(t, srv.URL+"/api", store)
	seed(t, store, map[string]string{
		domainauth.KeyAccessToken:  "A1",
		domainauth.KeyRefreshToken: "R1",
	})

	require.NoError(t, h.client.GetJSON(context.Background(), "/things/", nil))
	assert.True(t, persistedBeforeRetry.Load())
}

func TestDo_RetryReplaysBody(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	h := newHarness(t, api.BaseURL(), nil)
	loginAndExpire(t, api, h)

	var created struct {
		Title string `json:"title"`
	}
	require.NoError(t, h.client.PostJSON(context.Background(), "/projects/",
		map[string]string{"title": "Night Shoot"}, &created))
	assert.Equal(t, "Night Shoot", created.Title)

	posts := api.RequestsTo("/projects/")
	require.Len(t, posts, 2)
	assert.JSONEq(t, `{"title":"Night Shoot"}`, posts[0].Body)
	assert.Equal(t, posts[0].Body, posts[1].Body)
	assert.NotEqual(t, posts[0].RequestID, posts[1].RequestID)
}

func TestDo_RefreshFailureInvalidatesSession(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	h := newHarness(t, api.BaseURL(), nil)
	creds := loginAndExpire(t, api, h)
	api.ExpireRefresh(creds.RefreshToken)
	require.NoError(t, h.store.Set(context.Background(), "unrelated", "keep"))

	err := h.client.GetJSON(context.Background(), "/users/me/", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsSessionInvalidated(err))
	assert.Equal(t, http.StatusUnauthorized, apperrors.GetStatus(errors.Unwrap(err)))

	for _, k := range domainauth.SessionKeys() {
		_, ok := stored(t, h.store, k)
		assert.False(t, ok, "key %s should be cleared", k)
	}
	_, ok := stored(t, h.store, "unrelated")
	assert.True(t, ok)

	events := h.listener.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "/", events[0].EntryPoint)
	assert.Error(t, events[0].Reason)

	assert.Len(t, api.RequestsTo("/auth/refresh/"), 1)
	assert.Len(t, api.RequestsTo("/users/me/"), 1, "original request must not be retried")
	assert.Equal(t, int64(1), h.metrics.Total(metrics.MetricSessionInvalidated))
}

func TestDo_MissingRefreshTokenInvalidatesSession(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	h := newHarness(t, api.BaseURL(), nil)
	seed(t, h.store, map[string]string{
		domainauth.KeyAccessToken: "stale",
		domainauth.KeyUser:        `{"id":1}`,
	})

	err := h.client.GetJSON(context.Background(), "/users/me/", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsSessionInvalidated(err))
	assert.ErrorIs(t, err, apiclient.ErrNoRefreshToken)

	assert.Empty(t, api.RequestsTo("/auth/refresh/"))
	assert.Equal(t, 1, h.listener.Count())
	_, ok := stored(t, h.store, domainauth.KeyUser)
	assert.False(t, ok)
}

func TestDo_RetryUnauthorizedDoesNotRefreshAgain(t *testing.T) {
	store := memstore.NewCredentialStore()
	var refreshCalls, protectedCalls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/refresh/" {
			refreshCalls.Add(1)
			_, _ = io.WriteString(w, `{"access":"A2"}`)
			return
		}
		protectedCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"still no"}`)
	}))
	defer srv.Close()

	h := newHarness(t, srv.URL+"/api", store)
	seed(t, store, map[string]string{
		domainauth.KeyAccessToken:  "A1",
		domainauth.KeyRefreshToken: "R1",
	})

	err := h.client.GetJSON(context.Background(), "/things/", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
	assert.False(t, apperrors.IsSessionInvalidated(err))
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, int32(2), protectedCalls.Load())
	assert.Zero(t, h.listener.Count())

	access, _ := stored(t, store, domainauth.KeyAccessToken)
	assert.Equal(t, "A2", access)
}

func TestDo_NonAuthErrorsPassThrough(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	h := newHarness(t, api.BaseURL(), nil)
	creds := api.IssueTokens(testutil.FakeEmail)
	seed(t, h.store, map[string]string{domainauth.KeyAccessToken: creds.AccessToken})

	err := h.client.GetJSON(context.Background(), "/projects/999/", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, apperrors.GetStatus(err))
	assert.JSONEq(t, `{"detail":"Not found."}`, string(apperrors.GetBody(err)))
	assert.Empty(t, api.RequestsTo("/auth/refresh/"))
}

func TestDo_AnonymousUnauthorizedSkipsRefresh(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	h := newHarness(t, api.BaseURL(), nil)
	seed(t, h.store, map[string]string{domainauth.KeyAccessToken: "A-old"})

	req, err := apiclient.NewJSONRequest(http.MethodPost, "/auth/login/",
		domainauth.LoginRequest{Email: "a@b.com", Password: "wrong"})
	require.NoError(t, err)

	_, err = h.client.Do(context.Background(), req.AsAnonymous())
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
	assert.Equal(t, "Invalid email or password", apiclient.UserMessage(err, "generic"))

	assert.Empty(t, api.RequestsTo("/auth/refresh/"))
	assert.Empty(t, api.RequestsTo("/auth/login/")[0].Authorization)
	assert.Zero(t, h.listener.Count())
	_, ok := stored(t, h.store, domainauth.KeyAccessToken)
	assert.True(t, ok)
}

func TestDo_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.SetRefreshDelay(100 * time.Millisecond)
	h := newHarness(t, api.BaseURL(), nil)
	loginAndExpire(t, api, h)

	const n = 8
	funcs := make([]func() error, n)
	for i := range funcs {
		funcs[i] = func() error {
			return h.client.GetJSON(context.Background(), "/users/me/", nil)
		}
	}
	testutil.AssertNoErrors(t, testutil.RunConcurrent(funcs...))

	assert.Equal(t, 1, api.RefreshCalls())
	access, _ := stored(t, h.store, domainauth.KeyAccessToken)
	assert.Equal(t, "A2", access)
	assert.Zero(t, h.listener.Count())
}

func TestDo_RotatedRefreshTokenIsPersisted(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.SetRotateRefresh(true)
	h := newHarness(t, api.BaseURL(), nil)
	creds := loginAndExpire(t, api, h)

	require.NoError(t, h.client.GetJSON(context.Background(), "/users/me/", nil))

	refresh, _ := stored(t, h.store, domainauth.KeyRefreshToken)
	assert.NotEqual(t, creds.RefreshToken, refresh)
	assert.True(t, api.Blacklisted(creds.RefreshToken))
}

func TestDo_CanceledWhileRefreshingKeepsSession(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.SetRefreshDelay(300 * time.Millisecond)
	h := newHarness(t, api.BaseURL(), nil)
	loginAndExpire(t, api, h)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := h.client.GetJSON(ctx, "/users/me/", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsTimeout(err))
	assert.False(t, apperrors.IsSessionInvalidated(err))

	// The detached refresh still completes and stores the new token.
	require.Eventually(t, func() bool {
		v, _ := stored(t, h.store, domainauth.KeyAccessToken)
		return v == "A2"
	}, 2*time.Second, 20*time.Millisecond)
	assert.Zero(t, h.listener.Count())
}

func TestDo_WithoutRefreshReturnsUnauthorized(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	h := newHarness(t, api.BaseURL(), nil)
	creds := loginAndExpire(t, api, h)

	req, err := apiclient.NewJSONRequest(http.MethodPost, "/auth/logout/",
		domainauth.RefreshRequest{Refresh: creds.RefreshToken})
	require.NoError(t, err)

	_, err = h.client.Do(context.Background(), req.WithoutRefresh())
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
	assert.Zero(t, api.RefreshCalls())
	assert.Zero(t, h.listener.Count())
	assert.False(t, req.NoRefresh, "original request must not be modified")

	reqs := api.RequestsTo("/auth/logout/")
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer "+creds.AccessToken, reqs[0].Authorization)
	refresh, ok := stored(t, h.store, domainauth.KeyRefreshToken)
	assert.True(t, ok)
	assert.Equal(t, creds.RefreshToken, refresh)
}

func TestClose_WaitsForDetachedRefresh(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.SetRefreshDelay(300 * time.Millisecond)
	h := newHarness(t, api.BaseURL(), nil)
	loginAndExpire(t, api, h)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := h.client.GetJSON(ctx, "/users/me/", nil)
	require.True(t, apperrors.IsTimeout(err))

	require.NoError(t, h.client.Close())

	access, _ := stored(t, h.store, domainauth.KeyAccessToken)
	assert.Equal(t, "A2", access, "Close returned before the refresh was persisted")
	assert.Equal(t, 1, api.RefreshCalls())
}

func TestClose_WaitsForFailedRefreshNotification(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.SetRefreshDelay(200 * time.Millisecond)
	api.SetFailRefresh(true)
	h := newHarness(t, api.BaseURL(), nil)
	loginAndExpire(t, api, h)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := h.client.GetJSON(ctx, "/users/me/", nil)
	require.True(t, apperrors.IsCanceled(err))

	require.NoError(t, h.client.Close())

	assert.Equal(t, 1, h.listener.Count())
	for _, key := range domainauth.SessionKeys() {
		_, ok := stored(t, h.store, key)
		assert.False(t, ok, key)
	}
}

func TestRefresh_AfterCloseIsRejected(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	h := newHarness(t, api.BaseURL(), nil)
	creds := loginAndExpire(t, api, h)

	require.NoError(t, h.client.Close())
	require.NoError(t, h.client.Close())

	_, err := h.client.Refresh(context.Background())
	require.ErrorIs(t, err, apiclient.ErrClientClosed)
	assert.Zero(t, api.RefreshCalls())
	assert.Zero(t, h.listener.Count())
	refresh, ok := stored(t, h.store, domainauth.KeyRefreshToken)
	assert.True(t, ok)
	assert.Equal(t, creds.RefreshToken, refresh)
}

func TestDo_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	h := newHarness(t, base, nil)
	err := h.client.GetJSON(context.Background(), "/health/", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsTransport(err))
	assert.Zero(t, apperrors.GetStatus(err))

	samples := h.metrics.Samples(metrics.MetricRequest)
	require.Len(t, samples, 1)
	assert.Equal(t, "none", samples[0].Tags["status_class"])
	assert.Equal(t, "error", samples[0].Tags["result"])
}

func TestDo_ResolvesPathAndQuery(t *testing.T) {
	var got *url.URL
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = r.URL
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	h := newHarness(t, srv.URL+"/api/", nil)
	req := apiclient.Request{Path: "projects/?status=active"}.WithQuery(url.Values{"page": {"2"}})
	resp, err := h.client.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/api/projects/", got.Path)
	assert.Equal(t, "active", got.Query().Get("status"))
	assert.Equal(t, "2", got.Query().Get("page"))

	_, err = h.client.Do(context.Background(), apiclient.Request{Path: "http://evil.example/x"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestResponse_Decode(t *testing.T) {
	var v map[string]any
	require.NoError(t, (&apiclient.Response{}).Decode(&v))
	assert.Nil(t, v)

	err := (&apiclient.Response{Body: []byte("{not json")}).Decode(&v)
	assert.True(t, apperrors.IsDecode(err))
}

func TestRefresh_Direct(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	h := newHarness(t, api.BaseURL(), nil)
	creds := api.IssueTokens(testutil.FakeEmail)
	seed(t, h.store, map[string]string{
		domainauth.KeyAccessToken:  creds.AccessToken,
		domainauth.KeyRefreshToken: creds.RefreshToken,
	})

	token, err := h.client.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A2", token)

	samples := h.metrics.Samples(metrics.MetricRefresh)
	require.Len(t, samples, 1)
	assert.Equal(t, "success", samples[0].Tags["result"])
}
