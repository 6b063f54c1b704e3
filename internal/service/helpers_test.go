package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	memstore "github.com/todoproduction/todo-client/internal/adapters/memory"
	"github.com/todoproduction/todo-client/internal/apiclient"
	"github.com/todoproduction/todo-client/internal/authstate"
	domainauth "github.com/todoproduction/todo-client/internal/domain/auth"
	mockauth "github.com/todoproduction/todo-client/internal/mocks/auth"
	"github.com/todoproduction/todo-client/internal/ports"
	"github.com/todoproduction/todo-client/internal/testutil"
)

type env struct {
	api      *testutil.FakeAPI
	store    *memstore.CredentialStore
	state    *authstate.State
	client   *apiclient.Client
	listener *mockauth.RecordingListener
}

func newEnv(t *testing.T) *env {
	t.Helper()
	api := testutil.NewFakeAPI(t)
	store := memstore.NewCredentialStore()
	state := authstate.New(store, nil)
	listener := &mockauth.RecordingListener{}

	client, err := apiclient.New(apiclient.Options{
		BaseURL:  api.BaseURL(),
		Store:    store,
		Listener: ports.SessionListeners{state, listener},
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)

	return &env{api: api, store: store, state: state, client: client, listener: listener}
}

// loggedIn stores a fresh token pair for the default fake account.
func (e *env) loggedIn(t *testing.T) domainauth.Credentials {
	t.Helper()
	creds := e.api.IssueTokens(testutil.FakeEmail)
	require.NoError(t, e.state.SaveCredentials(context.Background(), creds))
	return creds
}

func (e *env) value(t *testing.T, key string) (string, bool) {
	t.Helper()
	v, ok, err := e.store.Get(context.Background(), key)
	require.NoError(t, err)
	return v, ok
}

// stubClient answers every call with a fixed body or error.
type stubClient struct {
	status int
	body   string
	err    error
}

func (s stubClient) Do(context.Context, apiclient.Request) (*apiclient.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	status := s.status
	if status == 0 {
		status = http.StatusOK
	}
	return &apiclient.Response{StatusCode: status, Body: []byte(s.body)}, nil
}

func (s stubClient) GetJSON(ctx context.Context, _ string, out any) error {
	resp, err := s.Do(ctx, apiclient.Request{})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

func (s stubClient) PostJSON(ctx context.Context, path string, _ any, out any) error {
	if out == nil {
		_, err := s.Do(ctx, apiclient.Request{})
		return err
	}
	return s.GetJSON(ctx, path, out)
}
