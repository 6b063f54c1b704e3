package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoproduction/todo-client/internal/apiclient"
	"github.com/todoproduction/todo-client/internal/authstate"
	domainauth "github.com/todoproduction/todo-client/internal/domain/auth"
	apperrors "github.com/todoproduction/todo-client/internal/errors"
	mockauth "github.com/todoproduction/todo-client/internal/mocks/auth"
	"github.com/todoproduction/todo-client/internal/testutil"
)

func newAuthService(e *env) *AuthService {
	return NewAuthService(AuthServiceOptions{Client: e.client, State: e.state})
}

func TestNewAuthService_PanicsWithoutDeps(t *testing.T) {
	assert.Panics(t, func() { NewAuthService(AuthServiceOptions{}) })
	assert.Panics(t, func() {
		NewAuthService(AuthServiceOptions{Client: &apiclient.Client{}})
	})
}

func TestAuthService_Login(t *testing.T) {
	e := newEnv(t)
	svc := newAuthService(e)

	out, err := svc.Login(context.Background(), " a@b.com ", "x")
	require.NoError(t, err)
	require.NotNil(t, out.User)
	assert.Equal(t, testutil.FakeEmail, out.User.Email)
	require.NotNil(t, out.Agency)
	assert.Equal(t, int64(10), out.Agency.ID)

	access, _ := e.value(t, domainauth.KeyAccessToken)
	refresh, _ := e.value(t, domainauth.KeyRefreshToken)
	assert.Equal(t, "A1", access)
	assert.Equal(t, "R1", refresh)
	_, hasUser := e.value(t, domainauth.KeyUser)
	assert.True(t, hasUser)

	id := e.state.Snapshot()
	assert.True(t, id.IsAuthenticated)
	assert.Equal(t, "Ada Byron", id.User.DisplayName())
}

func TestAuthService_LoginRollsBackWhenIdentityWriteFails(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	store := mockauth.NewFlakyStore(nil)
	store.FailSetKeys = []string{domainauth.KeyUser}
	state := authstate.New(store, nil)
	client, err := apiclient.New(apiclient.Options{BaseURL: api.BaseURL(), Store: store, Listener: state})
	require.NoError(t, err)
	svc := NewAuthService(AuthServiceOptions{Client: client, State: state})

	_, err = svc.Login(context.Background(), testutil.FakeEmail, testutil.FakePassword)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInternal, apperrors.GetCode(err))

	assert.Empty(t, store.Values())
	assert.False(t, state.Snapshot().IsAuthenticated)
}

func TestAuthService_LoginValidation(t *testing.T) {
	e := newEnv(t)
	svc := newAuthService(e)

	_, err := svc.Login(context.Background(), "", "x")
	assert.True(t, apperrors.IsValidation(err))
	_, err = svc.Login(context.Background(), "a@b.com", "")
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, e.api.Requests(), "validation must happen before any network call")
}

func TestAuthService_LoginBadCredentials(t *testing.T) {
	e := newEnv(t)
	svc := newAuthService(e)

	_, err := svc.Login(context.Background(), "a@b.com", "nope")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apperrors.GetStatus(err))
	assert.Equal(t, "Invalid email or password", apiclient.UserMessage(err, "Login failed"))
	assert.Zero(t, e.listener.Count())
	assert.Zero(t, e.api.RefreshCalls())
	assert.False(t, e.state.Snapshot().IsAuthenticated)
}

func TestAuthService_FailedLoginKeepsExistingSession(t *testing.T) {
	e := newEnv(t)
	svc := newAuthService(e)
	creds := e.loggedIn(t)

	_, err := svc.Login(context.Background(), "a@b.com", "nope")
	require.Error(t, err)
	assert.Empty(t, e.api.RequestsTo("/auth/login/")[0].Authorization)
	assert.Zero(t, e.api.RefreshCalls())
	assert.Zero(t, e.listener.Count())
	refresh, ok := e.value(t, domainauth.KeyRefreshToken)
	assert.True(t, ok)
	assert.Equal(t, creds.RefreshToken, refresh)
}

func TestAuthService_Register(t *testing.T) {
	e := newEnv(t)
	svc := newAuthService(e)

	out, err := svc.Register(context.Background(), domainauth.RegisterRequest{
		Email:      " new@studio.com ",
		Password:   "secret-pass",
		FirstName:  "Nia",
		LastName:   "Okafor",
		AgencyName: "Okafor Films",
	})
	require.NoError(t, err)
	assert.Equal(t, "Okafor Films", out.Agency.Name)
	assert.True(t, e.state.Snapshot().IsAuthenticated)

	_, ok := e.value(t, domainauth.KeyAccessToken)
	assert.True(t, ok)
}

func TestAuthService_RegisterValidationAndServerErrors(t *testing.T) {
	e := newEnv(t)
	svc := newAuthService(e)
	ctx := context.Background()

	_, err := svc.Register(ctx, domainauth.RegisterRequest{Email: "x@y.com", Password: "p"})
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "agency name is required", apiclient.UserMessage(err, "generic"))

	_, err = svc.Register(ctx, domainauth.RegisterRequest{
		Email: testutil.FakeEmail, Password: "p", AgencyName: "Dup",
	})
	require.Error(t, err)
	assert.Equal(t, "email: A user with this email already exists.", apiclient.UserMessage(err, "generic"))
}

func TestAuthService_LogoutRevokesAndClears(t *testing.T) {
	e := newEnv(t)
	svc := newAuthService(e)
	ctx := context.Background()

	_, err := svc.Login(ctx, "a@b.com", "x")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx))

	assert.Equal(t, 1, e.api.LogoutCalls())
	assert.True(t, e.api.Blacklisted("R1"))
	for _, k := range domainauth.SessionKeys() {
		_, ok := e.value(t, k)
		assert.False(t, ok, k)
	}
	assert.False(t, e.state.Snapshot().IsAuthenticated)
}

func TestAuthService_LogoutWithoutSessionSkipsServer(t *testing.T) {
	e := newEnv(t)
	svc := newAuthService(e)

	require.NoError(t, svc.Logout(context.Background()))
	assert.Zero(t, e.api.LogoutCalls())
}

func TestAuthService_LogoutClearsEvenWhenServerFails(t *testing.T) {
	e := newEnv(t)
	svc := newAuthService(e)
	ctx := context.Background()

	_, err := svc.Login(ctx, "a@b.com", "x")
	require.NoError(t, err)
	e.api.Server.Close()

	require.NoError(t, svc.Logout(ctx))
	_, ok := e.value(t, domainauth.KeyRefreshToken)
	assert.False(t, ok)
}

func TestAuthService_LogoutWithExpiredTokensDoesNotRefresh(t *testing.T) {
	e := newEnv(t)
	svc := newAuthService(e)
	ctx := context.Background()

	creds := e.loggedIn(t)
	e.api.ExpireAccess(creds.AccessToken)
	e.api.ExpireRefresh(creds.RefreshToken)

	require.NoError(t, svc.Logout(ctx))
	assert.Zero(t, e.api.RefreshCalls())
	assert.Zero(t, e.listener.Count())
	reqs := e.api.RequestsTo("/auth/logout/")
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer "+creds.AccessToken, reqs[0].Authorization)
	for _, k := range domainauth.SessionKeys() {
		_, ok := e.value(t, k)
		assert.False(t, ok, k)
	}
}

func TestAuthService_SwitchAgency(t *testing.T) {
	e := newEnv(t)
	svc := newAuthService(e)
	ctx := context.Background()

	_, err := svc.Login(ctx, "a@b.com", "x")
	require.NoError(t, err)

	_, err = svc.SwitchAgency(ctx, 0)
	assert.True(t, apperrors.IsValidation(err))

	out, err := svc.SwitchAgency(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, "Second Unit", out.Agency.Name)
	assert.Equal(t, int64(11), e.state.Snapshot().Agency.ID)

	_, err = svc.SwitchAgency(ctx, 99)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, apperrors.GetStatus(err))
	assert.Equal(t, int64(11), e.state.Snapshot().Agency.ID)
}

func TestAuthService_MyAgencies(t *testing.T) {
	e := newEnv(t)
	svc := newAuthService(e)
	e.loggedIn(t)

	list, err := svc.MyAgencies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)
	assert.True(t, list.Agencies[0].IsCurrent)
}

func TestAuthService_CurrentSessionRestores(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := newAuthService(e).Login(ctx, "a@b.com", "x")
	require.NoError(t, err)

	// A second process sharing the store.
	fresh := NewAuthService(AuthServiceOptions{Client: e.client, State: authstate.New(e.store, nil)})
	id, err := fresh.CurrentSession(ctx)
	require.NoError(t, err)
	assert.True(t, id.IsAuthenticated)
	assert.Equal(t, testutil.FakeEmail, id.User.Email)
}

func TestAuthService_InvalidationResetsState(t *testing.T) {
	e := newEnv(t)
	svc := newAuthService(e)
	ctx := context.Background()

	_, err := svc.Login(ctx, "a@b.com", "x")
	require.NoError(t, err)
	e.api.ExpireAccess("A1")
	e.api.ExpireRefresh("R1")

	_, err = svc.MyAgencies(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsSessionInvalidated(err))
	assert.False(t, e.state.Snapshot().IsAuthenticated)
	assert.Equal(t, 1, e.listener.Count())
}
