package testutil

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvBool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "yes", "y"} {
		t.Setenv("TESTUTIL_FLAG", v)
		assert.True(t, envBool("TESTUTIL_FLAG"), v)
	}
	t.Setenv("TESTUTIL_FLAG", "off")
	assert.False(t, envBool("TESTUTIL_FLAG"))
}

func TestRunConcurrent_PreservesOrder(t *testing.T) {
	boom := errors.New("boom")
	errs := RunConcurrent(
		func() error { return nil },
		func() error { return boom },
	)
	require.Len(t, errs, 2)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], boom)
}

func TestFakeAPI_LoginAndAuthedEndpoint(t *testing.T) {
	api := NewFakeAPI(t)

	resp, err := http.Post(api.BaseURL()+"/auth/login/", "application/json",
		strings.NewReader(`{"email":"a@b.com","password":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, api.BaseURL()+"/users/me/", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer A1")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	api.ExpireAccess("A1")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	reqs := api.RequestsTo("/users/me/")
	require.Len(t, reqs, 2)
	assert.Equal(t, "Bearer A1", reqs[0].Authorization)
}
