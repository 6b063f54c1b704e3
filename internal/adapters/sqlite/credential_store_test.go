package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/todoproduction/todo-client/internal/domain/auth"
)

func openTestStore(t *testing.T) (*CredentialStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	store, err := Open(Config{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{Path: "  "})
	require.Error(t, err)
}

func TestOpen_CreatesDirectoryAndFile(t *testing.T) {
	store, path := openTestStore(t)
	assert.Equal(t, path, store.Path())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePermissions), info.Mode().Perm())
}

func TestCredentialStore_RoundTrip(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, domainauth.KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, domainauth.KeyAccessToken, "A1"))
	require.NoError(t, store.Set(ctx, domainauth.KeyAccessToken, "A2"))

	v, ok, err := store.Get(ctx, domainauth.KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A2", v)
}

func TestCredentialStore_SurvivesReopen(t *testing.T) {
	store, path := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, domainauth.KeyRefreshToken, "R1"))
	require.NoError(t, store.Close())

	reopened, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get(ctx, domainauth.KeyRefreshToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "R1", v)
}

func TestCredentialStore_Delete(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	for _, k := range domainauth.SessionKeys() {
		require.NoError(t, store.Set(ctx, k, "v"))
	}
	require.NoError(t, store.Set(ctx, "other", "keep"))

	require.NoError(t, store.Delete(ctx, domainauth.SessionKeys()...))
	require.NoError(t, store.Delete(ctx))

	for _, k := range domainauth.SessionKeys() {
		_, ok, err := store.Get(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	_, ok, err := store.Get(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok)
}
