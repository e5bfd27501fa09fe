package credential

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackendPersists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "credentials.json")

	first, err := NewFileBackend(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, KeyAccessToken, "token-1"))
	require.NoError(t, first.Set(ctx, KeyTheme, "dark"))

	second, err := NewFileBackend(path)
	require.NoError(t, err)
	value, ok, err := second.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "token-1", value)

	require.NoError(t, second.Delete(ctx, KeyAccessToken))
	_, ok, err = first.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, ok)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileBackendCorruptFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	backend, err := NewFileBackend(path)
	require.NoError(t, err)

	store := NewStore(backend, nil)
	assert.Empty(t, store.GetToken(ctx))

	// a write replaces the corrupt file
	require.NoError(t, backend.Set(ctx, KeyAccessToken, "fresh"))
	assert.Equal(t, "fresh", store.GetToken(ctx))
}

func TestSealedBackend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner := NewMemoryBackend()
	sealed, err := NewSealedBackend(inner, "correct horse battery staple")
	require.NoError(t, err)

	require.NoError(t, sealed.Set(ctx, KeyAccessToken, "secret-token"))

	raw, ok, err := inner.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, strings.Contains(raw, "secret-token"))

	value, ok, err := sealed.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "secret-token", value)

	t.Run("wrong secret reads as absent through the store", func(t *testing.T) {
		other, err := NewSealedBackend(inner, "another secret")
		require.NoError(t, err)

		_, _, err = other.Get(ctx, KeyAccessToken)
		assert.Error(t, err)
		assert.Empty(t, NewStore(other, nil).GetToken(ctx))
	})

	t.Run("values are bound to their key", func(t *testing.T) {
		require.NoError(t, inner.Set(ctx, KeyRefreshToken, raw))
		_, _, err := sealed.Get(ctx, KeyRefreshToken)
		assert.Error(t, err)
	})

	_, err = NewSealedBackend(inner, "")
	assert.Error(t, err)
}
