package localstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "portal.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, SetTime(store, KeyRefreshTokenExpiration, expiry))
	require.NoError(t, SetBool(store, KeyDarkMode, true))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	got, ok := GetTime(reopened, KeyRefreshTokenExpiration)
	require.True(t, ok)
	assert.True(t, expiry.Equal(got))

	dark, ok := GetBool(reopened, KeyDarkMode)
	require.True(t, ok)
	assert.True(t, dark)

	require.NoError(t, reopened.Remove(KeyDarkMode))
	_, ok = reopened.Get(KeyDarkMode)
	assert.False(t, ok)
}

func TestFileStoreEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "portal.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, ok := store.Get(KeyLanguage)
	assert.False(t, ok)
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "portal.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}

func TestMalformedValuesReportMissing(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(KeyAccessTokenExpiration, "yesterday"))
	require.NoError(t, store.Set(KeyDarkMode, "maybe"))

	_, ok := GetTime(store, KeyAccessTokenExpiration)
	assert.False(t, ok)
	_, ok = GetBool(store, KeyDarkMode)
	assert.False(t, ok)
}
