package credstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	s := &Store{Dir: t.TempDir()}
	cred := Credential{
		Token:        "jwt-abc",
		ExpiresAt:    time.Now().UTC().Add(time.Hour).Truncate(time.Second),
		UserID:       "u-1",
		Email:        "ops@example.com",
		Name:         "Ops",
		AuthProvider: "local",
	}
	require.NoError(t, s.Save(cred))

	got, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, cred, got)
}

func TestFileIsSealedAndPrivate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := &Store{Dir: dir}
	require.NoError(t, s.Save(Credential{Token: "super-secret-token"}))

	path := filepath.Join(dir, "credential.json")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "super-secret-token")

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()

	s := &Store{Dir: t.TempDir()}
	_, err := s.Load()
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	s := &Store{Dir: t.TempDir()}
	require.NoError(t, s.Save(Credential{Token: "x"}))
	require.NoError(t, s.Delete())
	require.NoError(t, s.Delete())

	_, err := s.Load()
	require.ErrorIs(t, err, ErrNotFound)
}
