package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RECONSOLE_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
	require.Equal(t, 15, cfg.Server.TimeoutSeconds)
	require.Equal(t, 10, cfg.UI.PageSize)
	require.NotEmpty(t, cfg.Journal.Path)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	t.Setenv("RECONSOLE_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.Server.BaseURL = "https://recon.example.com/"
	cfg.UI.PageSize = 25
	cfg.Tenant.Domain = "acme.example.com"
	require.NoError(t, Save(cfg))

	_, err = os.Stat(path)
	require.NoError(t, err)

	got, err := Load()
	require.NoError(t, err)
	// trailing slash normalized away on load
	require.Equal(t, "https://recon.example.com", got.Server.BaseURL)
	require.Equal(t, 25, got.UI.PageSize)
	require.Equal(t, "acme.example.com", got.Tenant.Domain)
}

func TestLoadClampsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	t.Setenv("RECONSOLE_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.UI.PageSize = 5000
	cfg.Server.TimeoutSeconds = -1
	require.NoError(t, Save(cfg))

	got, err := Load()
	require.NoError(t, err)
	require.Equal(t, 10, got.UI.PageSize)
	require.Equal(t, 15, got.Server.TimeoutSeconds)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("RECONSOLE_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("RECONSOLE_SERVER_BASE_URL", "http://10.0.0.5:9999")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://10.0.0.5:9999", cfg.Server.BaseURL)
}
