package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/twicsync/pkg/fetch"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "twicsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, fetch.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, fetch.DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 3, cfg.EmptyEventThreshold)
	assert.False(t, cfg.SalvagePartial)

	n, ok := cfg.Overrides().Lookup(1288, "18th Bergamo Open 2019")
	assert.True(t, ok)
	assert.Equal(t, 36, n)
}

func TestLoadFileAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, `
db_path: /var/lib/twicsync/games.db
workers: 2
http_timeout: 15s
salvage_partial: true
count_overrides:
  - archive: 1400
    event: "Tata Steel Masters"
    count: 91
`)
	t.Setenv("TWICSYNC_WORKERS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/twicsync/games.db", cfg.DBPath)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.SalvagePartial)
	require.Len(t, cfg.CountOverrides, 1)

	n, ok := cfg.Overrides().Lookup(1400, "Tata Steel Masters")
	assert.True(t, ok)
	assert.Equal(t, 91, n)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TWICSYNC_BATCH_SIZE=7\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("TWICSYNC_BATCH_SIZE") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.BatchSize)
}

func TestLoadRejectsInvalid(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, `
workers: 0
base_url: not a url
count_overrides:
  - archive: 1400
    count: 3
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Workers")
	assert.Contains(t, err.Error(), "BaseURL")
	assert.Contains(t, err.Error(), "Event")
}

func TestLoadMissingFile(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
