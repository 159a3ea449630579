package safedbx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "safedbx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultDriver(), cfg.Driver)
	assert.Zero(t, cfg.Flags())

	b := cfg.Builder()
	_, ok := b.MaxDBs()
	assert.False(t, ok, "absent limits stay unset")
	_, ok = b.MaxReaders()
	assert.False(t, ok)
	_, ok = b.MapSize()
	assert.False(t, ok)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
driver: bolt
no_subdir: true
safe_no_sync: true
max_dbs: 16
map_size: 64MiB
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DriverBolt, cfg.Driver)
	assert.EqualValues(t, 16, cfg.MaxDBs)
	assert.EqualValues(t, 64<<20, cfg.MapSize)
	assert.Equal(t, NoSubdir|SafeNoSync, cfg.Flags())

	b := cfg.Builder()
	assert.Equal(t, DriverBolt, b.Driver())
	assert.Equal(t, NoSubdir|SafeNoSync, b.Flags())
	n, ok := b.MaxDBs()
	assert.True(t, ok)
	assert.EqualValues(t, 16, n)
	size, ok := b.MapSize()
	assert.True(t, ok)
	assert.EqualValues(t, 64<<20, size)
	_, ok = b.MaxReaders()
	assert.False(t, ok)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, "max_dbs: 4\nread_only: false\n")
	t.Setenv("SAFEDBX_MAX_DBS", "32")
	t.Setenv("SAFEDBX_READ_ONLY", "true")
	t.Setenv("SAFEDBX_MAX_READERS", "50")
	t.Setenv("SAFEDBX_MAP_SIZE", "1GB")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.EqualValues(t, 32, cfg.MaxDBs)
	assert.EqualValues(t, 50, cfg.MaxReaders)
	assert.EqualValues(t, 1_000_000_000, cfg.MapSize)
	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, ReadOnly, cfg.Flags())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "map_size: lots\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "map_size")
}

func TestConfigOpens(t *testing.T) {
	path := writeConfig(t, "driver: bolt\nmax_dbs: 2\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	env := openTestEnv(t, cfg.Builder(), t.TempDir())
	_, err = env.CreateDB("users", 0)
	require.NoError(t, err)
}
