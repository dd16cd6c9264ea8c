package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	require.Equal(t, Default().DataDir, cfg.DataDir)
	require.NoError(t, cfg.Validate())
}

func TestLoadParsesTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphdb.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir = "/var/lib/graphdb"
map_size_mb = 2048
log_level = "debug"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/graphdb", cfg.DataDir)
	require.Equal(t, int64(2048), cfg.MapSizeMB)
	require.Equal(t, "debug", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverrideWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphdb.toml")
	require.NoError(t, os.WriteFile(path, []byte(`data_dir = "/from-file"`), 0o644))

	t.Setenv("GRAPHDB_DATA_DIR", "/from-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/from-env", cfg.DataDir)
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveMapSize(t *testing.T) {
	cfg := Default()
	cfg.MapSizeMB = 0
	require.Error(t, cfg.Validate())
}
