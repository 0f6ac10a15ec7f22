package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(configFile, "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, filepath.Join("data", "processed"), cfg.ProcessedDir())
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "trackman.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /srv/golf\nstore: sqlite\nbatch_size: 3\n"), 0o644))
	t.Setenv(configFile, path)
	t.Setenv("TRACKMAN_BATCH_SIZE", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/golf", cfg.DataDir)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, 7, cfg.BatchSize)
	assert.Equal(t, 10, cfg.BatchThreshold)
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(configFile, "")
	t.Setenv("TRACKMAN_STORE", "parquet")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parquet")
}
