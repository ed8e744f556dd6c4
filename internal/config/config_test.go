package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLayersFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
project:
  id: p1
batch:
  size: 50
  poll_interval: 500ms
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "p1", cfg.Project.ID)
	assert.Equal(t, 50, cfg.Batch.Size)
	assert.Equal(t, 500*time.Millisecond, cfg.Batch.PollInterval)
	assert.Equal(t, 1, cfg.Batch.ConcurrentBatches)
	assert.Equal(t, "en", cfg.Project.DefaultLanguage)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Batch, cfg.Batch)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CTS_PROJECT_ID", "from-env")
	t.Setenv("CTS_CONCURRENT_BATCHES", "4")
	t.Setenv("CTS_MAX_POLL_WAIT", "30s")
	t.Setenv("LOG_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("project:\n  id: from-file\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Project.ID)
	assert.Equal(t, 4, cfg.Batch.ConcurrentBatches)
	assert.Equal(t, 30*time.Second, cfg.Batch.MaxPollWait)
	assert.Equal(t, "debug", cfg.App.LogLevel)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CTS_TENANT_ID=t-dotenv\n"), 0o644))
	t.Setenv("CTS_TENANT_ID", "")
	require.NoError(t, os.Unsetenv("CTS_TENANT_ID"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "t-dotenv", os.Getenv("CTS_TENANT_ID"))
}

func TestNormalizeAndValidate(t *testing.T) {
	cfg := Default()
	cfg.Project.ID = " p1 "
	cfg.Project.DefaultLanguage = ""
	cfg.Batch.Size = 0
	cfg.Batch.APIQPSLimit = 0

	out, res := NormalizeAndValidate(cfg)
	require.True(t, res.OK(), res.Errors)
	assert.Equal(t, "p1", out.Project.ID)
	assert.Equal(t, "en", out.Project.DefaultLanguage)
	assert.Equal(t, 200, out.Batch.Size)
	assert.NotEmpty(t, res.Warnings)
}

func TestValidateErrors(t *testing.T) {
	cfg := Default()
	cfg.Batch.Size = 500
	cfg.Batch.PollInterval = time.Hour
	cfg.App.LogLevel = "loud"
	cfg.Project.CredentialsFile = filepath.Join(t.TempDir(), "missing.json")

	_, res := NormalizeAndValidate(cfg)
	assert.False(t, res.OK())
	assert.Len(t, res.Errors, 5)
	require.Error(t, Validate(cfg))
}

func TestEnsureUserConfigAndSave(t *testing.T) {
	dir := t.TempDir()
	path, err := EnsureUserConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yml"), path)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.App.DataDir)
	assert.Equal(t, filepath.Join(dir, "mirror.db"), cfg.DBPath())

	cfg.Project.ID = "p1"
	require.NoError(t, SaveAtomic(path, cfg))
	_, err = os.Stat(path + ".bak")
	require.NoError(t, err)

	again, err := EnsureUserConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, path, again)

	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "p1", cfg.Project.ID)
	assert.Equal(t, 10*time.Minute, cfg.Batch.MaxPollWait)

	cfg.Project.ID = ""
	require.Error(t, SaveAtomic(path, cfg))
}
