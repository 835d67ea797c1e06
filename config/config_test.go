package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "source:\n  endpoint: https://bin.example.com\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, SourceRTDB, cfg.Source.Kind)
	assert.Equal(t, ModeStream, cfg.Source.Mode)
	assert.Equal(t, 10*time.Second, cfg.Source.PollInterval)
	assert.Equal(t, "/sensor/currentStatus", cfg.Source.StatusPath)
	assert.Equal(t, "/sensor/history", cfg.Source.HistoryPath)
	assert.Equal(t, DefaultStatusFields(), cfg.Source.Fields.Status)
	assert.Equal(t, DefaultHistoryFields(), cfg.Source.Fields.History)
	assert.Equal(t, 10, cfg.History.BucketCount)
	assert.Equal(t, 60, cfg.History.BucketWidthSeconds)
	assert.Equal(t, 60, cfg.History.RefreshSeconds)
	assert.Equal(t, 10, cfg.History.TableLimit)
	assert.Equal(t, "America/Lima", cfg.History.Timezone)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.False(t, cfg.Push.Enabled())
}

func TestLoad_FieldMappingOverride(t *testing.T) {
	path := writeConfig(t, `
source:
  kind: memory
  mode: poll
  poll_interval_seconds: 3
  fields:
    status:
      fill_percent: currentLevel
history:
  bucket_count: 6
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "currentLevel", cfg.Source.Fields.Status.FillPercent)
	// Unset names keep their defaults.
	assert.Equal(t, "tapaAbierta", cfg.Source.Fields.Status.LidOpen)
	assert.Equal(t, 3*time.Second, cfg.Source.PollInterval)
	assert.Equal(t, 6, cfg.History.BucketCount)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SMARTBIN_SOURCE_ENDPOINT", "https://env.example.com")
	t.Setenv("SMARTBIN_SOURCE_CREDENTIALS", "secret")
	path := writeConfig(t, "source:\n  endpoint: https://file.example.com\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.Source.Endpoint)
	assert.Equal(t, "secret", cfg.Source.Credentials)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
