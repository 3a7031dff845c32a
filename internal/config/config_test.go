package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/inventory.db", cfg.Store.Path)
	assert.Equal(t, 50000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 0.25, cfg.Ingest.RowCountTolerance)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Export.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
store:
  path: /tmp/test-store.db
ingest:
  chunk_size: 1000
logging:
  level: debug
export:
  enabled: true
  path: /tmp/summary.csv
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test-store.db", cfg.Store.Path)
	assert.Equal(t, 1000, cfg.Ingest.ChunkSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Export.Enabled)
	// Untouched sections keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Store.BusyTimeout)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("ingest:\n  chunk_size: 1000\n"), 0644))

	t.Setenv("VENDORPERF_INGEST_CHUNK_SIZE", "250")
	t.Setenv("VENDORPERF_LOGGING_LEVEL", "warn")

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Ingest.ChunkSize)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidationRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad log level", key: "VENDORPERF_LOGGING_LEVEL", value: "loud"},
		{name: "bad log output", key: "VENDORPERF_LOGGING_OUTPUT", value: "syslog"},
		{name: "zero chunk size", key: "VENDORPERF_INGEST_CHUNK_SIZE", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestMissingConfigFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Store.Path, cfg.Store.Path)
}
