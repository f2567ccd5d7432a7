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

func TestLoad_defaults(t *testing.T) {
	path := writeConfig(t, `
upstream:
  base_url: http://sensors.local:9000/
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "http://sensors.local:9000", cfg.Upstream.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Polling.FastInterval)
	assert.Equal(t, 5*time.Minute, cfg.Polling.SummaryInterval)
	assert.Equal(t, 5, cfg.Polling.SummaryLimit)
	assert.Equal(t, PolicyRetain, cfg.Polling.FailurePolicy)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.History.MaxAge)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_overrides(t *testing.T) {
	path := writeConfig(t, `
env: dev
upstream:
  base_url: http://sensors.local
polling:
  fast_interval: 1s
  summary_interval: 30s
  failure_policy: RESET
history:
  enabled: true
  path: /tmp/history.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, time.Second, cfg.Polling.FastInterval)
	assert.Equal(t, 30*time.Second, cfg.Polling.SummaryInterval)
	assert.Equal(t, PolicyReset, cfg.Polling.FailurePolicy)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/tmp/history.db", cfg.History.Path)
}

func TestLoad_errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config file not found")
	})

	t.Run("bad policy", func(t *testing.T) {
		path := writeConfig(t, `
upstream:
  base_url: http://sensors.local
polling:
  failure_policy: sometimes
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failure_policy")
	})

	t.Run("must load panics", func(t *testing.T) {
		assert.Panics(t, func() {
			MustLoad(filepath.Join(t.TempDir(), "nope.yaml"))
		})
	})
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Upstream: UpstreamConfig{BaseURL: "  ", Timeout: time.Second},
		Polling: PollingConfig{
			FastInterval:    0,
			SummaryInterval: time.Minute,
			SummaryLimit:    5,
			Timeout:         time.Second,
			FailurePolicy:   "retain",
		},
		History: HistoryConfig{Enabled: true, MaxAge: time.Hour, CleanupInterval: time.Minute},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream.base_url is required")
	assert.Contains(t, err.Error(), "polling.fast_interval must be positive")
	assert.Contains(t, err.Error(), "history.path is required")
}

func TestResolvePath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/etc/sensorwatch.yaml")
	assert.Equal(t, "/x.yaml", ResolvePath("/x.yaml"))
	assert.Equal(t, "/etc/sensorwatch.yaml", ResolvePath(""))

	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, "config/config.yaml", ResolvePath(""))
}
