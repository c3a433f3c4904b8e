package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := writeConfig(t, `
engine:
  interval_seconds: 60
  workers: 8
  slippage: 0.01
estimator:
  base_url: "http://localhost:9000"
  timeout_seconds: 10
storage:
  dsn: "custom.db"
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.CycleInterval())
	assert.Equal(t, 8, cfg.Engine.Workers)
	assert.Equal(t, 0.01, cfg.Engine.Slippage)
	assert.Equal(t, "http://localhost:9000", cfg.Estimator.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.EstimatorTimeout())
	assert.Equal(t, "custom.db", cfg.Storage.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, 120*time.Second, cfg.CycleInterval())
	assert.Equal(t, 2*time.Minute, cfg.BreakerCooldown())
	assert.Equal(t, 3, cfg.Engine.BreakerThreshold)
	assert.Equal(t, 4*time.Second, cfg.PollInterval())
	assert.Equal(t, 12*time.Second, cfg.QuoteFreshness())
	assert.Equal(t, 30*time.Minute, cfg.AnalysisTTL())
	assert.Equal(t, 0.05, cfg.Engine.MaxPriceDelta)
	assert.Equal(t, 0.005, cfg.Engine.Slippage)
	assert.Equal(t, "https://clob.polymarket.com", cfg.API.CLOBBase)
	assert.Equal(t, "https://gamma-api.polymarket.com", cfg.API.GammaBase)
	assert.Equal(t, 25*time.Second, cfg.EstimatorTimeout())
	assert.Equal(t, "edgebot.db", cfg.Storage.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("ESTIMATOR_URL", "http://override:9000")

	cfg, err := Load(writeConfig(t, "log:\n  level: info\n"))
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "http://override:9000", cfg.Estimator.BaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "engine: [not: a map"))
	assert.Error(t, err)
}
