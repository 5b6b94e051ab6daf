package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "places.db", cfg.Store.SQLitePath)
	assert.Equal(t, 10, cfg.Provider.RPSBudget)
	assert.Equal(t, 3, cfg.Provider.Retry.MaxAttempts)
	assert.Equal(t, 400, cfg.Provider.Retry.InitialBackoffMs)
	assert.Equal(t, "CI", cfg.Import.Region)
	assert.InDelta(t, 10000, cfg.Import.RadiusMeters, 0.001)
	assert.Equal(t, 60, cfg.Import.MaxResults)
	assert.InDelta(t, 0.8, cfg.Dedupe.Threshold, 0.001)
	assert.Equal(t, 90, cfg.Cleanup.RetentionDays)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/places
log:
  level: debug
  format: console
server:
  port: 9090
dedupe:
  threshold: 0.9
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/places", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 0.9, cfg.Dedupe.Threshold, 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, 10, cfg.Provider.RPSBudget)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PLACES_STORE_DRIVER", "postgres")
	t.Setenv("PLACES_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("PLACES_PROVIDER_API_KEY", "test-key")
	t.Setenv("PLACES_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.Provider.APIKey)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestValidateProvider(t *testing.T) {
	cfg := &Config{}
	cfg.Provider.RPSBudget = 10

	err := cfg.ValidateProvider()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "provider.api_key is required")

	cfg.Provider.APIKey = "key"
	assert.NoError(t, cfg.ValidateProvider())

	cfg.Provider.RPSBudget = 0
	err = cfg.ValidateProvider()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rps_budget")
}

func TestValidateStore(t *testing.T) {
	cfg := &Config{}

	cfg.Store.Driver = "sqlite"
	err := cfg.ValidateStore()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite_path")

	cfg.Store.SQLitePath = "places.db"
	assert.NoError(t, cfg.ValidateStore())

	cfg.Store.Driver = "postgres"
	err = cfg.ValidateStore()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")

	cfg.Store.DatabaseURL = "postgres://localhost/places"
	assert.NoError(t, cfg.ValidateStore())

	cfg.Store.Driver = "mysql"
	err = cfg.ValidateStore()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestRetryPolicy(t *testing.T) {
	pc := ProviderConfig{Retry: RetryConfig{
		MaxAttempts:      5,
		InitialBackoffMs: 100,
		MaxBackoffMs:     1000,
		Multiplier:       3.0,
		Jitter:           0.1,
	}}

	p := pc.RetryPolicy()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, p.InitialBackoff)
	assert.Equal(t, time.Second, p.MaxBackoff)
	assert.InDelta(t, 3.0, p.Multiplier, 0.001)
	assert.InDelta(t, 0.1, p.Jitter, 0.001)
}

func TestRetryPolicyZeroFallsBackToDefaults(t *testing.T) {
	p := (&ProviderConfig{}).RetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 400*time.Millisecond, p.InitialBackoff)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
