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
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "https://api.perplexity.ai", cfg.Perplexity.BaseURL)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.HaikuModel)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.SonnetModel)
	assert.Equal(t, 20, cfg.Discovery.DefaultCap)
	assert.Equal(t, 50, cfg.Discovery.MaxCap)
	assert.Equal(t, 2*time.Second, cfg.Discovery.Delay())
	assert.Equal(t, int64(8), cfg.Enrich.MaxConcurrent)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
  database_url: leadflow.db
log:
  level: debug
  format: console
server:
  port: 9090
  bulk_token: secret
discovery:
  default_cap: 10
  delay_secs: 0
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Server.BulkToken)
	assert.Equal(t, 10, cfg.Discovery.DefaultCap)
	assert.Equal(t, time.Duration(0), cfg.Discovery.Delay())
	// Defaults still apply for unset values
	assert.Equal(t, 50, cfg.Discovery.MaxCap)
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

	t.Setenv("LEADFLOW_STORE_DRIVER", "postgres")
	t.Setenv("LEADFLOW_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("LEADFLOW_SERVER_PORT", "3000")
	t.Setenv("LEADFLOW_PERPLEXITY_MODEL", "sonar")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "sonar", cfg.Perplexity.Model)
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

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	return &Config{
		Store:      StoreConfig{Driver: "postgres", DatabaseURL: "postgres://localhost/leadflow"},
		Perplexity: PerplexityConfig{Key: "pplx-key"},
		Anthropic:  AnthropicConfig{Key: "sk-ant-key"},
		Discovery:  DiscoveryConfig{DefaultCap: 20, MaxCap: 50, DelaySecs: 2},
		Enrich:     EnrichConfig{MaxConcurrent: 8},
		Server:     ServerConfig{Port: 8080},
	}
}

func TestValidateServe_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidateServe_MissingKeys(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	cfg.Perplexity.Key = ""
	cfg.Anthropic.Key = ""

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "perplexity.key is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateCapBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Discovery.MaxCap = 51
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "discovery.max_cap must be between 1 and 50")

	cfg.Discovery.MaxCap = 50
	cfg.Discovery.DefaultCap = 51
	err = cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "discovery.default_cap")

	cfg.Discovery.DefaultCap = 50
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Enrich.MaxConcurrent = 0
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "enrich.max_concurrent must be between 1 and 64")

	cfg.Enrich.MaxConcurrent = 65
	err = cfg.Validate("serve")
	assert.Error(t, err)

	cfg.Enrich.MaxConcurrent = 64
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateMigrate_StoreOnly(t *testing.T) {
	cfg := validDefaults()
	cfg.Perplexity.Key = ""
	cfg.Anthropic.Key = ""

	assert.NoError(t, cfg.Validate("migrate"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
