package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.25, cfg.Engine.FuzzyCutoff)
	assert.Equal(t, 5, cfg.Engine.ListLimit)
	assert.Equal(t, "price_inr", cfg.Engine.PriceColumn)
	assert.Equal(t, []string{"source_url"}, cfg.Engine.IdentifierColumns)
}

func TestLoad_YAMLAndRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dev.yaml")
	content := `
server:
  port: 9100
dataset:
  source: csv
  path: data/evs.csv
model:
  path: models/price.yaml
cache:
  driver: none
  ttl: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "data/evs.csv"), cfg.Dataset.Path)
	assert.Equal(t, filepath.Join(dir, "models/price.yaml"), cfg.Model.Path)
	assert.Equal(t, "none", cfg.Cache.Driver)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9200")
	t.Setenv("EV_DATASET_PATH", "/data/evs.csv")
	t.Setenv("EV_MODEL_PATH", "/models/price.json")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "/data/evs.csv", cfg.Dataset.Path)
	assert.Equal(t, "/models/price.json", cfg.Model.Path)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestLoad_PostgresDSNSelectsSource(t *testing.T) {
	t.Setenv("EV_DATASET_DSN", "postgres://ev:ev@localhost/ev?sslmode=disable")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Dataset.Source)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"bad source", func(c *Config) { c.Dataset.Source = "parquet" }, "invalid dataset source"},
		{"csv without path", func(c *Config) { c.Dataset.Path = "" }, "dataset path is required"},
		{"postgres without dsn", func(c *Config) { c.Dataset.Source = "postgres" }, "dsn is required"},
		{"bad cache", func(c *Config) { c.Cache.Driver = "memcached" }, "invalid cache driver"},
		{"bad cutoff", func(c *Config) { c.Engine.FuzzyCutoff = 1.5 }, "fuzzy_cutoff"},
		{"bad limit", func(c *Config) { c.Engine.ListLimit = 0 }, "list_limit"},
		{"bad transport", func(c *Config) { c.MCP.Transport = "sse" }, "invalid mcp transport"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}
