// Package config provides unified configuration loading for the EV assistant.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the EV assistant.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Dataset       DatasetConfig       `yaml:"dataset"`
	Model         ModelConfig         `yaml:"model"`
	Engine        EngineConfig        `yaml:"engine"`
	Cache         CacheConfig         `yaml:"cache"`
	Observability ObservabilityConfig `yaml:"observability"`
	MCP           MCPConfig           `yaml:"mcp"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// DatasetConfig selects where the vehicle table is read from.
type DatasetConfig struct {
	Source string `yaml:"source"` // csv, sqlite or postgres
	Path   string `yaml:"path"`   // CSV file or SQLite database file
	DSN    string `yaml:"dsn"`    // Postgres connection string
	Table  string `yaml:"table"`  // SQL table name
}

// ModelConfig holds the price model artifact location.
type ModelConfig struct {
	Path string `yaml:"path"`
}

// EngineConfig tunes the query engine.
type EngineConfig struct {
	FuzzyCutoff       float64  `yaml:"fuzzy_cutoff"`
	ListLimit         int      `yaml:"list_limit"`
	PriceColumn       string   `yaml:"price_column"`
	IdentifierColumns []string `yaml:"identifier_columns"`
}

// CacheConfig holds reply cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // none, memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// MCPConfig holds MCP server settings.
type MCPConfig struct {
	Transport string `yaml:"transport"` // stdio or http
	Port      int    `yaml:"port"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		cfg.Dataset.Path = ResolveRelativePath(path, cfg.Dataset.Path)
		cfg.Model.Path = ResolveRelativePath(path, cfg.Model.Path)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     15 * time.Second,
			IdleTimeout:      60 * time.Second,
			RequestTimeout:   10 * time.Second,
			GracefulShutdown: 10 * time.Second,
			AllowedOrigins:   []string{"*"},
		},
		Dataset: DatasetConfig{
			Source: "csv",
			Path:   "electric_vehicles_spec_2025.csv",
			Table:  "vehicles",
		},
		Model: ModelConfig{
			Path: "price_model.yaml",
		},
		Engine: EngineConfig{
			FuzzyCutoff:       0.25,
			ListLimit:         5,
			PriceColumn:       "price_inr",
			IdentifierColumns: []string{"source_url"},
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        10 * time.Minute,
			MaxEntries: 5000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "ev:",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "ev-assistant",
		},
		MCP: MCPConfig{
			Transport: "stdio",
			Port:      8091,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Dataset.Source {
	case "csv", "sqlite":
		if c.Dataset.Path == "" {
			return fmt.Errorf("dataset path is required for source %q", c.Dataset.Source)
		}
	case "postgres":
		if c.Dataset.DSN == "" {
			return fmt.Errorf("dataset dsn is required for source postgres")
		}
	default:
		return fmt.Errorf("invalid dataset source: %s", c.Dataset.Source)
	}

	if c.Cache.Driver != "none" && c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Engine.FuzzyCutoff <= 0 || c.Engine.FuzzyCutoff > 1 {
		return fmt.Errorf("fuzzy_cutoff must be in (0, 1], got %v", c.Engine.FuzzyCutoff)
	}

	if c.Engine.ListLimit < 1 || c.Engine.ListLimit > 50 {
		return fmt.Errorf("list_limit must be between 1 and 50")
	}

	if c.MCP.Transport != "stdio" && c.MCP.Transport != "http" {
		return fmt.Errorf("invalid mcp transport: %s", c.MCP.Transport)
	}

	return nil
}

// ListenAddr returns the host:port the HTTP API binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("EV_DATASET_SOURCE"); v != "" {
		cfg.Dataset.Source = v
	}

	if v := os.Getenv("EV_DATASET_PATH"); v != "" {
		cfg.Dataset.Path = v
	}

	if v := os.Getenv("EV_DATASET_DSN"); v != "" {
		cfg.Dataset.DSN = v
		if os.Getenv("EV_DATASET_SOURCE") == "" && strings.HasPrefix(v, "postgres") {
			cfg.Dataset.Source = "postgres"
		}
	}

	if v := os.Getenv("EV_DATASET_TABLE"); v != "" {
		cfg.Dataset.Table = v
	}

	if v := os.Getenv("EV_MODEL_PATH"); v != "" {
		cfg.Model.Path = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("CACHE_DRIVER"); v != "" {
		cfg.Cache.Driver = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	if v := os.Getenv("MCP_TRANSPORT"); v != "" {
		cfg.MCP.Transport = v
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if targetPath == "" || filepath.IsAbs(targetPath) {
		return targetPath
	}
	return filepath.Join(filepath.Dir(configPath), targetPath)
}
