// Package config handles YAML configuration loading with environment
// variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config is the top-level Phenotrack configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimitRPM    int64         `yaml:"rate_limit_rpm"` // per-client requests/min, 0 = unlimited
	WriteKey        string        `yaml:"write_key"`      // pre-shared key for POST /phenology/point, "" = open
}

// Metric store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// StorageConfig selects and configures the metric store.
type StorageConfig struct {
	Backend string `yaml:"backend"` // "memory" or "sqlite"
	DSN     string `yaml:"dsn"`     // sqlite file path or ":memory:"
	DataDir string `yaml:"data_dir"`
}

// CacheConfig holds point-metric cache settings.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	MaxSize int           `yaml:"max_size"`
	TTL     time.Duration `yaml:"ttl"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

// IngestConfig holds STAC ingestion planner settings.
type IngestConfig struct {
	STACURL           string        `yaml:"stac_url"`
	Collection        string        `yaml:"collection"`
	Token             string        `yaml:"token"` // optional bearer token
	SearchCacheTTL    time.Duration `yaml:"search_cache_ttl"`
	VerifyConcurrency int           `yaml:"verify_concurrency"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file, expanding environment
// variables and validating the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when the file omits a section.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			DSN:     "phenotrack.db",
			DataDir: "data",
		},
		Cache: CacheConfig{
			Enabled: true,
			MaxSize: 50_000,
			TTL:     5 * time.Minute,
		},
		Ingest: IngestConfig{
			STACURL:           "https://planetarycomputer.microsoft.com/api/stac/v1",
			Collection:        "modis-13Q1-061",
			SearchCacheTTL:    10 * time.Minute,
			VerifyConcurrency: 8,
		},
	}
}

// Validate rejects configurations the service cannot start with. Cache
// bounds are checked here as well as at cache construction, so a bad
// value fails before any component is built.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Cache.Enabled {
		if c.Cache.MaxSize <= 0 {
			return fmt.Errorf("config: cache.max_size must be > 0, got %d", c.Cache.MaxSize)
		}
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("config: cache.ttl must be > 0, got %v", c.Cache.TTL)
		}
	}
	if c.Telemetry.Tracing.Enabled && c.Telemetry.Tracing.Endpoint == "" {
		return fmt.Errorf("config: tracing enabled without an endpoint")
	}
	if c.Server.RateLimitRPM < 0 {
		return fmt.Errorf("config: server.rate_limit_rpm must be >= 0, got %d", c.Server.RateLimitRPM)
	}
	if c.Ingest.VerifyConcurrency < 0 {
		return fmt.Errorf("config: ingest.verify_concurrency must be >= 0, got %d", c.Ingest.VerifyConcurrency)
	}
	return nil
}
