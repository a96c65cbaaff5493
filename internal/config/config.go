// Package config provides configuration loading and validation for repackage.
//
// Configuration can be provided via:
//   - Command line flags (highest priority)
//   - Environment variables (REPACKAGE_ prefix)
//   - Configuration file (YAML or JSON)
//
// Publishing:
//
// A repackaged crate can be uploaded to any bucket gocloud.dev/blob can open.
// Leave storage.url empty to keep the output on local disk only.
//
// Local filesystem:
//
//	storage:
//	  url: "file:///var/lib/crates"
//
// Amazon S3 or S3-compatible (MinIO, etc.):
//
//	storage:
//	  url: "s3://bucket?endpoint=http://localhost:9000"
//
// For S3, configure credentials via AWS environment variables:
//
//	AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_REGION
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for repackage.
type Config struct {
	// Log configures logging.
	Log LogConfig `json:"log" yaml:"log"`

	// Storage configures where repackaged crates are published.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Metrics configures metric export for one-shot runs.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Upstream configures where "fetch" downloads crates from.
	Upstream UpstreamConfig `json:"upstream" yaml:"upstream"`

	// Server configures "serve".
	Server ServerConfig `json:"server" yaml:"server"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `json:"format" yaml:"format"`
}

// StorageConfig configures publishing.
type StorageConfig struct {
	// URL is the bucket URL. Supported schemes:
	//   - file:///path/to/dir - Local filesystem
	//   - s3://bucket-name - Amazon S3
	// Empty disables publishing.
	URL string `json:"url" yaml:"url"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// Textfile is a path the CLI writes Prometheus metrics to after each run,
	// for the node exporter's textfile collector. Empty disables it.
	Textfile string `json:"textfile" yaml:"textfile"`
}

// UpstreamConfig configures the crate download source.
type UpstreamConfig struct {
	// CargoDownload is the upstream cargo download URL.
	// Default: https://static.crates.io/crates
	CargoDownload string `json:"cargo_download" yaml:"cargo_download"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	// Listen is the address to listen on (e.g., ":8080", "127.0.0.1:8080").
	Listen string `json:"listen" yaml:"listen"`

	// MaxUploadSize is the largest accepted request body (e.g., "50MB").
	// Empty or "0" means unlimited.
	MaxUploadSize string `json:"max_upload_size" yaml:"max_upload_size"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Upstream: UpstreamConfig{
			CargoDownload: "https://static.crates.io/crates",
		},
		Server: ServerConfig{
			Listen:        ":8080",
			MaxUploadSize: "50MB",
		},
	}
}

// Load reads configuration from a file (YAML or JSON).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		// Try YAML first, then JSON
		if err := yaml.Unmarshal(data, cfg); err != nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config (tried YAML and JSON): %w", err)
			}
		}
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to a Config.
// Environment variables use the REPACKAGE_ prefix:
//   - REPACKAGE_LOG_LEVEL
//   - REPACKAGE_LOG_FORMAT
//   - REPACKAGE_STORAGE_URL
//   - REPACKAGE_METRICS_TEXTFILE
//   - REPACKAGE_UPSTREAM_CARGO_DOWNLOAD
//   - REPACKAGE_LISTEN
//   - REPACKAGE_MAX_UPLOAD_SIZE
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("REPACKAGE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("REPACKAGE_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("REPACKAGE_STORAGE_URL"); v != "" {
		c.Storage.URL = v
	}
	if v := os.Getenv("REPACKAGE_METRICS_TEXTFILE"); v != "" {
		c.Metrics.Textfile = v
	}
	if v := os.Getenv("REPACKAGE_UPSTREAM_CARGO_DOWNLOAD"); v != "" {
		c.Upstream.CargoDownload = v
	}
	if v := os.Getenv("REPACKAGE_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("REPACKAGE_MAX_UPLOAD_SIZE"); v != "" {
		c.Server.MaxUploadSize = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
		// OK
	default:
		return fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", c.Log.Level)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
		// OK
	default:
		return fmt.Errorf("invalid log format %q (must be text or json)", c.Log.Format)
	}

	if c.Storage.URL != "" && !strings.Contains(c.Storage.URL, "://") {
		return fmt.Errorf("invalid storage.url %q (must be a bucket URL such as file:///path or s3://bucket)", c.Storage.URL)
	}

	if c.Upstream.CargoDownload == "" {
		return fmt.Errorf("upstream.cargo_download is required")
	}

	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if _, err := ParseSize(c.Server.MaxUploadSize); err != nil {
		return fmt.Errorf("invalid server.max_upload_size: %w", err)
	}

	return nil
}

// ParseSize parses a human-readable size string (e.g., "10GB", "500MB").
// Returns the size in bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" {
		return 0, nil
	}

	// Check suffixes in order of length (longest first) to avoid partial matches
	suffixes := []struct {
		suffix string
		mult   int64
	}{
		{"TB", 1024 * 1024 * 1024 * 1024},
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"T", 1024 * 1024 * 1024 * 1024},
		{"G", 1024 * 1024 * 1024},
		{"M", 1024 * 1024},
		{"K", 1024},
		{"B", 1},
	}

	for _, s2 := range suffixes {
		if strings.HasSuffix(s, s2.suffix) {
			numStr := strings.TrimSuffix(s, s2.suffix)
			num, err := strconv.ParseFloat(numStr, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number %q", numStr)
			}
			if !(num >= 0) || math.IsInf(num, 0) {
				return 0, fmt.Errorf("invalid size %q: must be a non-negative number", s)
			}
			return int64(num * float64(s2.mult)), nil
		}
	}

	// Try parsing as plain number (bytes)
	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if num < 0 {
		return 0, fmt.Errorf("invalid size %q: must be a non-negative number", s)
	}
	return num, nil
}
