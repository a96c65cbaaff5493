package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Listen != ":8080" {
		t.Errorf("Server.Listen = %q, want %q", cfg.Server.Listen, ":8080")
	}
	if cfg.Upstream.CargoDownload != "https://static.crates.io/crates" {
		t.Errorf("Upstream.CargoDownload = %q", cfg.Upstream.CargoDownload)
	}
	if cfg.Storage.URL != "" {
		t.Errorf("Storage.URL = %q, want publishing disabled by default", cfg.Storage.URL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.Log.Level = "invalid" },
			wantErr: true,
		},
		{
			name:    "invalid log format",
			modify:  func(c *Config) { c.Log.Format = "invalid" },
			wantErr: true,
		},
		{
			name:    "uppercase log level",
			modify:  func(c *Config) { c.Log.Level = "DEBUG" },
			wantErr: false,
		},
		{
			name:    "file storage url",
			modify:  func(c *Config) { c.Storage.URL = "file:///var/lib/crates" },
			wantErr: false,
		},
		{
			name:    "storage path without scheme",
			modify:  func(c *Config) { c.Storage.URL = "/var/lib/crates" },
			wantErr: true,
		},
		{
			name:    "empty cargo download",
			modify:  func(c *Config) { c.Upstream.CargoDownload = "" },
			wantErr: true,
		},
		{
			name:    "empty listen",
			modify:  func(c *Config) { c.Server.Listen = "" },
			wantErr: true,
		},
		{
			name:    "invalid max upload size",
			modify:  func(c *Config) { c.Server.MaxUploadSize = "invalid" },
			wantErr: true,
		},
		{
			name:    "negative max upload size",
			modify:  func(c *Config) { c.Server.MaxUploadSize = "-5MB" },
			wantErr: true,
		},
		{
			name:    "unlimited upload size",
			modify:  func(c *Config) { c.Server.MaxUploadSize = "" },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"100", 100, false},
		{"1KB", 1024, false},
		{"1K", 1024, false},
		{"1MB", 1024 * 1024, false},
		{"1M", 1024 * 1024, false},
		{"1GB", 1024 * 1024 * 1024, false},
		{"1G", 1024 * 1024 * 1024, false},
		{"10GB", 10 * 1024 * 1024 * 1024, false},
		{"1.5GB", int64(1.5 * 1024 * 1024 * 1024), false},
		{"1TB", 1024 * 1024 * 1024 * 1024, false},
		{"invalid", 0, true},
		{"10XB", 0, true},
		{"-5MB", 0, true},
		{"-1", 0, true},
		{"NaNMB", 0, true},
		{"InfGB", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseSize(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
log:
  level: "debug"
  format: "json"
storage:
  url: "s3://crates?endpoint=http://localhost:9000"
metrics:
  textfile: "/var/lib/node_exporter/repackage.prom"
server:
  listen: ":3000"
  max_upload_size: "10MB"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}
	if cfg.Storage.URL != "s3://crates?endpoint=http://localhost:9000" {
		t.Errorf("Storage.URL = %q", cfg.Storage.URL)
	}
	if cfg.Metrics.Textfile != "/var/lib/node_exporter/repackage.prom" {
		t.Errorf("Metrics.Textfile = %q", cfg.Metrics.Textfile)
	}
	if cfg.Server.Listen != ":3000" {
		t.Errorf("Server.Listen = %q, want %q", cfg.Server.Listen, ":3000")
	}
	if cfg.Server.MaxUploadSize != "10MB" {
		t.Errorf("Server.MaxUploadSize = %q, want %q", cfg.Server.MaxUploadSize, "10MB")
	}
	// Keys absent from the file keep their defaults.
	if cfg.Upstream.CargoDownload != "https://static.crates.io/crates" {
		t.Errorf("Upstream.CargoDownload = %q, want default", cfg.Upstream.CargoDownload)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	content := `{
		"upstream": {"cargo_download": "https://mirror.example.com/crates"},
		"server": {"listen": ":4000"}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Listen != ":4000" {
		t.Errorf("Server.Listen = %q, want %q", cfg.Server.Listen, ":4000")
	}
	if cfg.Upstream.CargoDownload != "https://mirror.example.com/crates" {
		t.Errorf("Upstream.CargoDownload = %q", cfg.Upstream.CargoDownload)
	}
}

func TestLoadFromEnv(t *testing.T) {
	cfg := Default()

	t.Setenv("REPACKAGE_LISTEN", ":9000")
	t.Setenv("REPACKAGE_STORAGE_URL", "file:///env/crates")
	t.Setenv("REPACKAGE_METRICS_TEXTFILE", "/env/repackage.prom")
	t.Setenv("REPACKAGE_LOG_LEVEL", "debug")
	t.Setenv("REPACKAGE_MAX_UPLOAD_SIZE", "1GB")

	cfg.LoadFromEnv()

	if cfg.Server.Listen != ":9000" {
		t.Errorf("Server.Listen = %q, want %q", cfg.Server.Listen, ":9000")
	}
	if cfg.Storage.URL != "file:///env/crates" {
		t.Errorf("Storage.URL = %q", cfg.Storage.URL)
	}
	if cfg.Metrics.Textfile != "/env/repackage.prom" {
		t.Errorf("Metrics.Textfile = %q", cfg.Metrics.Textfile)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Server.MaxUploadSize != "1GB" {
		t.Errorf("Server.MaxUploadSize = %q, want %q", cfg.Server.MaxUploadSize, "1GB")
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}
