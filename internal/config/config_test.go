package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
crawler:
  concurrency: 2
  max_in_flight: 4
  request_delay_seconds: 2.5
  request_timeout_seconds: 45
  max_retries: 5
  retry_base_delay_seconds: 2
  retry_max_delay_seconds: 30
  checkpoint_interval: 25
cache:
  max_entries: 50
  ttl_minutes: 30
pagination:
  default_page_size: 20
  max_page_size: 200
snpedia:
  base_url: https://example.org
  user_agent: osgenome-test
data:
  dir: /tmp/genome-data
  checkpoint_file: /tmp/genome-data/results.json
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.Concurrency != 2 || cfg.Crawler.MaxRetries != 5 {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if got := cfg.RequestDelay(); got != 2500*time.Millisecond {
		t.Fatalf("expected request delay 2.5s, got %v", got)
	}
	if got := cfg.RequestTimeout(); got != 45*time.Second {
		t.Fatalf("expected request timeout 45s, got %v", got)
	}
	if got := cfg.RetryBaseDelay(); got != 2*time.Second {
		t.Fatalf("expected retry base delay 2s, got %v", got)
	}
	if got := cfg.CacheTTL(); got != 30*time.Minute {
		t.Fatalf("expected cache ttl 30m, got %v", got)
	}
	if cfg.Pagination.MaxPageSize != 200 {
		t.Fatalf("expected max page size 200, got %d", cfg.Pagination.MaxPageSize)
	}
	if cfg.SNPedia.BaseURL != "https://example.org" {
		t.Fatalf("expected snpedia base url override, got %q", cfg.SNPedia.BaseURL)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected development logging disabled")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Fatalf("expected default port 5000, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.Concurrency != 4 {
		t.Fatalf("expected default concurrency 4, got %d", cfg.Crawler.Concurrency)
	}
	if got := cfg.RequestDelay(); got != 1500*time.Millisecond {
		t.Fatalf("expected default request delay 1.5s, got %v", got)
	}
	if cfg.Crawler.CheckpointInterval != 10 {
		t.Fatalf("expected default checkpoint interval 10, got %d", cfg.Crawler.CheckpointInterval)
	}
	if cfg.Cache.MaxEntries != 100 {
		t.Fatalf("expected default cache capacity 100, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.Data.Dir != "data" {
		t.Fatalf("expected default data dir, got %q", cfg.Data.Dir)
	}
	if !cfg.Logging.Development {
		t.Fatalf("expected development logging by default")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"zero timeout", func(c *Config) { c.Crawler.RequestTimeoutSec = 0 }, "request_timeout"},
		{"zero retries", func(c *Config) { c.Crawler.MaxRetries = 0 }, "max_retries"},
		{"zero cache capacity", func(c *Config) { c.Cache.MaxEntries = 0 }, "cache.max_entries"},
		{"page size inversion", func(c *Config) { c.Pagination.MaxPageSize = 10 }, "max_page_size"},
		{"empty data dir", func(c *Config) { c.Data.Dir = "" }, "data.dir"},
		{"empty base url", func(c *Config) { c.SNPedia.BaseURL = "" }, "base_url"},
		{"concurrency outruns delay", func(c *Config) { c.Crawler.Concurrency = 64 }, "concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error for %s", tt.name)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestMaxInFlightFallsBackToConcurrency(t *testing.T) {
	t.Parallel()

	cfg := Config{Crawler: CrawlerConfig{Concurrency: 3}}
	if got := cfg.MaxInFlight(); got != 3 {
		t.Fatalf("expected fallback to concurrency, got %d", got)
	}
	cfg.Crawler.MaxInFlight = 8
	if got := cfg.MaxInFlight(); got != 8 {
		t.Fatalf("expected explicit max in flight, got %d", got)
	}
}
