// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/frostyslav/OSGenome/internal/ratelimit"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	SNPedia    SNPediaConfig    `mapstructure:"snpedia"`
	Data       DataConfig       `mapstructure:"data"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs the acquisition pipeline.
type CrawlerConfig struct {
	Concurrency        int     `mapstructure:"concurrency"`
	MaxInFlight        int     `mapstructure:"max_in_flight"`
	RequestDelaySec    float64 `mapstructure:"request_delay_seconds"`
	RequestTimeoutSec  int     `mapstructure:"request_timeout_seconds"`
	MaxRetries         int     `mapstructure:"max_retries"`
	RetryBaseDelaySec  int     `mapstructure:"retry_base_delay_seconds"`
	RetryMaxDelaySec   int     `mapstructure:"retry_max_delay_seconds"`
	CheckpointInterval int     `mapstructure:"checkpoint_interval"`
}

// CacheConfig bounds the in-memory dataset cache.
type CacheConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
	TTLMinutes int `mapstructure:"ttl_minutes"`
}

// PaginationConfig sets paging windows for the API.
type PaginationConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

// SNPediaConfig points the fetcher at the reference site.
type SNPediaConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
}

// DataConfig locates the on-disk datasets.
type DataConfig struct {
	Dir            string `mapstructure:"dir"`
	CheckpointFile string `mapstructure:"checkpoint_file"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OSGENOME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.max_in_flight", 4)
	v.SetDefault("crawler.request_delay_seconds", 1.5)
	v.SetDefault("crawler.request_timeout_seconds", 30)
	v.SetDefault("crawler.max_retries", 3)
	v.SetDefault("crawler.retry_base_delay_seconds", 5)
	v.SetDefault("crawler.retry_max_delay_seconds", 60)
	v.SetDefault("crawler.checkpoint_interval", 10)
	v.SetDefault("cache.max_entries", 100)
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("pagination.default_page_size", 100)
	v.SetDefault("pagination.max_page_size", 1000)
	v.SetDefault("snpedia.base_url", "https://bots.snpedia.com")
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.checkpoint_file", "data/results.json")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.RequestTimeoutSec <= 0 {
		return fmt.Errorf("crawler.request_timeout_seconds must be > 0")
	}
	if c.Crawler.MaxRetries <= 0 {
		return fmt.Errorf("crawler.max_retries must be > 0")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be > 0")
	}
	if c.Cache.TTLMinutes <= 0 {
		return fmt.Errorf("cache.ttl_minutes must be > 0")
	}
	if c.Pagination.DefaultPageSize <= 0 {
		return fmt.Errorf("pagination.default_page_size must be > 0")
	}
	if c.Pagination.MaxPageSize < c.Pagination.DefaultPageSize {
		return fmt.Errorf("pagination.max_page_size must be >= pagination.default_page_size")
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir must be set")
	}
	if c.SNPedia.BaseURL == "" {
		return fmt.Errorf("snpedia.base_url must be set")
	}
	if err := ratelimit.ValidateBudget(c.Crawler.Concurrency, c.MaxInFlight(), c.RequestDelay()); err != nil {
		return err
	}
	return nil
}

// RequestDelay converts the configured inter-dispatch spacing.
func (c Config) RequestDelay() time.Duration {
	return time.Duration(c.Crawler.RequestDelaySec * float64(time.Second))
}

// RequestTimeout converts the configured per-request budget.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Crawler.RequestTimeoutSec) * time.Second
}

// RetryBaseDelay converts the configured initial backoff.
func (c Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Crawler.RetryBaseDelaySec) * time.Second
}

// RetryMaxDelay converts the configured backoff ceiling.
func (c Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Crawler.RetryMaxDelaySec) * time.Second
}

// CacheTTL converts the configured cache entry lifetime.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

// MaxInFlight falls back to concurrency when unset.
func (c Config) MaxInFlight() int {
	if c.Crawler.MaxInFlight > 0 {
		return c.Crawler.MaxInFlight
	}
	return c.Crawler.Concurrency
}
