// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Places    PlacesConfig    `mapstructure:"places"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Enrich    EnrichConfig    `mapstructure:"enrich"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Database  DatabaseConfig  `mapstructure:"database"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// PlacesConfig configures the place-search provider client.
type PlacesConfig struct {
	APIKey              string  `mapstructure:"api_key"`
	BaseURL             string  `mapstructure:"base_url"`
	OmniCategories      string  `mapstructure:"omni_categories"`
	PageDelayMs         int     `mapstructure:"page_delay_ms"`
	TimeoutSeconds      int     `mapstructure:"timeout_seconds"`
	EventBuffer         int     `mapstructure:"event_buffer"`
	DefaultLat          float64 `mapstructure:"default_lat"`
	DefaultLng          float64 `mapstructure:"default_lng"`
	NearbyMonthlyLimit  int64   `mapstructure:"nearby_monthly_limit"`
	DetailsMonthlyLimit int64   `mapstructure:"details_monthly_limit"`
}

// ProbeConfig configures website probing.
type ProbeConfig struct {
	UserAgent         string  `mapstructure:"user_agent"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	TLSTimeoutSeconds int     `mapstructure:"tls_timeout_seconds"`
	PerHostRPS        float64 `mapstructure:"per_host_rps"`
}

// EnrichConfig controls batch enrichment.
type EnrichConfig struct {
	Concurrency      int    `mapstructure:"concurrency"`
	BulkDefaultLimit int    `mapstructure:"bulk_default_limit"`
	Topic            string `mapstructure:"topic"`
}

// QueueConfig sizes the bulk-analysis queue and worker pool.
type QueueConfig struct {
	Depth   int `mapstructure:"depth"`
	Workers int `mapstructure:"workers"`
}

// DatabaseConfig controls access to Postgres.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// RateLimitConfig paces calls to the place-search provider.
type RateLimitConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	DefaultRPS   float64 `mapstructure:"default_rps"`
	DefaultBurst int     `mapstructure:"default_burst"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEADSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

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
	v.SetDefault("server.port", 8080)
	v.SetDefault("places.base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("places.page_delay_ms", 2000)
	v.SetDefault("places.timeout_seconds", 15)
	v.SetDefault("places.event_buffer", 16)
	v.SetDefault("places.default_lat", 37.7749)
	v.SetDefault("places.default_lng", -122.4194)
	v.SetDefault("places.nearby_monthly_limit", 5000)
	v.SetDefault("places.details_monthly_limit", 10000)
	v.SetDefault("probe.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 "+
		"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("probe.timeout_seconds", 10)
	v.SetDefault("probe.tls_timeout_seconds", 5)
	v.SetDefault("probe.per_host_rps", 0)
	v.SetDefault("enrich.concurrency", 1)
	v.SetDefault("enrich.bulk_default_limit", 5)
	v.SetDefault("enrich.topic", "lead-analyzed")
	v.SetDefault("queue.depth", 64)
	v.SetDefault("queue.workers", 2)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.max_conn_lifetime", "30m")
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.default_rps", 10)
	v.SetDefault("rate_limit.default_burst", 1)
	v.SetDefault("logging.development", true)
}

// bindLegacyEnv keeps the unprefixed variable names working alongside the
// LEADSCAN_ ones.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"places.api_key":         {"LEADSCAN_PLACES_API_KEY", "GOOGLE_PLACES_API_KEY"},
		"places.omni_categories": {"LEADSCAN_PLACES_OMNI_CATEGORIES", "OMNI_SEARCH_CATEGORIES"},
		"database.dsn":           {"LEADSCAN_DATABASE_DSN", "DATABASE_URL"},
		"server.port":            {"LEADSCAN_SERVER_PORT", "PORT"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Places.PageDelayMs < 0 {
		return fmt.Errorf("places.page_delay_ms must be >= 0")
	}
	if c.Places.TimeoutSeconds <= 0 {
		return fmt.Errorf("places.timeout_seconds must be > 0")
	}
	if c.Probe.TimeoutSeconds <= 0 {
		return fmt.Errorf("probe.timeout_seconds must be > 0")
	}
	if c.Enrich.Concurrency <= 0 {
		return fmt.Errorf("enrich.concurrency must be > 0")
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("queue.workers must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.RateLimit.Enabled && c.RateLimit.DefaultRPS <= 0 {
		return fmt.Errorf("rate_limit.default_rps must be > 0 when rate limiting is enabled")
	}
	return nil
}

// PageDelay returns the pagination token activation delay.
func (c Config) PageDelay() time.Duration {
	return time.Duration(c.Places.PageDelayMs) * time.Millisecond
}

// ProbeTimeout returns the per-fetch website timeout.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}
