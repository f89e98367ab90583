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
auth:
  enabled: true
  api_key: secret
places:
  api_key: places-key
  omni_categories: "plumber, roofer"
  page_delay_ms: 0
  default_lat: 40.7
  default_lng: -74.0
probe:
  timeout_seconds: 4
  tls_timeout_seconds: 2
enrich:
  concurrency: 3
  bulk_default_limit: 10
queue:
  depth: 8
  workers: 1
database:
  dsn: postgres://localhost/leads
  max_conn_lifetime: 5m
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
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Places.APIKey != "places-key" || cfg.Places.OmniCategories != "plumber, roofer" {
		t.Fatalf("expected places overrides to apply: %+v", cfg.Places)
	}
	if cfg.PageDelay() != 0 {
		t.Fatalf("expected zero page delay, got %v", cfg.PageDelay())
	}
	if cfg.ProbeTimeout() != 4*time.Second {
		t.Fatalf("expected 4s probe timeout, got %v", cfg.ProbeTimeout())
	}
	if cfg.Enrich.Concurrency != 3 || cfg.Enrich.BulkDefaultLimit != 10 {
		t.Fatalf("expected enrich overrides: %+v", cfg.Enrich)
	}
	if cfg.Database.MaxConnLifetime != 5*time.Minute {
		t.Fatalf("expected 5m conn lifetime, got %v", cfg.Database.MaxConnLifetime)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected production logging")
	}
	// Untouched keys keep their defaults.
	if cfg.Places.NearbyMonthlyLimit != 5000 || cfg.Places.DetailsMonthlyLimit != 10000 {
		t.Fatalf("expected default usage limits, got %+v", cfg.Places)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PageDelay() != 2*time.Second {
		t.Fatalf("expected 2s page delay, got %v", cfg.PageDelay())
	}
	if cfg.Probe.TLSTimeoutSeconds != 5 || cfg.Probe.TimeoutSeconds != 10 {
		t.Fatalf("unexpected probe defaults: %+v", cfg.Probe)
	}
	if !strings.Contains(cfg.Probe.UserAgent, "Chrome/91") {
		t.Fatalf("expected desktop chrome user agent, got %q", cfg.Probe.UserAgent)
	}
	if cfg.Enrich.Concurrency != 1 || cfg.Enrich.BulkDefaultLimit != 5 {
		t.Fatalf("unexpected enrich defaults: %+v", cfg.Enrich)
	}
}

func TestLoadLegacyEnvAliases(t *testing.T) {
	t.Setenv("GOOGLE_PLACES_API_KEY", "legacy-key")
	t.Setenv("OMNI_SEARCH_CATEGORIES", "dentist,lawyer")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Places.APIKey != "legacy-key" {
		t.Fatalf("expected legacy api key, got %q", cfg.Places.APIKey)
	}
	if cfg.Places.OmniCategories != "dentist,lawyer" {
		t.Fatalf("expected legacy categories, got %q", cfg.Places.OmniCategories)
	}
}

func TestLoadPrefixedEnvWins(t *testing.T) {
	t.Setenv("GOOGLE_PLACES_API_KEY", "legacy-key")
	t.Setenv("LEADSCAN_PLACES_API_KEY", "prefixed-key")
	t.Setenv("LEADSCAN_ENRICH_CONCURRENCY", "4")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Places.APIKey != "prefixed-key" {
		t.Fatalf("expected prefixed api key, got %q", cfg.Places.APIKey)
	}
	if cfg.Enrich.Concurrency != 4 {
		t.Fatalf("expected concurrency 4, got %d", cfg.Enrich.Concurrency)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		Places: PlacesConfig{TimeoutSeconds: 15},
		Probe:  ProbeConfig{TimeoutSeconds: 10},
		Enrich: EnrichConfig{Concurrency: 1},
		Queue:  QueueConfig{Workers: 1},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "negative page delay",
			cfg: func() Config {
				c := base
				c.Places.PageDelayMs = -1
				return c
			}(),
			want: "places.page_delay_ms",
		},
		{
			name: "invalid probe timeout",
			cfg: func() Config {
				c := base
				c.Probe.TimeoutSeconds = 0
				return c
			}(),
			want: "probe.timeout_seconds",
		},
		{
			name: "invalid concurrency",
			cfg: func() Config {
				c := base
				c.Enrich.Concurrency = 0
				return c
			}(),
			want: "enrich.concurrency",
		},
		{
			name: "no workers",
			cfg: func() Config {
				c := base
				c.Queue.Workers = 0
				return c
			}(),
			want: "queue.workers",
		},
		{
			name: "auth missing api key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
		{
			name: "rate limit without rps",
			cfg: func() Config {
				c := base
				c.RateLimit.Enabled = true
				return c
			}(),
			want: "rate_limit.default_rps",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
