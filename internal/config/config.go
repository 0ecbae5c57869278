package config

import (
	"strconv"
	"time"

	"github.com/stocklens/stocklens/internal/core/configres"
)

// Config represents the complete application configuration
// following the Fulmen Forge Workhorse Standard three-layer pattern:
// Layer 1: Crucible defaults (config/stocklens/v0/stocklens-defaults.yaml)
// Layer 2: User overrides (~/.config/stocklens/stocklens/config.yaml)
// Layer 3: Environment variables and runtime overrides
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Store       StoreConfig       `mapstructure:"store"`
	Checker     CheckerConfig     `mapstructure:"checker"`
	Render      RenderConfig      `mapstructure:"render"`
	Budget      BudgetConfig      `mapstructure:"budget"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Filter      FilterConfig      `mapstructure:"filter"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Health      HealthConfig      `mapstructure:"health"`
	Debug       DebugConfig       `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// CheckerConfig contains the candidate polling loop settings.
type CheckerConfig struct {
	// BatchSize is the number of pending candidates pulled per batch.
	BatchSize int `mapstructure:"batch_size"`

	// Delay is the politeness pause between candidates within a batch.
	Delay time.Duration `mapstructure:"delay"`

	// Interval is the pause between batches in daemon mode; Jitter is the
	// random spread added on top so co-located pollers drift apart.
	Interval time.Duration `mapstructure:"interval"`
	Jitter   time.Duration `mapstructure:"jitter"`
}

// RenderConfig contains the render-mode fetch policy defaults plus
// per-retailer overrides (slug-keyed). Dynamic config store values still win
// over everything here.
type RenderConfig struct {
	// Behavior is one of always, on_block, never.
	Behavior     string        `mapstructure:"behavior"`
	SessionReuse bool          `mapstructure:"session_reuse"`
	Timeout      time.Duration `mapstructure:"timeout"`

	BehaviorOverrides map[string]string `mapstructure:"behavior_overrides"`
	SessionOverrides  map[string]string `mapstructure:"session_overrides"`
}

// BudgetConfig contains per-retailer request budget overrides (slug-keyed
// requests per minute). Retailers absent here use the hard default.
type BudgetConfig struct {
	Limits map[string]int `mapstructure:"limits"`
}

// CredentialsConfig contains retailer API secrets. Scraping retailers need
// none of these; API adapters refuse to construct without theirs.
type CredentialsConfig struct {
	BestBuyAPIKey     string `mapstructure:"bestbuy_api_key"`
	WalmartConsumerID string `mapstructure:"walmart_consumer_id"`
	WalmartKeyVersion string `mapstructure:"walmart_key_version"`
	TCGPlayerToken    string `mapstructure:"tcgplayer_token"`
}

// FilterConfig contains the product keyword filter applied to search hits.
// Empty lists fall back to the built-in trading-card defaults.
type FilterConfig struct {
	Include []string `mapstructure:"include"`
	Exclude []string `mapstructure:"exclude"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles per Fulmen Forge Workhorse Standard:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
// - ENTERPRISE: Multiple sinks, middleware, throttling, policy enforcement (production)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	// See: gofulmen/docs/crucible-go/standards/observability/logging.md
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	// Metrics are also available at the main HTTP port in JSON format
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	// Enabled controls whether debug mode is active
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// RetailerSettings flattens the per-retailer budget and render overrides from
// this config (file values merged with STOCKLENS_* environment values by the
// loader) into the resolver's static layer. Global defaults are not included;
// they reach the checker as plain fields so the resolver fallback stays the
// single source for them.
func (c *Config) RetailerSettings() *configres.StaticProvider {
	provider := &configres.StaticProvider{
		PerRetailer: map[string]map[string]string{},
	}

	set := func(setting, slug, value string) {
		if slug == "" || value == "" {
			return
		}
		bySlug, ok := provider.PerRetailer[setting]
		if !ok {
			bySlug = map[string]string{}
			provider.PerRetailer[setting] = bySlug
		}
		bySlug[slug] = value
	}

	for slug, limit := range c.Budget.Limits {
		if limit > 0 {
			set(configres.SettingBudget, slug, strconv.Itoa(limit))
		}
	}
	for slug, behavior := range c.Render.BehaviorOverrides {
		set(configres.SettingRenderBehavior, slug, behavior)
	}
	for slug, reuse := range c.Render.SessionOverrides {
		set(configres.SettingSessionReuse, slug, reuse)
	}

	return provider
}
