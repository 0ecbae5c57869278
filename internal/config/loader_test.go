package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocklens/stocklens/internal/core/configres"
)

func findRepoRootForTest(t *testing.T) string {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	t.Fatalf("could not locate repo root containing go.mod from %s", cwd)
	return ""
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	// Regression test: in CI containers the repo checkout may be outside $HOME.
	// When $HOME is not an ancestor of the repo, pathfinder's default home boundary
	// can prevent repo root discovery unless a CI boundary hint is applied.
	t.Run("CIBoundaryHint", func(t *testing.T) {
		repoRoot := findRepoRootForTest(t)
		t.Setenv("HOME", t.TempDir())
		t.Setenv("CI", "true")
		t.Setenv("FULMEN_WORKSPACE_ROOT", repoRoot)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)
	})

	// Test basic config loading with defaults
	t.Run("LoadDefaults", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", t.TempDir())

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify server defaults
		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		// Verify store defaults
		assert.Equal(t, "libsql", cfg.Store.Driver)
		expectedStorePath := filepath.Join(gfconfig.GetAppDataDir("stocklens"), "stocklens.db")
		assert.Equal(t, expectedStorePath, cfg.Store.Path)
		assert.Equal(t, "", cfg.Store.URL)
		assert.Equal(t, "", cfg.Store.AuthToken)

		// Verify checker defaults
		assert.Equal(t, 20, cfg.Checker.BatchSize)
		assert.Equal(t, 1500*time.Millisecond, cfg.Checker.Delay)
		assert.Equal(t, 30*time.Second, cfg.Checker.Interval)
		assert.Equal(t, 5*time.Second, cfg.Checker.Jitter)

		// Verify render policy defaults
		assert.Equal(t, "on_block", cfg.Render.Behavior)
		assert.True(t, cfg.Render.SessionReuse)
		assert.Equal(t, 30*time.Second, cfg.Render.Timeout)
		assert.Empty(t, cfg.Render.BehaviorOverrides)

		// Verify budget defaults (shipped per-retailer limits)
		assert.Equal(t, 30, cfg.Budget.Limits["bestbuy"])
		assert.Equal(t, 6, cfg.Budget.Limits["target"])
		assert.Equal(t, 4, cfg.Budget.Limits["pokemoncenter"])

		// Verify filter defaults
		assert.Contains(t, cfg.Filter.Include, "pokemon")
		assert.Contains(t, cfg.Filter.Exclude, "plush")

		// Verify logging defaults
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "SIMPLE", cfg.Logging.Profile)

		// Verify metrics defaults
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)

		// Verify health defaults
		assert.True(t, cfg.Health.Enabled)

		// Verify debug defaults
		assert.False(t, cfg.Debug.Enabled)
		assert.False(t, cfg.Debug.PprofEnabled)
	})

	// Test runtime overrides
	t.Run("RuntimeOverrides", func(t *testing.T) {
		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify overrides were applied
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)

		// Verify non-overridden values remain default
		assert.Equal(t, "SIMPLE", cfg.Logging.Profile)
		assert.Equal(t, 9090, cfg.Metrics.Port)
	})

	// Test environment variable overrides
	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("STOCKLENS_PORT", "3000")
		t.Setenv("STOCKLENS_LOG_LEVEL", "warn")
		t.Setenv("STOCKLENS_METRICS_ENABLED", "false")
		t.Setenv("STOCKLENS_BATCH_SIZE", "50")
		t.Setenv("STOCKLENS_RENDER_BEHAVIOR", "never")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify env overrides were applied
		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, 50, cfg.Checker.BatchSize)
		assert.Equal(t, "never", cfg.Render.Behavior)
	})

	// Test per-retailer environment overrides
	t.Run("RetailerEnvOverrides", func(t *testing.T) {
		t.Setenv("STOCKLENS_BUDGET_BESTBUY", "45")
		t.Setenv("STOCKLENS_BUDGET_GAMESTOP", "not-a-number")
		t.Setenv("STOCKLENS_BUDGET_WALMART", "0")
		t.Setenv("STOCKLENS_RENDER_BEHAVIOR_TARGET", "always")
		t.Setenv("STOCKLENS_SESSION_REUSE_POKEMONCENTER", "false")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, 45, cfg.Budget.Limits["bestbuy"])
		// Unparsable and zero values degrade to the shipped defaults
		assert.Equal(t, 6, cfg.Budget.Limits["gamestop"])
		assert.Equal(t, 20, cfg.Budget.Limits["walmart"])

		assert.Equal(t, "always", cfg.Render.BehaviorOverrides["target"])
		assert.Equal(t, "false", cfg.Render.SessionOverrides["pokemoncenter"])

		// The global default is untouched by per-retailer overrides
		assert.Equal(t, "on_block", cfg.Render.Behavior)
	})

	// Test config precedence: runtime > env > defaults
	t.Run("ConfigPrecedence", func(t *testing.T) {
		t.Setenv("STOCKLENS_PORT", "4000")

		// Runtime override should win
		overrides := map[string]any{
			"server": map[string]any{
				"port": 5000,
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Runtime override should take precedence over env var
		assert.Equal(t, 5000, cfg.Server.Port)
	})
}

func TestGetConfig(t *testing.T) {
	ctx := context.Background()

	// Load config first
	cfg, err := Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Test GetConfig returns the same instance
	t.Run("GetConfigReturnsLoadedConfig", func(t *testing.T) {
		retrieved := GetConfig()
		assert.NotNil(t, retrieved)
		assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
		assert.Equal(t, cfg.Logging.Level, retrieved.Logging.Level)
	})
}

func TestEnvSpecs(t *testing.T) {
	// Need to set app identity for env specs
	ctx := context.Background()
	_, err := Load(ctx)
	require.NoError(t, err)

	specs := getEnvSpecs()
	assert.NotEmpty(t, specs)

	// Verify critical env var mappings exist
	envVarNames := make(map[string]bool)
	for _, spec := range specs {
		envVarNames[spec.Name] = true
	}

	// Check required Workhorse Standard env vars
	assert.True(t, envVarNames["STOCKLENS_LOG_LEVEL"], "LOG_LEVEL env var must be mapped")
	assert.True(t, envVarNames["STOCKLENS_PORT"], "PORT env var must be mapped")
	assert.True(t, envVarNames["STOCKLENS_HOST"], "HOST env var must be mapped")
	assert.True(t, envVarNames["STOCKLENS_METRICS_PORT"], "METRICS_PORT env var must be mapped")
	assert.True(t, envVarNames["STOCKLENS_DB_PATH"], "DB_PATH env var must be mapped")
	assert.True(t, envVarNames["STOCKLENS_BATCH_SIZE"], "BATCH_SIZE env var must be mapped")
	assert.True(t, envVarNames["STOCKLENS_RENDER_BEHAVIOR"], "RENDER_BEHAVIOR env var must be mapped")
}

func TestDurationParsing(t *testing.T) {
	ctx := context.Background()

	// Test duration parsing from string env var
	t.Run("DurationFromEnv", func(t *testing.T) {
		t.Setenv("STOCKLENS_READ_TIMEOUT", "45s")
		t.Setenv("STOCKLENS_SHUTDOWN_TIMEOUT", "5m")
		t.Setenv("STOCKLENS_DELAY", "2s")
		t.Setenv("STOCKLENS_RENDER_TIMEOUT", "90s")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 5*time.Minute, cfg.Server.ShutdownTimeout)
		assert.Equal(t, 2*time.Second, cfg.Checker.Delay)
		assert.Equal(t, 90*time.Second, cfg.Render.Timeout)
	})
}

func TestConfigReload(t *testing.T) {
	ctx := context.Background()

	// Load initial config
	cfg1, err := Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg1)
	initialPort := cfg1.Server.Port

	// Reload with different runtime overrides
	overrides := map[string]any{
		"server": map[string]any{
			"port": initialPort + 1000,
		},
	}

	cfg2, err := Load(ctx, overrides)
	require.NoError(t, err)
	require.NotNil(t, cfg2)

	// Verify reload updated the config
	assert.Equal(t, initialPort+1000, cfg2.Server.Port)

	// Verify GetConfig returns the updated config
	current := GetConfig()
	assert.Equal(t, cfg2.Server.Port, current.Server.Port)
}

func TestRetailerSettings(t *testing.T) {
	cfg := &Config{
		Budget: BudgetConfig{Limits: map[string]int{
			"bestbuy": 30,
			"target":  0, // dropped: non-positive
		}},
		Render: RenderConfig{
			Behavior:          "on_block",
			BehaviorOverrides: map[string]string{"target": "always"},
			SessionOverrides:  map[string]string{"pokemoncenter": "false"},
		},
	}

	provider := cfg.RetailerSettings()
	ctx := context.Background()

	value, ok := provider.Lookup(ctx, configres.SettingBudget, "bestbuy")
	require.True(t, ok)
	assert.Equal(t, "30", value)

	_, ok = provider.Lookup(ctx, configres.SettingBudget, "target")
	assert.False(t, ok)

	value, ok = provider.Lookup(ctx, configres.SettingRenderBehavior, "target")
	require.True(t, ok)
	assert.Equal(t, "always", value)

	value, ok = provider.Lookup(ctx, configres.SettingSessionReuse, "pokemoncenter")
	require.True(t, ok)
	assert.Equal(t, "false", value)

	// Global defaults are not served here; the resolver fallback carries them
	_, ok = provider.Lookup(ctx, configres.SettingRenderBehavior, "gamestop")
	assert.False(t, ok)
}
