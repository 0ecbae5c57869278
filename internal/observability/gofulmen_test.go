package observability_test

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"go.uber.org/zap"

	"github.com/stocklens/stocklens/internal/observability"
)

func TestLoggerInitialization(t *testing.T) {
	t.Run("CLI logger", func(t *testing.T) {
		observability.InitCLILogger("stocklens-test", false)

		if observability.CLILogger == nil {
			t.Fatal("CLI logger should not be nil after initialization")
		}

		observability.CLILogger.Info("Checked candidate",
			zap.String("retailer", "acme-parts"),
			zap.String("status", "live"))
	})

	t.Run("CLI logger verbose", func(t *testing.T) {
		observability.InitCLILogger("stocklens-test", true)

		if observability.CLILogger == nil {
			t.Fatal("CLI logger should not be nil after initialization")
		}

		// Verbose mode lowers the level to DEBUG; the call must not panic
		// even if the sink filters it.
		observability.CLILogger.Debug("Candidate evidence",
			zap.String("signal", "add-to-cart"))
	})

	t.Run("Server logger", func(t *testing.T) {
		observability.InitServerLogger("stocklens-test", "info")

		if observability.ServerLogger == nil {
			t.Fatal("Server logger should not be nil after initialization")
		}

		observability.ServerLogger.Info("Poll cycle finished",
			zap.String("retailer", "acme-parts"),
			zap.Int("candidates", 12))
	})
}

func TestServerLoggerAcceptsAllLevelStrings(t *testing.T) {
	// Unknown strings fall back to the default level rather than failing,
	// so a typo in STOCKLENS_LOG_LEVEL never leaves the server logless.
	for _, level := range []string{"trace", "debug", "info", "warn", "error", "nonsense", ""} {
		t.Run("level "+level, func(t *testing.T) {
			observability.InitServerLogger("stocklens-test", level)

			if observability.ServerLogger == nil {
				t.Fatalf("Server logger should survive level %q", level)
			}

			observability.ServerLogger.Info("probe", zap.String("level", level))
		})
	}
}

// The version command reports the embedded crucible asset versions; these
// checks keep that output from silently going blank on an upgrade.
func TestCrucibleVersionInfo(t *testing.T) {
	t.Run("version struct", func(t *testing.T) {
		version := crucible.GetVersion()

		if version.Gofulmen == "" {
			t.Error("Gofulmen version should not be empty")
		}

		if version.Crucible == "" {
			t.Error("Crucible version should not be empty")
		}

		t.Logf("Gofulmen version: %s", version.Gofulmen)
		t.Logf("Crucible version: %s", version.Crucible)
	})

	t.Run("version string", func(t *testing.T) {
		versionStr := crucible.GetVersionString()

		if versionStr == "" {
			t.Error("Version string should not be empty")
		}

		t.Logf("Version string: %s", versionStr)
	})
}
