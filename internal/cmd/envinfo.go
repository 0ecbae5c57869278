package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/stocklens/stocklens/internal/config"
	"github.com/stocklens/stocklens/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display comprehensive environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()

		observability.CLILogger.Info("=== StockLens Environment Information ===")
		observability.CLILogger.Info("")

		// Application Info
		identity := GetAppIdentity()
		observability.CLILogger.Info("Application:")
		observability.CLILogger.Info("  Name:       " + identity.BinaryName)
		observability.CLILogger.Info("  Version:    " + versionInfo.Version)
		observability.CLILogger.Info("  Commit:     " + versionInfo.Commit)
		observability.CLILogger.Info("  Built:      " + versionInfo.BuildDate)
		observability.CLILogger.Info("")

		// SSOT Info
		observability.CLILogger.Info("SSOT:")
		observability.CLILogger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		observability.CLILogger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		observability.CLILogger.Info("")

		// Runtime Info
		observability.CLILogger.Info("Runtime:")
		observability.CLILogger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		observability.CLILogger.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		observability.CLILogger.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		observability.CLILogger.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		observability.CLILogger.Info("")

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			observability.CLILogger.Warn("Config load failed", zap.Error(err))
			return
		}

		// Configuration
		observability.CLILogger.Info("Configuration:")
		observability.CLILogger.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		observability.CLILogger.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		observability.CLILogger.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		observability.CLILogger.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		observability.CLILogger.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			observability.CLILogger.Info("  DB URL:         "+cfg.Store.URL, zap.String("db_url", cfg.Store.URL))
		} else {
			observability.CLILogger.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		observability.CLILogger.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		observability.CLILogger.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		observability.CLILogger.Info("")

		// Checker Configuration
		observability.CLILogger.Info("Checker:")
		observability.CLILogger.Info(fmt.Sprintf("  Batch Size:     %d", cfg.Checker.BatchSize), zap.Int("batch_size", cfg.Checker.BatchSize))
		observability.CLILogger.Info("  Delay:          " + cfg.Checker.Delay.String())
		observability.CLILogger.Info("  Interval:       " + cfg.Checker.Interval.String())
		observability.CLILogger.Info("  Jitter:         " + cfg.Checker.Jitter.String())
		if len(cfg.Budget.Limits) > 0 {
			observability.CLILogger.Info(fmt.Sprintf("  Budget Limits:  %d retailer(s) configured", len(cfg.Budget.Limits)))
		}
		observability.CLILogger.Info("")

		// Render Configuration
		observability.CLILogger.Info("Render:")
		observability.CLILogger.Info("  Behavior:       "+cfg.Render.Behavior, zap.String("render_behavior", cfg.Render.Behavior))
		observability.CLILogger.Info(fmt.Sprintf("  Session Reuse:  %t", cfg.Render.SessionReuse), zap.Bool("session_reuse", cfg.Render.SessionReuse))
		observability.CLILogger.Info("  Timeout:        " + cfg.Render.Timeout.String())
		observability.CLILogger.Info("")

		// Retailer Credentials
		credStatus := func(value string) string {
			if strings.TrimSpace(value) != "" {
				return "(set)"
			}
			return "(not set)"
		}
		observability.CLILogger.Info("Credentials:")
		observability.CLILogger.Info("  Best Buy API Key:    " + credStatus(cfg.Credentials.BestBuyAPIKey))
		observability.CLILogger.Info("  Walmart Consumer ID: " + credStatus(cfg.Credentials.WalmartConsumerID))
		observability.CLILogger.Info("  TCGplayer Token:     " + credStatus(cfg.Credentials.TCGPlayerToken))
		observability.CLILogger.Info("")

		observability.CLILogger.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
