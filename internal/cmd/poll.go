package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/stocklens/stocklens/internal/config"
	"github.com/stocklens/stocklens/internal/core/store"
	"github.com/stocklens/stocklens/internal/observability"
	"github.com/stocklens/stocklens/internal/output"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run the candidate polling loop",
	Long: `Check pending URL candidates in batches: budget admission, fetch,
classification, and signal emission on live transitions.

Runs as a daemon by default, pausing between batches with a jittered
interval. Use --once for a single pass with a printed summary.

Signal Handling (daemon mode):
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown after the current batch
  • Ctrl+C twice within 2s: Force quit`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)

	pollCmd.Flags().Int("batch", 0, "Candidates per batch (defaults to checker.batch_size)")
	pollCmd.Flags().Duration("interval", 0, "Pause between batches (defaults to checker.interval)")
	pollCmd.Flags().Bool("once", false, "Run a single batch and exit")
	pollCmd.Flags().String("output", "table", "Output format for --once: table, json, markdown")
}

func runPoll(cmd *cobra.Command, args []string) error {
	batchSize, err := cmd.Flags().GetInt("batch")
	if err != nil {
		return err
	}
	interval, err := cmd.Flags().GetDuration("interval")
	if err != nil {
		return err
	}
	once, err := cmd.Flags().GetBool("once")
	if err != nil {
		return err
	}
	formatValue, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(formatValue)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	cfg, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

	if once {
		return pollOnce(ctx, cfg, db, batchSize, format)
	}
	return pollDaemon(cmd, cfg, db, batchSize, interval)
}

func pollOnce(ctx context.Context, cfg *config.Config, db *store.Store, batchSize int, format output.Format) error {
	startedAt := time.Now()
	chk := buildChecker(cfg, db, observability.CLILogger)
	if batchSize > 0 {
		chk.BatchSize = batchSize
	}

	summary, err := chk.RunBatch(ctx)
	if err != nil {
		return err
	}

	view := &output.PollView{Summary: summary, Counters: chk.Counters()}
	formatter := output.NewFormatter(format)
	rendered, err := formatter.FormatPoll(view)
	if err != nil {
		return err
	}
	if rendered != "" {
		fmt.Println(rendered)
	}

	if format != output.FormatJSON {
		logThroughput(summary.Checked, startedAt)
	}
	return nil
}

func pollDaemon(cmd *cobra.Command, cfg *config.Config, db *store.Store, batchSize int, interval time.Duration) error {
	// Get app identity for telemetry namespace
	identity := GetAppIdentity()
	namespace := identity.TelemetryNamespace()

	// Daemon mode logs structured, same as serve
	logLevel := viper.GetString("logging.level")
	observability.InitServerLogger(identity.BinaryName, logLevel, namespace)

	chk := buildChecker(cfg, db, observability.ServerLogger)
	if batchSize > 0 {
		chk.BatchSize = batchSize
	}

	if interval <= 0 {
		interval = cfg.Checker.Interval
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	jitter := cfg.Checker.Jitter

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Register graceful shutdown handlers (LIFO order - last registered, first executed)
	// Handler 1: Flush logger (executed last)
	signals.OnShutdown(func(ctx context.Context) error {
		observability.ServerLogger.Info("Flushing logger...")
		if err := observability.ServerLogger.Sync(); err != nil {
			// Sync errors are often benign (stdout/stderr already closed)
			observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
				zap.Error(err))
		}
		return nil
	})

	// Handler 2: Stop the polling loop (executed first)
	signals.OnShutdown(func(context.Context) error {
		observability.ServerLogger.Info("Stopping polling loop...")
		cancel()
		return nil
	})

	// Enable double-tap force quit (Ctrl+C within 2 seconds)
	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		observability.ServerLogger.Warn("Failed to enable double-tap force quit",
			zap.Error(err))
	}

	// Start signal listener in background
	go func() {
		if err := signals.Listen(ctx); err != nil {
			observability.ServerLogger.Error("Signal handler error", zap.Error(err))
			cancel()
		}
	}()

	observability.ServerLogger.Info("Starting polling loop",
		zap.Int("batch_size", chk.BatchSize),
		zap.Duration("interval", interval),
		zap.Duration("jitter", jitter))

	for {
		summary, err := chk.RunBatch(ctx)
		switch {
		case ctx.Err() != nil:
			observability.ServerLogger.Info("Polling loop stopped")
			return nil
		case err != nil:
			observability.ServerLogger.Error("Polling pass failed", zap.Error(err))
		default:
			observability.ServerLogger.Info("Polling pass complete",
				zap.Int("checked", summary.Checked),
				zap.Int("live_found", summary.LiveFound))
		}

		select {
		case <-ctx.Done():
			observability.ServerLogger.Info("Polling loop stopped")
			return nil
		case <-time.After(pollWait(interval, jitter)):
		}
	}
}

// pollWait spreads consecutive passes by the interval plus a random share of
// the jitter window, so co-located pollers drift apart.
func pollWait(interval, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return interval
	}
	return interval + time.Duration(rand.Int63n(int64(jitter)+1))
}
