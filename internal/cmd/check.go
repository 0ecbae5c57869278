package cmd

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stocklens/stocklens/internal/config"
	"github.com/stocklens/stocklens/internal/core"
	"github.com/stocklens/stocklens/internal/core/budget"
	"github.com/stocklens/stocklens/internal/core/checker"
	"github.com/stocklens/stocklens/internal/core/configres"
	"github.com/stocklens/stocklens/internal/core/evaluate"
	"github.com/stocklens/stocklens/internal/core/fetch"
	"github.com/stocklens/stocklens/internal/core/registry"
	"github.com/stocklens/stocklens/internal/core/store"
	"github.com/stocklens/stocklens/internal/observability"
	"github.com/stocklens/stocklens/internal/output"
)

var checkCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Probe one product URL",
	Long: `Fetch a single product URL and report its availability verdict without
touching candidate state. Useful for tuning evidence rules and verifying
that a retailer's pages still parse.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().String("retailer", "", "Retailer slug for timeout and live-rule selection")
	checkCmd.Flags().Bool("render", false, "Force render mode for this fetch")
	checkCmd.Flags().String("output", "table", "Output format: table, json, markdown")
}

func runCheck(cmd *cobra.Command, args []string) error {
	rawURL := args[0]
	if err := validateCandidateURL(rawURL); err != nil {
		return err
	}

	slug, err := cmd.Flags().GetString("retailer")
	if err != nil {
		return err
	}
	if slug != "" {
		if err := validateSlug(slug); err != nil {
			return err
		}
	}

	forceRender, err := cmd.Flags().GetBool("render")
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
	startedAt := time.Now()
	cfg, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

	chk := buildChecker(cfg, db, observability.CLILogger)
	report := chk.Probe(ctx, rawURL, slug, forceRender)

	formatter := output.NewFormatter(format)
	rendered, err := formatter.FormatReport(&report)
	if err != nil {
		return err
	}
	if rendered != "" {
		fmt.Println(rendered)
	}

	if format != output.FormatJSON {
		logThroughput(1, startedAt)
	}
	return nil
}

// validateSlug enforces the retailer slug shape shared with the store schema.
func validateSlug(slug string) error {
	if len(slug) < 1 || len(slug) > 63 {
		return errors.New("retailer slug must be 1-63 characters")
	}

	matched, err := regexp.MatchString(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`, slug)
	if err != nil {
		return fmt.Errorf("slug validation failed: %w", err)
	}
	if !matched {
		return errors.New("retailer slug must be lowercase alphanumeric with optional hyphens")
	}

	return nil
}

func logThroughput(count int, startedAt time.Time) {
	if count <= 0 {
		return
	}
	elapsed := time.Since(startedAt)
	if elapsed <= 0 {
		return
	}
	rate := float64(count) / elapsed.Seconds()
	observability.CLILogger.Info(
		"Check throughput",
		zap.Int("checks", count),
		zap.Duration("elapsed", elapsed),
		zap.Float64("rate_per_sec", rate),
	)
}

// buildChecker wires the candidate checker the way every entry point shares
// it: registry over the store, dynamic config ahead of environment overrides,
// and the store-backed budget controller in front of the fetch pipeline.
func buildChecker(cfg *config.Config, db *store.Store, logger *logging.Logger) *checker.CandidateChecker {
	reg := &registry.Registry{Store: db}
	dynamic := &configres.DynamicProvider{Store: db}
	env := cfg.RetailerSettings()

	return &checker.CandidateChecker{
		Store:     db,
		Retailers: reg,
		Budget: &budget.Controller{
			Store:   db,
			Dynamic: dynamic,
			Env:     env,
		},
		Fetcher:   fetch.New(nil),
		Evaluator: evaluate.New(),
		Settings: &configres.Resolver{
			Providers: []configres.Provider{dynamic, env},
		},
		BatchSize:     cfg.Checker.BatchSize,
		Delay:         cfg.Checker.Delay,
		RenderTimeout: cfg.Render.Timeout,
		RenderDefault: core.ParseRenderBehavior(cfg.Render.Behavior),
		SessionReuse:  cfg.Render.SessionReuse,
		Logger:        logger,
	}
}
