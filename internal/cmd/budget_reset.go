package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stocklens/stocklens/internal/core/store"
	"github.com/stocklens/stocklens/internal/output"
)

var budgetResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset persisted budget windows",
	Long: `Drop budget window counters so the next check starts a fresh window.
Resetting does not change limits; use the config command for overrides.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}
		outPath, outDir, err := resolveOutputTargets(cmd)
		if err != nil {
			return err
		}

		all, _ := cmd.Flags().GetBool("all")
		slug, _ := cmd.Flags().GetString("slug")
		prefix, _ := cmd.Flags().GetString("prefix")
		yes, _ := cmd.Flags().GetBool("yes")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		query := store.BudgetQuery{
			All:    all,
			Slug:   strings.TrimSpace(slug),
			Prefix: strings.TrimSpace(prefix),
		}
		if err := query.Validate(); err != nil {
			return err
		}

		if query.All && !yes && !dryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		ctx := cmd.Context()
		_, db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		matched, err := db.CountBudgetWindows(ctx, query)
		if err != nil {
			return err
		}

		if outDir != "" {
			outDir, err = ensureOutDir(outDir)
			if err != nil {
				return err
			}
			outPath = filepath.Join(outDir, fmt.Sprintf("budget.reset.%s", outputExtension(format)))
		}
		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if dryRun {
			return writeBudgetResetResult(format, sink.writer, matched, 0, true)
		}

		deleted, err := db.ResetBudgetWindows(ctx, query)
		if err != nil {
			return err
		}

		return writeBudgetResetResult(format, sink.writer, matched, deleted, false)
	},
}

func writeBudgetResetResult(format output.Format, w io.Writer, matched int, deleted int64, dryRun bool) error {
	result := map[string]any{
		"matched": matched,
		"deleted": deleted,
		"dry_run": dryRun,
	}

	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	if dryRun {
		_, err := fmt.Fprintf(w, "Would reset %d budget window(s)\n", matched)
		return err
	}
	_, err := fmt.Fprintf(w, "Reset %d/%d budget window(s)\n", deleted, matched)
	return err
}

func init() {
	budgetResetCmd.Flags().Bool("all", false, "Reset all retailers")
	budgetResetCmd.Flags().String("slug", "", "Reset a single retailer (exact match)")
	budgetResetCmd.Flags().String("prefix", "", "Reset retailers with matching slug prefix")
	budgetResetCmd.Flags().Bool("yes", false, "Confirm destructive reset")
	budgetResetCmd.Flags().Bool("dry-run", false, "Show what would be reset")
	budgetResetCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json")
	budgetResetCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	budgetResetCmd.Flags().String("out-dir", "", "Write output to a directory")
}
