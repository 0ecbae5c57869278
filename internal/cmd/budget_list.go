package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stocklens/stocklens/internal/core/budget"
	"github.com/stocklens/stocklens/internal/core/configres"
	"github.com/stocklens/stocklens/internal/core/store"
	"github.com/stocklens/stocklens/internal/output"
)

var budgetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List current budget windows",
	Long: `List the per-retailer request windows currently persisted, alongside each
retailer's effective requests-per-minute limit after overrides.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		outPath, outDir, err := resolveOutputTargets(cmd)
		if err != nil {
			return err
		}

		all, _ := cmd.Flags().GetBool("all")
		slug, _ := cmd.Flags().GetString("slug")
		prefix, _ := cmd.Flags().GetString("prefix")

		ctx := cmd.Context()
		cfg, db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := store.BudgetQuery{
			All:    all,
			Slug:   strings.TrimSpace(slug),
			Prefix: strings.TrimSpace(prefix),
		}
		if !query.All && query.Slug == "" && query.Prefix == "" {
			query.All = true
		}

		windows, err := db.ListBudgetWindows(ctx, query)
		if err != nil {
			return err
		}

		dynamic := &configres.DynamicProvider{Store: db}
		ctl := &budget.Controller{
			Store:   db,
			Dynamic: dynamic,
			Env:     cfg.RetailerSettings(),
		}

		view := &output.BudgetView{Windows: make([]output.BudgetRow, 0, len(windows))}
		for _, window := range windows {
			view.Windows = append(view.Windows, output.BudgetRow{
				BudgetWindow: window,
				Limit:        ctl.EffectiveLimit(ctx, window.Slug),
			})
		}

		if outDir != "" {
			outDir, err = ensureOutDir(outDir)
			if err != nil {
				return err
			}
			name := "budget.list"
			switch {
			case query.Slug != "":
				name = fmt.Sprintf("budget.%s.list", sanitizeFilename(query.Slug))
			case query.Prefix != "":
				name = fmt.Sprintf("budget.%s.list", sanitizeFilename(query.Prefix))
			}
			outPath = filepath.Join(outDir, fmt.Sprintf("%s.%s", name, outputExtension(format)))
		}

		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		formatter := output.NewFormatter(format)
		rendered, err := formatter.FormatBudgets(view)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

func init() {
	budgetListCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table, json, markdown")
	budgetListCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	budgetListCmd.Flags().String("out-dir", "", "Write output to a directory")
	budgetListCmd.Flags().Bool("all", false, "List all retailers")
	budgetListCmd.Flags().String("slug", "", "List a single retailer (exact match)")
	budgetListCmd.Flags().String("prefix", "", "List retailers with matching slug prefix")
}
