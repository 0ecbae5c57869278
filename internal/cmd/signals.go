package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stocklens/stocklens/internal/core/store"
	"github.com/stocklens/stocklens/internal/output"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Inspect emitted availability signals",
}

var signalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List availability signals",
	Long: `List the availability signals published for downstream consumers, newest
first. These are append-only; nothing here mutates them.`,
	RunE: runSignalsList,
}

func init() {
	signalsCmd.AddCommand(signalsListCmd)
	rootCmd.AddCommand(signalsCmd)

	signalsListCmd.Flags().String("product", "", "Filter by product ID")
	signalsListCmd.Flags().String("retailer", "", "Filter by retailer slug")
	signalsListCmd.Flags().String("type", "", "Filter by signal type (e.g. url_live)")
	signalsListCmd.Flags().Int("limit", 100, "Maximum rows returned")
	signalsListCmd.Flags().String("output", "table", "Output format: table, json, markdown")
}

func runSignalsList(cmd *cobra.Command, args []string) error {
	productID, err := cmd.Flags().GetString("product")
	if err != nil {
		return err
	}
	slug, err := cmd.Flags().GetString("retailer")
	if err != nil {
		return err
	}
	signalType, err := cmd.Flags().GetString("type")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
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

	query := store.SignalQuery{
		ProductID:  strings.TrimSpace(productID),
		SignalType: strings.TrimSpace(signalType),
		Limit:      limit,
	}

	ctx := cmd.Context()
	_, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

	if slug = strings.ToLower(strings.TrimSpace(slug)); slug != "" {
		if err := validateSlug(slug); err != nil {
			return err
		}
		profile, err := db.GetRetailerBySlug(ctx, slug)
		if err != nil {
			return err
		}
		if profile == nil {
			return fmt.Errorf("unknown retailer: %s", slug)
		}
		query.RetailerID = profile.ID
	}

	signals, err := db.ListSignals(ctx, query)
	if err != nil {
		return err
	}

	formatter := output.NewFormatter(format)
	rendered, err := formatter.FormatSignals(&output.SignalView{Signals: signals})
	if err != nil {
		return err
	}
	if rendered != "" {
		fmt.Println(rendered)
	}
	return nil
}
