package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stocklens/stocklens/internal/observability"
	"github.com/stocklens/stocklens/internal/output"
)

var retailersCmd = &cobra.Command{
	Use:   "retailers",
	Short: "Manage retailer profiles",
}

var retailersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List retailer profiles",
	Long: `List the retailers the polling loop knows about, including the built-in
set seeded on first run. Disabled retailers keep their candidates but are
skipped by the checker.`,
	RunE: runRetailersList,
}

var retailersEnableCmd = &cobra.Command{
	Use:   "enable <slug>",
	Short: "Enable polling for a retailer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRetailerActive(cmd, args[0], true)
	},
}

var retailersDisableCmd = &cobra.Command{
	Use:   "disable <slug>",
	Short: "Disable polling for a retailer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRetailerActive(cmd, args[0], false)
	},
}

func init() {
	retailersCmd.AddCommand(retailersListCmd)
	retailersCmd.AddCommand(retailersEnableCmd)
	retailersCmd.AddCommand(retailersDisableCmd)
	rootCmd.AddCommand(retailersCmd)

	retailersListCmd.Flags().String("output", "table", "Output format: table, json, markdown")
}

func runRetailersList(cmd *cobra.Command, args []string) error {
	formatValue, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(formatValue)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	_, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

	retailers, err := db.ListRetailers(ctx)
	if err != nil {
		return err
	}

	formatter := output.NewFormatter(format)
	rendered, err := formatter.FormatRetailers(&output.RetailerView{Retailers: retailers})
	if err != nil {
		return err
	}
	if rendered != "" {
		fmt.Println(rendered)
	}
	return nil
}

func setRetailerActive(cmd *cobra.Command, rawSlug string, active bool) error {
	slug := strings.ToLower(strings.TrimSpace(rawSlug))
	if err := validateSlug(slug); err != nil {
		return err
	}

	ctx := cmd.Context()
	_, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

	if err := db.SetRetailerActive(ctx, slug, active); err != nil {
		return err
	}

	state := "disabled"
	if active {
		state = "enabled"
	}
	observability.CLILogger.Info("Retailer state changed",
		zap.String("retailer", slug),
		zap.Bool("active", active),
	)
	fmt.Printf("Retailer %s %s\n", slug, state)
	return nil
}
