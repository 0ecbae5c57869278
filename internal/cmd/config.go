package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stocklens/stocklens/internal/core"
	"github.com/stocklens/stocklens/internal/core/configres"
	"github.com/stocklens/stocklens/internal/observability"
	"github.com/stocklens/stocklens/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage per-retailer runtime overrides",
	Long: `Read and write the dynamic per-retailer overrides the checker resolves at
runtime: budget, burst, render_behavior, and session_reuse. Values set
here win over environment and file configuration without a restart.`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <setting> <retailer>",
	Short: "Show one override",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <setting> <retailer> <value>",
	Short: "Set one override",
	Args:  cobra.ExactArgs(3),
	RunE:  runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <setting> <retailer>",
	Short: "Remove one override",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigUnset,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored overrides",
	RunE:  runConfigList,
}

var (
	configListRetailer string
	configListOutput   string
)

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)

	configListCmd.Flags().StringVar(&configListRetailer, "retailer", "", "Limit to one retailer slug")
	configListCmd.Flags().StringVar(&configListOutput, "output-format", string(output.FormatTable), "Output format: table|json")
}

// checkerSettings are the override names the checker understands.
var checkerSettings = []string{
	configres.SettingBudget,
	configres.SettingBurst,
	configres.SettingRenderBehavior,
	configres.SettingSessionReuse,
}

func normalizeSetting(raw string) (string, error) {
	setting := strings.ToLower(strings.TrimSpace(raw))
	for _, known := range checkerSettings {
		if setting == known {
			return setting, nil
		}
	}
	return "", fmt.Errorf("unknown setting %q (one of: %s)", raw, strings.Join(checkerSettings, ", "))
}

// validateSettingValue rejects values the resolver would silently skip, so a
// typo surfaces at write time instead of degrading to the next layer.
func validateSettingValue(setting, value string) error {
	switch setting {
	case configres.SettingBudget, configres.SettingBurst:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer", setting)
		}
	case configres.SettingRenderBehavior:
		switch core.RenderBehavior(value) {
		case core.RenderAlways, core.RenderOnBlock, core.RenderNever:
		default:
			return fmt.Errorf("render_behavior must be one of: always, on_block, never")
		}
	case configres.SettingSessionReuse:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("session_reuse must be a boolean")
		}
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	setting, err := normalizeSetting(args[0])
	if err != nil {
		return err
	}
	slug := strings.ToLower(strings.TrimSpace(args[1]))
	if err := validateSlug(slug); err != nil {
		return err
	}

	ctx := cmd.Context()
	_, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

	value, ok, err := db.GetDynamicConfig(ctx, configres.KeyFor(setting, slug))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("%s.%s is not set\n", setting, slug)
		return nil
	}
	fmt.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	setting, err := normalizeSetting(args[0])
	if err != nil {
		return err
	}
	slug := strings.ToLower(strings.TrimSpace(args[1]))
	if err := validateSlug(slug); err != nil {
		return err
	}
	value := strings.TrimSpace(args[2])
	if value == "" {
		return fmt.Errorf("value is required")
	}
	if err := validateSettingValue(setting, value); err != nil {
		return err
	}

	ctx := cmd.Context()
	_, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

	if err := db.SetDynamicConfig(ctx, configres.KeyFor(setting, slug), value, time.Now().UTC()); err != nil {
		return err
	}

	observability.CLILogger.Info("Override stored",
		zap.String("setting", setting),
		zap.String("retailer", slug),
		zap.String("value", value),
	)
	fmt.Printf("%s.%s = %s\n", setting, slug, value)
	return nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	setting, err := normalizeSetting(args[0])
	if err != nil {
		return err
	}
	slug := strings.ToLower(strings.TrimSpace(args[1]))
	if err := validateSlug(slug); err != nil {
		return err
	}

	ctx := cmd.Context()
	_, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

	removed, err := db.DeleteDynamicConfig(ctx, configres.KeyFor(setting, slug))
	if err != nil {
		return err
	}
	if !removed {
		fmt.Printf("%s.%s was not set\n", setting, slug)
		return nil
	}

	observability.CLILogger.Info("Override removed",
		zap.String("setting", setting),
		zap.String("retailer", slug),
	)
	fmt.Printf("%s.%s unset\n", setting, slug)
	return nil
}

func runConfigList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(configListOutput)
	if err != nil {
		return err
	}
	if format != output.FormatJSON && format != output.FormatTable {
		return fmt.Errorf("unsupported output format: %s", format)
	}

	slug := strings.ToLower(strings.TrimSpace(configListRetailer))
	if slug != "" {
		if err := validateSlug(slug); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	_, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

	entries, err := db.ListDynamicConfig(ctx, configres.KeyPrefix)
	if err != nil {
		return err
	}

	// Keys end in the slug, so retailer filtering happens here rather than
	// in the prefix query.
	filtered := entries[:0]
	for _, entry := range entries {
		if slug != "" && !strings.HasSuffix(entry.Key, ":"+slug) {
			continue
		}
		filtered = append(filtered, entry)
	}

	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(filtered, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
		return nil
	}

	lines := []string{"Checker Overrides", ""}
	if len(filtered) == 0 {
		lines = append(lines, "(no stored overrides)")
		fmt.Print(ascii.DrawBox(strings.Join(lines, "\n"), 0))
		return nil
	}

	for _, entry := range filtered {
		display := strings.TrimPrefix(entry.Key, configres.KeyPrefix+":")
		lines = append(lines, fmt.Sprintf("%s = %s (updated %s)", display, entry.Value, entry.UpdatedAt.UTC().Format(time.RFC3339)))
	}

	fmt.Print(ascii.DrawBox(strings.Join(lines, "\n"), 0))
	return nil
}
