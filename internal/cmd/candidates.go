package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stocklens/stocklens/internal/core"
	"github.com/stocklens/stocklens/internal/core/store"
	"github.com/stocklens/stocklens/internal/observability"
	"github.com/stocklens/stocklens/internal/output"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Manage URL candidates",
}

var candidatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List URL candidates",
	Long:  "List persisted URL candidates with their current verdicts, newest first.",
	RunE:  runCandidatesList,
}

var candidatesAddCmd = &cobra.Command{
	Use:   "add <product-id> <retailer> [url...]",
	Short: "Queue candidate URLs for a product",
	Long: `Queue one or more product URLs for the polling loop. Re-adding a URL that
is already tracked for the product is a no-op.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCandidatesAdd,
}

func init() {
	candidatesCmd.AddCommand(candidatesListCmd)
	candidatesCmd.AddCommand(candidatesAddCmd)
	rootCmd.AddCommand(candidatesCmd)

	candidatesListCmd.Flags().String("retailer", "", "Filter by retailer slug")
	candidatesListCmd.Flags().String("status", "", "Filter by status: unknown, valid, live, invalid")
	candidatesListCmd.Flags().String("product", "", "Filter by product ID")
	candidatesListCmd.Flags().Int("limit", 100, "Maximum rows returned")
	candidatesListCmd.Flags().String("output", "table", "Output format: table, json, markdown")

	candidatesAddCmd.Flags().String("urls-file", "", "Read URLs from a file, one per line (- for stdin)")
}

func runCandidatesList(cmd *cobra.Command, args []string) error {
	slug, err := cmd.Flags().GetString("retailer")
	if err != nil {
		return err
	}
	statusValue, err := cmd.Flags().GetString("status")
	if err != nil {
		return err
	}
	productID, err := cmd.Flags().GetString("product")
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

	query := store.CandidateQuery{
		ProductID: strings.TrimSpace(productID),
		Limit:     limit,
	}
	if strings.TrimSpace(statusValue) != "" {
		status, err := core.ParseCandidateStatus(statusValue)
		if err != nil {
			return err
		}
		query.Status = status
	}

	ctx := cmd.Context()
	_, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

	if slug = strings.TrimSpace(slug); slug != "" {
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

	candidates, err := db.ListCandidates(ctx, query)
	if err != nil {
		return err
	}

	view := &output.CandidateView{
		Candidates: candidates,
		Retailers:  map[int64]string{},
	}
	retailers, err := db.ListRetailers(ctx)
	if err != nil {
		return err
	}
	for _, profile := range retailers {
		view.Retailers[profile.ID] = profile.Slug
	}

	formatter := output.NewFormatter(format)
	rendered, err := formatter.FormatCandidates(view)
	if err != nil {
		return err
	}
	if rendered != "" {
		fmt.Println(rendered)
	}
	return nil
}

func runCandidatesAdd(cmd *cobra.Command, args []string) error {
	productID := strings.TrimSpace(args[0])
	if productID == "" {
		return fmt.Errorf("product id is required")
	}

	slug := strings.ToLower(strings.TrimSpace(args[1]))
	if err := validateSlug(slug); err != nil {
		return err
	}

	urlsFile, err := cmd.Flags().GetString("urls-file")
	if err != nil {
		return err
	}
	urls, err := resolveURLs(args[2:], urlsFile)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	_, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

	profile, err := db.GetRetailerBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if profile == nil {
		return fmt.Errorf("unknown retailer: %s", slug)
	}

	now := time.Now().UTC()
	created := 0
	skipped := 0
	for _, rawURL := range urls {
		added, err := db.AddCandidate(ctx, productID, profile.ID, rawURL, now)
		if err != nil {
			return fmt.Errorf("add candidate %s: %w", rawURL, err)
		}
		if added {
			created++
		} else {
			skipped++
		}
	}

	observability.CLILogger.Info("Candidates queued",
		zap.String("product_id", productID),
		zap.String("retailer", slug),
		zap.Int("created", created),
		zap.Int("skipped", skipped),
	)

	fmt.Printf("Queued %d candidate(s) for %s at %s", created, productID, slug)
	if skipped > 0 {
		fmt.Printf(" (%d already tracked)", skipped)
	}
	fmt.Println()
	return nil
}
