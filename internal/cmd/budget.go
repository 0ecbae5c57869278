package cmd

import "github.com/spf13/cobra"

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage per-retailer request budgets",
}

func init() {
	budgetCmd.AddCommand(budgetListCmd)
	budgetCmd.AddCommand(budgetResetCmd)
	rootCmd.AddCommand(budgetCmd)
}
