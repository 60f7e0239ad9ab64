package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hwahn/pricepulse/internal/reconcile"
)

// reconcileCmd runs one reconciliation pass and prints the report.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run a prior-close reconciliation pass",
	Long: `Scans candidate symbols for prior-close drift against the provider
and corrects anything beyond tolerance.

Example:
  go run ./cmd/pricepulse reconcile
  go run ./cmd/pricepulse reconcile --limit 100 --dry-run`,
	RunE: runReconcile,
}

var (
	reconcileLimit  int
	reconcileDryRun bool
)

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().IntVar(&reconcileLimit, "limit", 0, "cap candidate count (0 = config default)")
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "report would-be corrections without writing")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	report, err := app.engine.Run(cmd.Context(), reconcile.Params{
		Limit:  reconcileLimit,
		DryRun: reconcileDryRun,
	})
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	fmt.Printf("\nChecked:   %d\n", report.Checked)
	fmt.Printf("Needs fix: %d\n", report.NeedsFix)
	fmt.Printf("Fixed:     %d\n", report.Fixed)
	fmt.Printf("Errors:    %d\n", report.Errors)

	for _, issue := range report.Issues {
		fmt.Printf("  %-6s db=%.4f correct=%.4f diff=%.4f\n",
			issue.Symbol, issue.DBValue, issue.CorrectValue, issue.Diff)
	}

	return nil
}
