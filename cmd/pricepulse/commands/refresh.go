package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hwahn/pricepulse/internal/refresh"
)

// refreshCmd runs one close-refresh pass and prints the report.
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Post regular closes and seed next-day baselines",
	Long: `Fetches the regular-session close for the most recent trading day
and seeds the next trading day's previous-close baselines from it.

Example:
  go run ./cmd/pricepulse refresh
  go run ./cmd/pricepulse refresh --force`,
	RunE: runRefresh,
}

var refreshForce bool

func init() {
	rootCmd.AddCommand(refreshCmd)

	refreshCmd.Flags().BoolVar(&refreshForce, "force", false, "refetch even when a close is already stored")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	report, err := app.refresh.Run(cmd.Context(), refresh.Params{Force: refreshForce})
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	fmt.Printf("\nRegular closes refreshed:  %d\n", report.RegularCloseRefreshed)
	fmt.Printf("Previous closes refreshed: %d\n", report.PreviousCloseRefreshed)
	fmt.Printf("Errors:                    %d\n", report.Errors)

	return nil
}
