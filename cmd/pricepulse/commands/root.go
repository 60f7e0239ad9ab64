package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pricepulse",
	Short: "Near-real-time equity price state and reconciliation engine",
	Long: `PricePulse keeps a tracked universe of US equities priced in near real
time: tiered snapshot polling, session-aware price state resolution, and
scheduled reconciliation of prior-close baselines against the provider.

Usage:
  go run ./cmd/pricepulse [command]

Examples:
  go run ./cmd/pricepulse api
  go run ./cmd/pricepulse scheduler
  go run ./cmd/pricepulse reconcile --dry-run
  go run ./cmd/pricepulse refresh --force`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
