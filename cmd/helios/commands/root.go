package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "helios",
	Short: "Helios - momentum portfolio pipeline and backtest engine",
	Long: `Helios Unified CLI

Momentum universe selection, sentiment-tilted weight synthesis,
regime-scaled exposure, and a daily backtest ledger with audit.

Usage:
  go run ./cmd/helios [command]

Examples:
  go run ./cmd/helios backtest run --from 2020-01-01 --to 2023-12-31
  go run ./cmd/helios weights generate
  go run ./cmd/helios regime classify
  go run ./cmd/helios monitor --once`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML (default from STRATEGY_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
