package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "taskwarden",
	Short: "Taskwarden - rate-limited task scheduler with usage accounting",
	Long: `Taskwarden schedules agent tasks under strict token budgets.

It provides:
  - A priority queue with serial, one-at-a-time execution
  - Per-category rate limits over minute, hour and day windows
  - A durable usage ledger with cost attribution and alerting
  - An HTTP API for submission, cancellation, status and usage queries`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
