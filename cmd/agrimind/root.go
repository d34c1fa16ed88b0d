package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "agrimind",
	Short: "Agrimind router - resilient LLM inference routing",
	Long: `Agrimind router selects the best endpoint and credential pair for each
inference request and executes it with bounded retries and failover.

It provides:
  - Health tracking with circuit breaking per endpoint and credential
  - Scoring-based selection over a task-specialization table
  - Sliding-window rate awareness and daily-quota freezes
  - Concurrent fan-out with response deduplication and synthesis
  - A sqlite audit trail of every attempt`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "router.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
