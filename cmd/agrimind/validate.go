package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"agrimind/router/pkg/config"
)

var validateFlags struct {
	env bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply defaults, and check it for internal
consistency: unique ids, task-table references, rate ceilings.

Examples:
  # Validate the default config file
  agrimind validate

  # Validate with AGRIMIND_* environment overrides applied
  agrimind validate --config prod.yaml --env`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.env, "env", false, "apply AGRIMIND_* environment overrides before validating")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	load := config.LoadConfig
	if validateFlags.env {
		load = config.LoadConfigWithEnvOverrides
	}

	cfg, err := load(cfgFile)
	if err != nil {
		return err
	}

	fmt.Printf("%s: OK\n", cfgFile)
	fmt.Printf("  endpoints:   %d\n", len(cfg.Endpoints))
	fmt.Printf("  credentials: %d\n", len(cfg.Credentials))
	fmt.Printf("  tasks:       %d\n", len(cfg.Tasks))

	if verbose {
		tags := make([]string, 0, len(cfg.Tasks))
		for tag := range cfg.Tasks {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			t := cfg.Tasks[tag]
			fmt.Printf("  task %q: preferred=[%s] fallback=[%s] max_retries=%d\n",
				tag, strings.Join(t.Preferred, ", "), strings.Join(t.Fallback, ", "), t.MaxRetries)
		}
	}
	return nil
}
