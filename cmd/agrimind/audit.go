package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"agrimind/router/pkg/audit"
	"agrimind/router/pkg/config"
)

var auditFlags struct {
	requestID string
	format    string
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the attempt audit trail",
	Long: `Query and maintain the sqlite audit trail the router writes for every
call attempt.

Subcommands:
  query  - Reconstruct the retry chain of one request
  prune  - Delete rows past the retention window

Examples:
  # Show every attempt of one request, in order
  agrimind audit query --request-id "7f3c..."

  # Prune old rows now instead of waiting for the schedule
  agrimind audit prune`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Reconstruct the retry chain of one request",
	RunE:  queryAudit,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit rows past the retention window",
	RunE:  pruneAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd)
	auditCmd.AddCommand(auditPruneCmd)

	auditQueryCmd.Flags().StringVar(&auditFlags.requestID, "request-id", "", "request id to reconstruct (required)")
	auditQueryCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format: text, json")
	auditQueryCmd.MarkFlagRequired("request-id")
}

func openAudit() (*audit.Recorder, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, err
	}
	return audit.Open(audit.Config{
		DBPath:        cfg.Audit.DBPath,
		RetentionDays: cfg.Audit.RetentionDays,
	})
}

func queryAudit(cmd *cobra.Command, args []string) error {
	rec, err := openAudit()
	if err != nil {
		return err
	}
	defer rec.Close()

	attempts, err := rec.RequestAttempts(cmd.Context(), auditFlags.requestID)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		fmt.Printf("no attempts recorded for request %q\n", auditFlags.requestID)
		return nil
	}

	if auditFlags.format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(attempts)
	}

	fmt.Printf("request %s: %d attempt(s)\n", auditFlags.requestID, len(attempts))
	for _, a := range attempts {
		line := fmt.Sprintf("  #%d %s via %s/%s (%s, %dms, %d tokens)",
			a.Number, a.Kind, a.EndpointID, a.CredentialID, a.AttemptID, a.Latency.Milliseconds(), a.Tokens)
		if a.Err != nil {
			line += fmt.Sprintf(" error=%q", a.Err)
		}
		fmt.Println(line)
	}
	return nil
}

func pruneAudit(cmd *cobra.Command, args []string) error {
	rec, err := openAudit()
	if err != nil {
		return err
	}
	defer rec.Close()

	n, err := rec.Prune(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("pruned %d audit row(s)\n", n)
	return nil
}
