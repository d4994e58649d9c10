package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remiblancher/hybridkey/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the key operation audit log",
	Long: `Inspect an audit log written with --audit-log or HKEY_AUDIT_LOG.

Every line is one JSON event hash-chained to the one before it. Events carry
fingerprints, paths and suites but never seeds, passphrases or phrases.`,
	Example: `  hkey audit verify --log hkey-audit.jsonl
  hkey audit tail --log hkey-audit.jsonl -n 5 --json`,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the hash chain of an audit log",
	Args:  cobra.NoArgs,
	RunE:  runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print the most recent audit events",
	Args:  cobra.NoArgs,
	RunE:  runAuditTail,
}

var (
	auditLogFile string
	auditTailNum int
	auditAsJSON  bool
)

func init() {
	auditCmd.PersistentFlags().StringVar(&auditLogFile, "log", "", "Audit log file to read (required)")
	_ = auditCmd.MarkPersistentFlagRequired("log")

	auditTailCmd.Flags().IntVarP(&auditTailNum, "num", "n", 10, "Number of events to print")
	auditTailCmd.Flags().BoolVar(&auditAsJSON, "json", false, "Print events as a JSON array")

	auditCmd.AddCommand(auditVerifyCmd, auditTailCmd)
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	count, err := audit.VerifyChain(auditLogFile)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: hash chain broken after %d valid events\n", auditLogFile, count)
		return fmt.Errorf("audit log verification failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: hash chain valid (%d events)\n", auditLogFile, count)
	return nil
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	events, err := audit.Tail(auditLogFile, auditTailNum)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if auditAsJSON {
		if events == nil {
			events = []audit.Event{}
		}
		data, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode events: %w", err)
		}
		_, err = fmt.Fprintf(out, "%s\n", data)
		return err
	}

	if len(events) == 0 {
		fmt.Fprintln(out, "Audit log is empty")
		return nil
	}
	for i := range events {
		fmt.Fprintln(out, eventLine(&events[i]))
	}
	return nil
}

// eventLine renders an event on one line: time, result, type, actor and
// the non-empty object and context fields as key=value pairs.
func eventLine(e *audit.Event) string {
	mark := "✓"
	if e.Result == audit.ResultFailure {
		mark = "✗"
	}
	parts := []string{e.Timestamp, mark + " " + string(e.EventType), e.Actor.ID + "@" + e.Actor.Host}

	kv := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+value)
		}
	}
	kv("object", e.Object.Type)
	kv("fingerprint", e.Object.Fingerprint)
	kv("path", e.Object.Path)
	kv("algorithms", e.Context.Algorithms)
	kv("encoding", e.Context.Encoding)
	if e.Context.Encrypted {
		parts = append(parts, "encrypted")
	}
	kv("reason", e.Context.Reason)
	return strings.Join(parts, "  ")
}
