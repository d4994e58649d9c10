// Command hkey manages hybrid (classical + post-quantum) master keys.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/remiblancher/hybridkey/internal/audit"
	"github.com/remiblancher/hybridkey/internal/config"
)

// Build-time variables (injected by GoReleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	configPath   string
	auditLogPath string
)

// cfg is the configuration loaded before every command.
var cfg = config.Default()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hkey",
	Short: "Hybrid master key tool",
	Long: `hkey manages hybrid master keys: one secret seed from which a classical
and a post-quantum keypair are derived for signing (EC + PQ) and for key
exchange (DH + KEM).

Every keypair is derived deterministically from the seed, so backing up the
master key (or its recovery phrase) backs up every key.

Default suites:
  Signing:      ed25519 + ml-dsa-65
  Key exchange: x25519 + ml-kem-768

Examples:
  # Generate a passphrase-protected master key
  hkey gen --out identity.key

  # Export the public bundle
  hkey pub --key identity.key --out identity.pub

  # Show the fingerprint
  hkey fingerprint identity.pub`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Default()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}

		path := auditLogPath
		if path == "" {
			path = os.Getenv("HKEY_AUDIT_LOG")
		}
		if path == "" {
			path = cfg.AuditLog
		}
		if path != "" {
			if err := audit.InitFile(path); err != nil {
				return fmt.Errorf("failed to initialize audit log: %w", err)
			}
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return audit.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&auditLogPath, "audit-log", "",
		"Path to audit log file (or set HKEY_AUDIT_LOG env var)")

	rootCmd.AddCommand(genCmd)
	rootCmd.AddCommand(pubCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(fingerprintCmd)
	rootCmd.AddCommand(passwdCmd)
	rootCmd.AddCommand(phraseCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(algorithmsCmd)
	rootCmd.AddCommand(auditCmd)
}
