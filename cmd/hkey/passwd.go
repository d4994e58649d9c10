package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remiblancher/hybridkey/internal/audit"
	"github.com/remiblancher/hybridkey/pkg/format"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the passphrase of a master key",
	Long: `Re-encrypt a master key under a new passphrase.

The seed is unchanged, so every derived key and the fingerprint stay the
same. The key file is replaced atomically unless --out is given.

Examples:
  # Prompt for the current and the new passphrase
  hkey passwd --key identity.key

  # Non-interactive
  hkey passwd --key identity.key --passphrase env:OLD --new-passphrase env:NEW

  # Remove the encryption
  hkey passwd --key identity.key --passphrase env:OLD --plaintext`,
	RunE: runPasswd,
}

var (
	passwdKeyFile       string
	passwdOut           string
	passwdPassphrase    string
	passwdNewPassphrase string
	passwdPlaintext     bool
	passwdEncoding      string
	passwdForce         bool
)

func init() {
	flags := passwdCmd.Flags()
	flags.StringVarP(&passwdKeyFile, "key", "k", "", "Master key file (required)")
	flags.StringVarP(&passwdOut, "out", "o", "", "Write the re-encrypted key here instead of replacing --key")
	flags.StringVar(&passwdPassphrase, "passphrase", "", "Current passphrase (or env:VAR_NAME)")
	flags.StringVar(&passwdNewPassphrase, "new-passphrase", "", "New passphrase (or env:VAR_NAME); prompted when omitted")
	flags.BoolVar(&passwdPlaintext, "plaintext", false, "Store the seed unencrypted")
	flags.StringVar(&passwdEncoding, "encoding", "", "Output encoding: pem, binary (default: unchanged)")
	flags.BoolVar(&passwdForce, "force", false, "Overwrite an existing --out file")
	_ = passwdCmd.MarkFlagRequired("key")
}

func runPasswd(cmd *cobra.Command, args []string) error {
	mk, info, err := openKey(passwdKeyFile, passwdPassphrase)
	if err != nil {
		return err
	}
	defer func() { _ = mk.Close() }()

	encName := passwdEncoding
	if encName == "" {
		encName = info.Encoding
	}
	enc, err := format.ParseEncoding(encName)
	if err != nil {
		return err
	}

	pass, err := newPassphrase(passwdNewPassphrase, passwdPlaintext)
	if err != nil {
		return err
	}
	defer func() { _ = pass.Close() }()

	out, overwrite := passwdKeyFile, true
	if passwdOut != "" {
		out, overwrite = passwdOut, passwdForce
	}
	info.Path = out
	info.Encoding = enc.String()
	info.Encrypted = pass != nil

	err = saveKey(mk, info, pass, enc, overwrite)
	if auditErr := audit.LogPassphraseChanged(info, err == nil); auditErr != nil {
		return errors.Join(err, auditErr)
	}
	if err != nil {
		return err
	}

	if pass == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Master key stored unencrypted: %s\n", out)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Passphrase changed: %s\n", out)
	}
	return nil
}
