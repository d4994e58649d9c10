package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/remiblancher/hybridkey/internal/audit"
	"github.com/remiblancher/hybridkey/pkg/masterkey"
)

var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a new master key",
	Long: `Generate a new master key from a fresh random seed.

The key file is written with mode 0600. Unless --plaintext is given the
seed is sealed with a passphrase (Argon2id + XChaCha20-Poly1305).

Suites default to the configuration file, then to the built-in defaults.

Examples:
  # Prompt for a passphrase
  hkey gen --out identity.key

  # Read the passphrase from an environment variable
  hkey gen --out identity.key --passphrase env:HKEY_PASSPHRASE

  # Choose the suites and also write the public bundle
  hkey gen --out identity.key --sign ed448+ml-dsa-87 --kem x448+ml-kem-1024 \
      --pub-out identity.pub`,
	RunE: runGen,
}

var (
	genOut        string
	genPubOut     string
	genPassphrase string
	genPlaintext  bool
	genEncoding   string
	genSign       string
	genKEM        string
	genForce      bool

	// seedRandom is the entropy source for new seeds; nil means crypto/rand.
	seedRandom io.Reader
)

func init() {
	flags := genCmd.Flags()
	flags.StringVarP(&genOut, "out", "o", "", "Output key file (required)")
	flags.StringVar(&genPubOut, "pub-out", "", "Also write the public bundle to this file")
	flags.StringVar(&genPassphrase, "passphrase", "", "Passphrase (or env:VAR_NAME); prompted when omitted")
	flags.BoolVar(&genPlaintext, "plaintext", false, "Store the seed unencrypted")
	flags.StringVar(&genEncoding, "encoding", "", "Output encoding: pem, binary (default from config)")
	flags.StringVar(&genSign, "sign", "", "Signing suite <ec>+<pq> (default from config)")
	flags.StringVar(&genKEM, "kem", "", "Key exchange suite <dh>+<kem> (default from config)")
	flags.BoolVar(&genForce, "force", false, "Overwrite an existing key file")
	_ = genCmd.MarkFlagRequired("out")
}

func runGen(cmd *cobra.Command, args []string) error {
	sign, kem, err := resolveSuites(genSign, genKEM)
	if err != nil {
		return err
	}
	enc, err := resolveEncoding(genEncoding)
	if err != nil {
		return err
	}

	pass, err := newPassphrase(genPassphrase, genPlaintext)
	if err != nil {
		return err
	}
	defer func() { _ = pass.Close() }()

	info := audit.KeyInfo{
		Path:       genOut,
		Algorithms: suiteString(sign, kem),
		Encoding:   enc.String(),
		Encrypted:  pass != nil,
	}

	mk, err := masterkey.Generate(kem, sign,
		masterkey.WithRandom(seedRandom),
		masterkey.WithEncryptionParams(cfg.KDFParams()))
	if err != nil {
		err = fmt.Errorf("failed to generate master key: %w", err)
		if auditErr := audit.LogKeyGenerated(info, false); auditErr != nil {
			return errors.Join(err, auditErr)
		}
		return err
	}
	defer func() { _ = mk.Close() }()

	info.Fingerprint, err = mk.Fingerprint()
	if err != nil {
		return err
	}
	if err := audit.LogKeyGenerated(info, true); err != nil {
		return err
	}

	if err := saveKey(mk, info, pass, enc, genForce); err != nil {
		return err
	}
	if genPubOut != "" {
		pub, err := mk.PublicKey()
		if err != nil {
			return err
		}
		if err := savePublic(pub, info, genPubOut, cmd.OutOrStdout(), enc, genForce); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Master key generated\n")
	printKeySummary(out, mk, info)
	if genPubOut != "" {
		fmt.Fprintf(out, "  Public bundle: %s\n", genPubOut)
	}
	return nil
}

func printKeySummary(out io.Writer, mk *masterkey.MasterKey, info audit.KeyInfo) {
	sign, kem := mk.Algorithms()
	encrypted := "no"
	if info.Encrypted {
		encrypted = "yes"
	}
	fmt.Fprintf(out, "  File:          %s\n", info.Path)
	fmt.Fprintf(out, "  Signing:       %s\n", sign)
	fmt.Fprintf(out, "  Key exchange:  %s\n", kem)
	fmt.Fprintf(out, "  Encoding:      %s\n", info.Encoding)
	fmt.Fprintf(out, "  Encrypted:     %s\n", encrypted)
	fmt.Fprintf(out, "  Fingerprint:   %s\n", info.Fingerprint)
}
