package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/remiblancher/hybridkey/internal/audit"
	"github.com/remiblancher/hybridkey/pkg/masterkey"
	"github.com/remiblancher/hybridkey/pkg/secret"
)

// maxPhraseSize bounds the recovery phrase input.
const maxPhraseSize = 4096

var phraseCmd = &cobra.Command{
	Use:   "phrase",
	Short: "Show the recovery phrase of a master key",
	Long: `Print the 24-word BIP-39 recovery phrase encoding the master seed.

Anyone holding the phrase holds every key derived from this master key.
Write it down offline and never store it next to the key file.`,
	RunE: runPhrase,
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Rebuild a master key from its recovery phrase",
	Long: `Rebuild a master key from its 24-word recovery phrase.

The phrase only holds the seed: the suites must match the ones used when
the key was generated, otherwise different keys are derived. Compare the
printed fingerprint with the original one.

Examples:
  # Read the phrase from a file
  hkey recover --phrase-file words.txt --out identity.key

  # Read the phrase from stdin
  hkey recover --phrase-file - --out identity.key --sign ed448+ml-dsa-87`,
	RunE: runRecover,
}

var (
	phraseKeyFile    string
	phrasePassphrase string

	recoverPhraseFile string
	recoverOut        string
	recoverPassphrase string
	recoverPlaintext  bool
	recoverEncoding   string
	recoverSign       string
	recoverKEM        string
	recoverForce      bool
)

func init() {
	flags := phraseCmd.Flags()
	flags.StringVarP(&phraseKeyFile, "key", "k", "", "Master key file (required)")
	flags.StringVar(&phrasePassphrase, "passphrase", "", "Key passphrase (or env:VAR_NAME)")
	_ = phraseCmd.MarkFlagRequired("key")

	flags = recoverCmd.Flags()
	flags.StringVar(&recoverPhraseFile, "phrase-file", "", "File holding the recovery phrase, - for stdin (required)")
	flags.StringVarP(&recoverOut, "out", "o", "", "Output key file (required)")
	flags.StringVar(&recoverPassphrase, "passphrase", "", "Passphrase for the new key file (or env:VAR_NAME); prompted when omitted")
	flags.BoolVar(&recoverPlaintext, "plaintext", false, "Store the seed unencrypted")
	flags.StringVar(&recoverEncoding, "encoding", "", "Output encoding: pem, binary (default from config)")
	flags.StringVar(&recoverSign, "sign", "", "Signing suite <ec>+<pq> (default from config)")
	flags.StringVar(&recoverKEM, "kem", "", "Key exchange suite <dh>+<kem> (default from config)")
	flags.BoolVar(&recoverForce, "force", false, "Overwrite an existing key file")
	_ = recoverCmd.MarkFlagRequired("phrase-file")
	_ = recoverCmd.MarkFlagRequired("out")
}

func runPhrase(cmd *cobra.Command, args []string) error {
	mk, info, err := openKey(phraseKeyFile, phrasePassphrase)
	if err != nil {
		return err
	}
	defer func() { _ = mk.Close() }()

	phrase, err := mk.RecoveryPhrase()
	if err != nil {
		return err
	}
	if err := audit.LogRecoveryPhraseShown(info); err != nil {
		return err
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "WARNING: this phrase gives full access to the master key. Keep it offline.")
	fmt.Fprintln(cmd.OutOrStdout(), phrase)
	return nil
}

func runRecover(cmd *cobra.Command, args []string) error {
	sign, kem, err := resolveSuites(recoverSign, recoverKEM)
	if err != nil {
		return err
	}
	enc, err := resolveEncoding(recoverEncoding)
	if err != nil {
		return err
	}

	phrase, err := readPhrase(cmd.InOrStdin(), recoverPhraseFile)
	if err != nil {
		return err
	}
	defer secret.Zero(phrase)

	pass, err := newPassphrase(recoverPassphrase, recoverPlaintext)
	if err != nil {
		return err
	}
	defer func() { _ = pass.Close() }()

	info := audit.KeyInfo{
		Path:       recoverOut,
		Algorithms: suiteString(sign, kem),
		Encoding:   enc.String(),
		Encrypted:  pass != nil,
	}

	mk, err := masterkey.FromRecoveryPhrase(string(phrase), kem, sign,
		masterkey.WithEncryptionParams(cfg.KDFParams()))
	if err != nil {
		if auditErr := audit.LogKeyRecovered(info, false); auditErr != nil {
			return errors.Join(err, auditErr)
		}
		return fmt.Errorf("failed to recover master key: %w", err)
	}
	defer func() { _ = mk.Close() }()

	if info.Fingerprint, err = mk.Fingerprint(); err != nil {
		return err
	}
	if err := audit.LogKeyRecovered(info, true); err != nil {
		return err
	}
	if err := saveKey(mk, info, pass, enc, recoverForce); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Master key recovered\n")
	printKeySummary(out, mk, info)
	return nil
}

// readPhrase reads the recovery phrase from path, or from stdin for "-".
func readPhrase(stdin io.Reader, path string) ([]byte, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open phrase file: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, maxPhraseSize+1))
	if err != nil {
		secret.Zero(data)
		return nil, fmt.Errorf("failed to read recovery phrase: %w", err)
	}
	if len(data) > maxPhraseSize {
		secret.Zero(data)
		return nil, fmt.Errorf("recovery phrase input too large")
	}
	return data, nil
}
