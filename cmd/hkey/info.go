package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/remiblancher/hybridkey/pkg/format"
)

var infoCmd = &cobra.Command{
	Use:   "info <key-file>",
	Short: "Show master key file details",
	Long: `Show the suites and protection of a master key file without decrypting it.

No passphrase is needed: only the record header and the encryption
parameters are read.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Show the fingerprint of a key",
	Long: `Show the fingerprint of a public bundle or of a master key.

The fingerprint is the base58 SHA2-256 multihash of the binary public bundle,
so a master key and the bundle exported from it share the same fingerprint.

Examples:
  hkey fingerprint --pub identity.pub
  hkey fingerprint --key identity.key --passphrase env:HKEY_PASSPHRASE`,
	RunE: runFingerprint,
}

var (
	fpPubFile    string
	fpKeyFile    string
	fpPassphrase string
)

func init() {
	flags := fingerprintCmd.Flags()
	flags.StringVar(&fpPubFile, "pub", "", "Public bundle file")
	flags.StringVarP(&fpKeyFile, "key", "k", "", "Master key file")
	flags.StringVar(&fpPassphrase, "passphrase", "", "Key passphrase (or env:VAR_NAME)")
	fingerprintCmd.MarkFlagsMutuallyExclusive("pub", "key")
	fingerprintCmd.MarkFlagsOneRequired("pub", "key")
}

func runInfo(cmd *cobra.Command, args []string) error {
	record, enc, err := readKeyFile(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = record.Close() }()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Master key: %s\n", args[0])
	fmt.Fprintf(out, "  Encoding:      %s\n", enc)
	fmt.Fprintf(out, "  Signing:       %s\n", record.HybridSign())
	fmt.Fprintf(out, "  Key exchange:  %s\n", record.HybridKEM())

	if !record.IsEncrypted() {
		fmt.Fprintf(out, "  Encrypted:     no\n")
		return nil
	}
	meta := record.EncryptionMetadata
	fmt.Fprintf(out, "  Encrypted:     yes\n")
	fmt.Fprintf(out, "  KDF:           %s (time=%d, memory=%d KiB, threads=%d)\n",
		meta.KDF.Algorithm, meta.KDF.Time, meta.KDF.MemoryKB, meta.KDF.Threads)
	fmt.Fprintf(out, "  Cipher:        %s\n", meta.Cipher.Algorithm)
	return nil
}

func runFingerprint(cmd *cobra.Command, args []string) error {
	var fp string
	if fpPubFile != "" {
		pub, err := readPublicBundle(fpPubFile)
		if err != nil {
			return err
		}
		if fp, err = pub.Fingerprint(); err != nil {
			return err
		}
	} else {
		mk, _, err := openKey(fpKeyFile, fpPassphrase)
		if err != nil {
			return err
		}
		defer func() { _ = mk.Close() }()
		if fp, err = mk.Fingerprint(); err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), fp)
	return nil
}

// readPublicBundle decodes a full public bundle in either encoding.
func readPublicBundle(path string) (*format.FullChainPublicKeyFormat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	var pub *format.FullChainPublicKeyFormat
	if format.DetectEncoding(data) == format.EncodingPEM {
		pub, err = format.DecodeFullChainPEM(data)
	} else {
		pub, err = format.DecodeFullChainBinary(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return pub, nil
}
