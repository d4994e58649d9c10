package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remiblancher/hybridkey/pkg/format"
)

var pubCmd = &cobra.Command{
	Use:   "pub",
	Short: "Export public keys",
	Long: `Export the public half of a master key.

Parts:
  full        Signing and key exchange public keys (default)
  signing     EC + PQ signature public keys only
  encryption  DH + KEM public keys only

The output never contains secret material.

Examples:
  # Full bundle to stdout
  hkey pub --key identity.key

  # Signing keys only, binary
  hkey pub --key identity.key --part signing --encoding binary --out sign.pub`,
	RunE: runPub,
}

var (
	pubKeyFile    string
	pubOut        string
	pubPassphrase string
	pubEncoding   string
	pubPart       string
	pubForce      bool
)

func init() {
	flags := pubCmd.Flags()
	flags.StringVarP(&pubKeyFile, "key", "k", "", "Master key file (required)")
	flags.StringVarP(&pubOut, "out", "o", "", "Output file (default: stdout)")
	flags.StringVar(&pubPassphrase, "passphrase", "", "Key passphrase (or env:VAR_NAME)")
	flags.StringVar(&pubEncoding, "encoding", "", "Output encoding: pem, binary (default from config)")
	flags.StringVar(&pubPart, "part", "full", "Public part: full, signing, encryption")
	flags.BoolVar(&pubForce, "force", false, "Overwrite an existing output file")
	_ = pubCmd.MarkFlagRequired("key")
}

func runPub(cmd *cobra.Command, args []string) error {
	enc, err := resolveEncoding(pubEncoding)
	if err != nil {
		return err
	}

	mk, info, err := openKey(pubKeyFile, pubPassphrase)
	if err != nil {
		return err
	}
	defer func() { _ = mk.Close() }()

	var pub format.PublicEncoder
	switch pubPart {
	case "full":
		pub, err = mk.PublicKey()
	case "signing":
		pub, err = mk.SigningPublicKey()
	case "encryption":
		pub, err = mk.EncryptionPublicKey()
	default:
		return fmt.Errorf("unknown part %q (want full, signing or encryption)", pubPart)
	}
	if err != nil {
		return err
	}

	info.Encoding = enc.String()
	if err := savePublic(pub, info, pubOut, cmd.OutOrStdout(), enc, pubForce); err != nil {
		return err
	}
	if pubOut != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Public key written to %s\n", pubOut)
	}
	return nil
}
