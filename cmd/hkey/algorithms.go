package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/remiblancher/hybridkey/pkg/crypto"
)

var algorithmsCmd = &cobra.Command{
	Use:   "algorithms",
	Short: "List supported algorithms",
	Long: `List the algorithms accepted in each slot of a master key.

A signing suite pairs one EC with one PQ algorithm (--sign <ec>+<pq>).
A key exchange suite pairs one DH with one KEM algorithm (--kem <dh>+<kem>).
Defaults come from the configuration file.`,
	Args: cobra.NoArgs,
	RunE: runAlgorithms,
}

type algorithmRow interface {
	String() string
	Description() string
}

func runAlgorithms(cmd *cobra.Command, args []string) error {
	sign, kem, err := resolveSuites("", "")
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SLOT\tNAME\tDEFAULT\tDESCRIPTION")
	_, _ = fmt.Fprintln(w, "----\t----\t-------\t-----------")

	for _, a := range crypto.ECAlgorithms() {
		printAlgorithmRow(w, "ec", a, a == sign.EC)
	}
	for _, a := range crypto.PQAlgorithms() {
		printAlgorithmRow(w, "pq", a, a == sign.PQ)
	}
	for _, a := range crypto.DHAlgorithms() {
		printAlgorithmRow(w, "dh", a, a == kem.DH)
	}
	for _, a := range crypto.KEMAlgorithms() {
		printAlgorithmRow(w, "kem", a, a == kem.KEM)
	}
	return w.Flush()
}

func printAlgorithmRow(w io.Writer, slot string, a algorithmRow, isDefault bool) {
	def := ""
	if isDefault {
		def = "*"
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", slot, a, def, a.Description())
}
