package main

import (
	"crypto/subtle"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/remiblancher/hybridkey/internal/config"
	"github.com/remiblancher/hybridkey/pkg/secret"
)

// newPassphrase returns the passphrase protecting a key being written.
// A nil result with a nil error means the key is stored in plaintext.
func newPassphrase(flagValue string, plaintext bool) (*secret.Buffer, error) {
	if plaintext {
		if flagValue != "" {
			return nil, fmt.Errorf("--plaintext and --passphrase are mutually exclusive")
		}
		return nil, nil
	}
	if flagValue != "" {
		return config.ResolvePassphrase(flagValue)
	}
	return promptPassphrase("New passphrase: ", true)
}

// existingPassphrase returns the passphrase for an encrypted key on disk.
func existingPassphrase(flagValue string) (*secret.Buffer, error) {
	if flagValue != "" {
		return config.ResolvePassphrase(flagValue)
	}
	return promptPassphrase("Passphrase: ", false)
}

// promptPassphrase reads a passphrase from the terminal with echo disabled.
func promptPassphrase(prompt string, confirm bool) (*secret.Buffer, error) {
	stdinFd := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFd) {
		return nil, fmt.Errorf("no terminal available for passphrase prompt (use --passphrase env:VAR or --plaintext)")
	}

	fmt.Fprint(os.Stderr, prompt)
	first, err := term.ReadPassword(stdinFd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	if len(first) == 0 {
		return nil, fmt.Errorf("passphrase is empty")
	}

	if confirm {
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		second, err := term.ReadPassword(stdinFd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			secret.Zero(first)
			return nil, fmt.Errorf("reading passphrase confirmation: %w", err)
		}
		match := subtle.ConstantTimeCompare(first, second) == 1
		secret.Zero(second)
		if !match {
			secret.Zero(first)
			return nil, fmt.Errorf("passphrases do not match")
		}
	}

	return secret.NewFromBytes(first)
}
