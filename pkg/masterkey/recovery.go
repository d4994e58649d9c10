package masterkey

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"

	"github.com/remiblancher/hybridkey/pkg/crypto"
)

// ErrInvalidPhrase is returned for a recovery phrase that is not a valid
// 24-word BIP-39 mnemonic.
var ErrInvalidPhrase = errors.New("invalid recovery phrase")

// RecoveryPhrase returns the seed as a 24-word BIP-39 mnemonic. The phrase
// is the seed; anyone holding it can rebuild the master key.
func (m *MasterKey) RecoveryPhrase() (string, error) {
	var phrase string
	err := m.seed.Expose(func(seed []byte) error {
		var err error
		phrase, err = bip39.NewMnemonic(seed)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to build recovery phrase: %w", err)
	}
	return phrase, nil
}

// FromRecoveryPhrase rebuilds a master key from a phrase returned by
// RecoveryPhrase. The suites are not part of the phrase and must be given.
func FromRecoveryPhrase(phrase string, kem crypto.HybridKEMAlgorithm, sign crypto.HybridSignAlgorithm, opts ...Option) (*MasterKey, error) {
	if err := validateSuites(kem, sign); err != nil {
		return nil, err
	}

	phrase = strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
	if !bip39.IsMnemonicValid(phrase) {
		return nil, ErrInvalidPhrase
	}
	entropy, err := bip39.EntropyFromMnemonic(phrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhrase, err)
	}

	seed, err := crypto.SeedFromBytes(entropy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhrase, err)
	}
	o := buildOptions(opts)
	return &MasterKey{sign: sign, kem: kem, seed: seed, params: o.params}, nil
}
