// Package masterkey implements the hybrid master key: one secret seed and
// two algorithm suites, one for signing (classical + post-quantum) and one
// for key exchange (DH + KEM).
//
// Every keypair is derived from the seed on demand and never cached. The
// caller owns each returned keypair and must Close it as soon as the secret
// half is no longer needed.
//
// Example:
//
//	mk, err := masterkey.Generate(crypto.DefaultHybridKEM(), crypto.DefaultHybridSign())
//	if err != nil {
//	    return err
//	}
//	defer mk.Close()
//
//	if err := mk.Export(file, passphrase, format.EncodingPEM); err != nil {
//	    return err
//	}
package masterkey

import (
	"errors"
	"fmt"
	"io"

	"github.com/remiblancher/hybridkey/pkg/crypto"
	"github.com/remiblancher/hybridkey/pkg/encryption"
	"github.com/remiblancher/hybridkey/pkg/format"
)

// ErrNilFormat is returned by Import when no record is given.
var ErrNilFormat = errors.New("no secret key record given")

// MasterKey aggregates a seed with a signing and a key exchange suite.
// It is immutable after construction and safe for concurrent derivation.
type MasterKey struct {
	sign   crypto.HybridSignAlgorithm
	kem    crypto.HybridKEMAlgorithm
	seed   *crypto.Seed
	params encryption.Params
}

// Option configures Generate, Import and FromRecoveryPhrase.
type Option func(*options)

type options struct {
	random io.Reader
	params encryption.Params
}

// WithRandom sets the randomness source used for the seed and for the
// salt and nonce of encrypted exports. The default is crypto/rand.Reader.
func WithRandom(r io.Reader) Option {
	return func(o *options) { o.random = r }
}

// WithEncryptionParams sets the Argon2id cost used by Export.
func WithEncryptionParams(p encryption.Params) Option {
	return func(o *options) { o.params = p }
}

func buildOptions(opts []Option) options {
	o := options{params: encryption.DefaultParams()}
	for _, opt := range opts {
		opt(&o)
	}
	o.params.Rand = o.random
	return o
}

// Generate creates a master key with a fresh random seed.
func Generate(kem crypto.HybridKEMAlgorithm, sign crypto.HybridSignAlgorithm, opts ...Option) (*MasterKey, error) {
	if err := validateSuites(kem, sign); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	seed, err := crypto.GenerateSeed(o.random)
	if err != nil {
		return nil, fmt.Errorf("failed to generate seed: %w", err)
	}
	return &MasterKey{sign: sign, kem: kem, seed: seed, params: o.params}, nil
}

func validateSuites(kem crypto.HybridKEMAlgorithm, sign crypto.HybridSignAlgorithm) error {
	if err := sign.Validate(); err != nil {
		return fmt.Errorf("invalid signing suite: %w", err)
	}
	if err := kem.Validate(); err != nil {
		return fmt.Errorf("invalid key exchange suite: %w", err)
	}
	return nil
}

// Algorithms returns the signing and key exchange suites.
func (m *MasterKey) Algorithms() (crypto.HybridSignAlgorithm, crypto.HybridKEMAlgorithm) {
	return m.sign, m.kem
}

// SigningKeyPair derives both halves of the signing suite.
// The caller must Close both keypairs.
func (m *MasterKey) SigningKeyPair() (*crypto.ECKeyPair, *crypto.PQKeyPair, error) {
	ec, err := crypto.DeriveECKeyPair(m.seed, m.sign.EC)
	if err != nil {
		return nil, nil, err
	}
	pq, err := crypto.DerivePQKeyPair(m.seed, m.sign.PQ)
	if err != nil {
		_ = ec.Close()
		return nil, nil, err
	}
	return ec, pq, nil
}

// EncryptionKeyPair derives both halves of the key exchange suite.
// The caller must Close both keypairs.
func (m *MasterKey) EncryptionKeyPair() (*crypto.DHKeyPair, *crypto.KEMKeyPair, error) {
	dh, err := crypto.DeriveDHKeyPair(m.seed, m.kem.DH)
	if err != nil {
		return nil, nil, err
	}
	k, err := crypto.DeriveKEMKeyPair(m.seed, m.kem.KEM)
	if err != nil {
		_ = dh.Close()
		return nil, nil, err
	}
	return dh, k, nil
}

// SigningPublicKey returns the public half of the signing suite. The
// derived secret keys are wiped before it returns.
func (m *MasterKey) SigningPublicKey() (*format.SignaturePublicKeyFormat, error) {
	ec, pq, err := m.SigningKeyPair()
	if err != nil {
		return nil, err
	}
	defer func() { _ = ec.Close() }()
	defer func() { _ = pq.Close() }()

	return &format.SignaturePublicKeyFormat{
		ECAlgorithm: ec.Algorithm,
		ECPublic:    append([]byte(nil), ec.Public...),
		PQAlgorithm: pq.Algorithm,
		PQPublic:    append([]byte(nil), pq.Public...),
	}, nil
}

// EncryptionPublicKey returns the public half of the key exchange suite.
func (m *MasterKey) EncryptionPublicKey() (*format.EncryptionPublicKeyFormat, error) {
	dh, k, err := m.EncryptionKeyPair()
	if err != nil {
		return nil, err
	}
	defer func() { _ = dh.Close() }()
	defer func() { _ = k.Close() }()

	return &format.EncryptionPublicKeyFormat{
		DHAlgorithm:  dh.Algorithm,
		DHPublic:     append([]byte(nil), dh.Public...),
		KEMAlgorithm: k.Algorithm,
		KEMPublic:    append([]byte(nil), k.Public...),
	}, nil
}

// PublicKey returns the full public bundle.
func (m *MasterKey) PublicKey() (*format.FullChainPublicKeyFormat, error) {
	sig, err := m.SigningPublicKey()
	if err != nil {
		return nil, err
	}
	enc, err := m.EncryptionPublicKey()
	if err != nil {
		return nil, err
	}
	return &format.FullChainPublicKeyFormat{SignaturePublicKey: *sig, EncryptionPublicKey: *enc}, nil
}

// Fingerprint returns the fingerprint of the public bundle.
func (m *MasterKey) Fingerprint() (string, error) {
	pub, err := m.PublicKey()
	if err != nil {
		return "", err
	}
	return pub.Fingerprint()
}

// Sign produces both component signatures over message.
func (m *MasterKey) Sign(message []byte) (*crypto.HybridSignature, error) {
	ec, pq, err := m.SigningKeyPair()
	if err != nil {
		return nil, err
	}
	defer func() { _ = ec.Close() }()
	defer func() { _ = pq.Close() }()

	return crypto.SignHybrid(ec, pq, message)
}

// Decapsulate recovers both component shared secrets from ct.
// The caller must Close the result.
func (m *MasterKey) Decapsulate(ct *crypto.HybridCiphertext) (*crypto.HybridSharedSecret, error) {
	dh, k, err := m.EncryptionKeyPair()
	if err != nil {
		return nil, err
	}
	defer func() { _ = dh.Close() }()
	defer func() { _ = k.Close() }()

	return crypto.DecapsulateHybrid(dh, k, ct)
}

// Close wipes the seed. The master key is unusable afterwards.
func (m *MasterKey) Close() error {
	if m == nil {
		return nil
	}
	return m.seed.Close()
}

// IsEncrypted reports whether f carries a passphrase-sealed seed.
func IsEncrypted(f *format.SecretKeyFormat) bool {
	return f.IsEncrypted()
}
