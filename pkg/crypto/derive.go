package crypto

import (
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"github.com/cloudflare/circl/kem/mlkem/mlkem512"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/cloudflare/circl/sign/ed448"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"github.com/cloudflare/circl/sign/slhdsa"
	"golang.org/x/crypto/hkdf"

	"github.com/remiblancher/hybridkey/pkg/secret"
)

// DerivationSalt is the HKDF salt shared by every derivation. Changing it
// changes every key derived from every seed.
const DerivationSalt = "hybridkey/derive/v1"

// DerivationInfo returns the HKDF info label for a kind and algorithm,
// "<purpose>:<algorithm>". Distinct labels make derived keys independent.
func DerivationInfo(kind Kind, alg string) string {
	return kind.purpose() + ":" + alg
}

// deriveBytes expands the seed into size bytes for one purpose and algorithm.
// The caller owns the returned buffer.
func deriveBytes(seed *Seed, kind Kind, alg string, size int) (*secret.Buffer, error) {
	if seed == nil {
		return nil, fmt.Errorf("%w: nil seed", ErrInvalidSeed)
	}

	okm, err := secret.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate derivation buffer: %w", err)
	}

	err = seed.Expose(func(ikm []byte) error {
		reader := hkdf.New(sha512.New, ikm, []byte(DerivationSalt), []byte(DerivationInfo(kind, alg)))
		_, err := io.ReadFull(reader, okm.Bytes())
		return err
	})
	if err != nil {
		_ = okm.Close()
		return nil, fmt.Errorf("key derivation failed for %s: %w", DerivationInfo(kind, alg), err)
	}
	return okm, nil
}

// deriveStream hands fn an HKDF output stream for one purpose and algorithm.
// Used by primitives that draw their key generation randomness from a reader.
func deriveStream(seed *Seed, kind Kind, alg string, fn func(io.Reader) error) error {
	if seed == nil {
		return fmt.Errorf("%w: nil seed", ErrInvalidSeed)
	}
	return seed.Expose(func(ikm []byte) error {
		return fn(hkdf.New(sha512.New, ikm, []byte(DerivationSalt), []byte(DerivationInfo(kind, alg))))
	})
}

// signScheme returns the circl scheme for a seed-derivable signature algorithm.
func signScheme(alg string) (sign.Scheme, bool) {
	switch alg {
	case string(AlgEd25519):
		return ed25519.Scheme(), true
	case string(AlgEd448):
		return ed448.Scheme(), true
	case string(AlgMLDSA44):
		return mldsa44.Scheme(), true
	case string(AlgMLDSA65):
		return mldsa65.Scheme(), true
	case string(AlgMLDSA87):
		return mldsa87.Scheme(), true
	default:
		return nil, false
	}
}

// kemScheme returns the circl scheme for an ML-KEM parameter set.
func kemScheme(alg KEMAlgorithm) (kem.Scheme, bool) {
	switch alg {
	case AlgMLKEM512:
		return mlkem512.Scheme(), true
	case AlgMLKEM768:
		return mlkem768.Scheme(), true
	case AlgMLKEM1024:
		return mlkem1024.Scheme(), true
	default:
		return nil, false
	}
}

// slhdsaID maps a PQ algorithm to its SLH-DSA parameter set.
func slhdsaID(alg PQAlgorithm) (slhdsa.ID, bool) {
	switch alg {
	case AlgSLHDSASHA2128f:
		return slhdsa.SHA2_128f, true
	default:
		return 0, false
	}
}

// deriveSignKeyPair derives a keypair through a circl sign.Scheme.
func deriveSignKeyPair(seed *Seed, kind Kind, scheme sign.Scheme, alg string) ([]byte, *secret.Buffer, error) {
	okm, err := deriveBytes(seed, kind, alg, scheme.SeedSize())
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = okm.Close() }()

	var pub sign.PublicKey
	var priv sign.PrivateKey
	if err := okm.Expose(func(b []byte) error {
		pub, priv = scheme.DeriveKey(b)
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to derive %s keypair: %w", alg, err)
	}

	return marshalSignKeyPair(pub, priv)
}

func marshalSignKeyPair(pub sign.PublicKey, priv sign.PrivateKey) ([]byte, *secret.Buffer, error) {
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	sk, err := secret.NewFromBytes(privBytes)
	if err != nil {
		return nil, nil, err
	}
	return pubBytes, sk, nil
}

// DeriveECKeyPair derives the classical signing keypair for alg from seed.
func DeriveECKeyPair(seed *Seed, alg ECAlgorithm) (*ECKeyPair, error) {
	if !alg.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
	scheme, ok := signScheme(string(alg))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	pub, sk, err := deriveSignKeyPair(seed, KindEC, scheme, string(alg))
	if err != nil {
		return nil, err
	}
	return &ECKeyPair{Algorithm: alg, Public: pub, secretKey: sk}, nil
}

// DerivePQKeyPair derives the post-quantum signing keypair for alg from seed.
func DerivePQKeyPair(seed *Seed, alg PQAlgorithm) (*PQKeyPair, error) {
	if !alg.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	if scheme, ok := signScheme(string(alg)); ok {
		pub, sk, err := deriveSignKeyPair(seed, KindPQ, scheme, string(alg))
		if err != nil {
			return nil, err
		}
		return &PQKeyPair{Algorithm: alg, Public: pub, secretKey: sk}, nil
	}

	id, ok := slhdsaID(alg)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	var pubBytes, privBytes []byte
	err := deriveStream(seed, KindPQ, string(alg), func(r io.Reader) error {
		pub, priv, err := slhdsa.GenerateKey(r, id)
		if err != nil {
			return err
		}
		if pubBytes, err = pub.MarshalBinary(); err != nil {
			return err
		}
		privBytes, err = priv.MarshalBinary()
		return err
	})
	if err != nil {
		secret.Zero(privBytes)
		return nil, fmt.Errorf("failed to derive %s key: %w", alg, err)
	}

	sk, err := secret.NewFromBytes(privBytes)
	if err != nil {
		return nil, err
	}
	return &PQKeyPair{Algorithm: alg, Public: pubBytes, secretKey: sk}, nil
}

// DeriveDHKeyPair derives the classical key agreement keypair for alg from
// seed. The derived bytes are the DH secret scalar.
func DeriveDHKeyPair(seed *Seed, alg DHAlgorithm) (*DHKeyPair, error) {
	size, ok := dhKeySize(alg)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	sk, err := deriveBytes(seed, KindDH, string(alg), size)
	if err != nil {
		return nil, err
	}

	var pub []byte
	err = sk.Expose(func(b []byte) error {
		var err error
		pub, err = dhPublic(alg, b)
		return err
	})
	if err != nil {
		_ = sk.Close()
		return nil, err
	}
	return &DHKeyPair{Algorithm: alg, Public: pub, secretKey: sk}, nil
}

// DeriveKEMKeyPair derives the post-quantum KEM keypair for alg from seed.
func DeriveKEMKeyPair(seed *Seed, alg KEMAlgorithm) (*KEMKeyPair, error) {
	scheme, ok := kemScheme(alg)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	okm, err := deriveBytes(seed, KindKEM, string(alg), scheme.SeedSize())
	if err != nil {
		return nil, err
	}
	defer func() { _ = okm.Close() }()

	var pub kem.PublicKey
	var priv kem.PrivateKey
	if err := okm.Expose(func(b []byte) error {
		pub, priv = scheme.DeriveKeyPair(b)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to derive %s keypair: %w", alg, err)
	}

	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s public key: %w", alg, err)
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s private key: %w", alg, err)
	}
	sk, err := secret.NewFromBytes(privBytes)
	if err != nil {
		return nil, err
	}
	return &KEMKeyPair{Algorithm: alg, Public: pubBytes, secretKey: sk}, nil
}
