package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/cloudflare/circl/dh/x25519"
	"github.com/cloudflare/circl/dh/x448"
	"github.com/cloudflare/circl/sign/slhdsa"

	"github.com/remiblancher/hybridkey/pkg/secret"
)

// ECKeyPair is a derived classical signing keypair.
// Close wipes the secret half; the public half stays usable.
type ECKeyPair struct {
	Algorithm ECAlgorithm
	Public    []byte
	secretKey *secret.Buffer
}

// PQKeyPair is a derived post-quantum signing keypair.
type PQKeyPair struct {
	Algorithm PQAlgorithm
	Public    []byte
	secretKey *secret.Buffer
}

// DHKeyPair is a derived classical key agreement keypair.
type DHKeyPair struct {
	Algorithm DHAlgorithm
	Public    []byte
	secretKey *secret.Buffer
}

// KEMKeyPair is a derived post-quantum KEM keypair.
type KEMKeyPair struct {
	Algorithm KEMAlgorithm
	Public    []byte
	secretKey *secret.Buffer
}

// SecretKey returns the buffer holding the encoded private key.
// It is owned by the keypair and wiped by Close.
func (k *ECKeyPair) SecretKey() *secret.Buffer { return k.secretKey }

// Close wipes the private key.
func (k *ECKeyPair) Close() error {
	if k == nil {
		return nil
	}
	return k.secretKey.Close()
}

// Sign signs message with the classical private key.
func (k *ECKeyPair) Sign(message []byte) ([]byte, error) {
	return signWithScheme(string(k.Algorithm), k.secretKey, message)
}

// SecretKey returns the buffer holding the encoded private key.
func (k *PQKeyPair) SecretKey() *secret.Buffer { return k.secretKey }

// Close wipes the private key.
func (k *PQKeyPair) Close() error {
	if k == nil {
		return nil
	}
	return k.secretKey.Close()
}

// Sign signs message with the post-quantum private key.
func (k *PQKeyPair) Sign(message []byte) ([]byte, error) {
	id, ok := slhdsaID(k.Algorithm)
	if !ok {
		return signWithScheme(string(k.Algorithm), k.secretKey, message)
	}

	var signature []byte
	err := k.secretKey.Expose(func(b []byte) error {
		var priv slhdsa.PrivateKey
		priv.ID = id
		if err := priv.UnmarshalBinary(b); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		var err error
		signature, err = priv.Sign(rand.Reader, message, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s signing failed: %w", k.Algorithm, err)
	}
	return signature, nil
}

// SecretKey returns the buffer holding the DH secret scalar.
func (k *DHKeyPair) SecretKey() *secret.Buffer { return k.secretKey }

// Close wipes the secret scalar.
func (k *DHKeyPair) Close() error {
	if k == nil {
		return nil
	}
	return k.secretKey.Close()
}

// SharedSecret computes the DH shared secret with a peer public key.
// Low-order peer points are rejected with ErrInvalidKey.
func (k *DHKeyPair) SharedSecret(peerPublic []byte) (*secret.Buffer, error) {
	var shared []byte
	err := k.secretKey.Expose(func(b []byte) error {
		var err error
		shared, err = dhShared(k.Algorithm, b, peerPublic)
		return err
	})
	if err != nil {
		return nil, err
	}
	return secret.NewFromBytes(shared)
}

// SecretKey returns the buffer holding the encoded KEM private key.
func (k *KEMKeyPair) SecretKey() *secret.Buffer { return k.secretKey }

// Close wipes the private key.
func (k *KEMKeyPair) Close() error {
	if k == nil {
		return nil
	}
	return k.secretKey.Close()
}

// Decapsulate recovers the shared secret from a KEM ciphertext.
func (k *KEMKeyPair) Decapsulate(ciphertext []byte) (*secret.Buffer, error) {
	scheme, ok := kemScheme(k.Algorithm)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, k.Algorithm)
	}
	if len(ciphertext) != scheme.CiphertextSize() {
		return nil, fmt.Errorf("%w: %s ciphertext is %d bytes, want %d",
			ErrInvalidKey, k.Algorithm, len(ciphertext), scheme.CiphertextSize())
	}

	var shared []byte
	err := k.secretKey.Expose(func(b []byte) error {
		priv, err := scheme.UnmarshalBinaryPrivateKey(b)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		shared, err = scheme.Decapsulate(priv, ciphertext)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s decapsulation failed: %w", k.Algorithm, err)
	}
	return secret.NewFromBytes(shared)
}

// Encapsulate generates a shared secret for the holder of a KEM public key.
// A nil random reader means crypto/rand.Reader.
func Encapsulate(alg KEMAlgorithm, public []byte, random io.Reader) ([]byte, *secret.Buffer, error) {
	scheme, ok := kemScheme(alg)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
	if random == nil {
		random = rand.Reader
	}

	pub, err := scheme.UnmarshalBinaryPublicKey(public)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s public key: %v", ErrInvalidKey, alg, err)
	}

	seed, err := secret.NewFromReader(random, scheme.EncapsulationSeedSize())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRandomSource, err)
	}
	defer func() { _ = seed.Close() }()

	var ciphertext, shared []byte
	err = seed.Expose(func(b []byte) error {
		var err error
		ciphertext, shared, err = scheme.EncapsulateDeterministically(pub, b)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%s encapsulation failed: %w", alg, err)
	}

	ss, err := secret.NewFromBytes(shared)
	if err != nil {
		return nil, nil, err
	}
	return ciphertext, ss, nil
}

// GenerateDHKeyPair creates a random DH keypair, typically an ephemeral one
// for a single key agreement. A nil random reader means crypto/rand.Reader.
func GenerateDHKeyPair(alg DHAlgorithm, random io.Reader) (*DHKeyPair, error) {
	size, ok := dhKeySize(alg)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
	if random == nil {
		random = rand.Reader
	}

	sk, err := secret.NewFromReader(random, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRandomSource, err)
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

// VerifyEC verifies a classical signature.
func VerifyEC(alg ECAlgorithm, public, message, signature []byte) bool {
	return verifyWithScheme(string(alg), public, message, signature)
}

// VerifyPQ verifies a post-quantum signature.
func VerifyPQ(alg PQAlgorithm, public, message, signature []byte) bool {
	id, ok := slhdsaID(alg)
	if !ok {
		return verifyWithScheme(string(alg), public, message, signature)
	}

	var pub slhdsa.PublicKey
	pub.ID = id
	if err := pub.UnmarshalBinary(public); err != nil {
		return false
	}
	return slhdsa.Verify(&pub, slhdsa.NewMessage(message), signature, nil)
}

func signWithScheme(alg string, sk *secret.Buffer, message []byte) ([]byte, error) {
	scheme, ok := signScheme(alg)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	var signature []byte
	err := sk.Expose(func(b []byte) error {
		priv, err := scheme.UnmarshalBinaryPrivateKey(b)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		signature = scheme.Sign(priv, message, nil)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s signing failed: %w", alg, err)
	}
	return signature, nil
}

func verifyWithScheme(alg string, public, message, signature []byte) bool {
	scheme, ok := signScheme(alg)
	if !ok {
		return false
	}
	if len(public) != scheme.PublicKeySize() || len(signature) != scheme.SignatureSize() {
		return false
	}
	pub, err := scheme.UnmarshalBinaryPublicKey(public)
	if err != nil {
		return false
	}
	return scheme.Verify(pub, message, signature, nil)
}

func dhKeySize(alg DHAlgorithm) (int, bool) {
	switch alg {
	case AlgX25519:
		return x25519.Size, true
	case AlgX448:
		return x448.Size, true
	default:
		return 0, false
	}
}

// dhPublic computes the public point for a DH secret scalar.
func dhPublic(alg DHAlgorithm, sk []byte) ([]byte, error) {
	switch alg {
	case AlgX25519:
		var s, p x25519.Key
		if len(sk) != len(s) {
			return nil, fmt.Errorf("%w: x25519 secret is %d bytes", ErrInvalidKey, len(sk))
		}
		copy(s[:], sk)
		x25519.KeyGen(&p, &s)
		secret.Zero(s[:])
		return p[:], nil
	case AlgX448:
		var s, p x448.Key
		if len(sk) != len(s) {
			return nil, fmt.Errorf("%w: x448 secret is %d bytes", ErrInvalidKey, len(sk))
		}
		copy(s[:], sk)
		x448.KeyGen(&p, &s)
		secret.Zero(s[:])
		return p[:], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

// dhShared computes the shared secret between a secret scalar and a peer point.
func dhShared(alg DHAlgorithm, sk, peer []byte) ([]byte, error) {
	switch alg {
	case AlgX25519:
		var s, p, shared x25519.Key
		if len(peer) != len(p) {
			return nil, fmt.Errorf("%w: x25519 public key is %d bytes", ErrInvalidKey, len(peer))
		}
		copy(s[:], sk)
		copy(p[:], peer)
		ok := x25519.Shared(&shared, &s, &p)
		secret.Zero(s[:])
		if !ok {
			return nil, fmt.Errorf("%w: x25519 low-order public key", ErrInvalidKey)
		}
		return shared[:], nil
	case AlgX448:
		var s, p, shared x448.Key
		if len(peer) != len(p) {
			return nil, fmt.Errorf("%w: x448 public key is %d bytes", ErrInvalidKey, len(peer))
		}
		copy(s[:], sk)
		copy(p[:], peer)
		ok := x448.Shared(&shared, &s, &p)
		secret.Zero(s[:])
		if !ok {
			return nil, fmt.Errorf("%w: x448 low-order public key", ErrInvalidKey)
		}
		return shared[:], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

// PublicKeySize returns the encoded public key size for the algorithm,
// or 0 if it is not supported.
func (a ECAlgorithm) PublicKeySize() int {
	if scheme, ok := signScheme(string(a)); ok {
		return scheme.PublicKeySize()
	}
	return 0
}

// PublicKeySize returns the encoded public key size for the algorithm,
// or 0 if it is not supported.
func (a PQAlgorithm) PublicKeySize() int {
	if scheme, ok := signScheme(string(a)); ok {
		return scheme.PublicKeySize()
	}
	if _, ok := slhdsaID(a); ok {
		// SLH-DSA public keys are PK.seed || PK.root, n bytes each.
		return 2 * 16
	}
	return 0
}

// PublicKeySize returns the encoded public key size for the algorithm,
// or 0 if it is not supported.
func (a DHAlgorithm) PublicKeySize() int {
	size, _ := dhKeySize(a)
	return size
}

// PublicKeySize returns the encoded public key size for the algorithm,
// or 0 if it is not supported.
func (a KEMAlgorithm) PublicKeySize() int {
	if scheme, ok := kemScheme(a); ok {
		return scheme.PublicKeySize()
	}
	return 0
}
