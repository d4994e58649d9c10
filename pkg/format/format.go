// Package format defines the persisted and exchanged forms of a hybrid
// master key and their codecs.
//
// Two contracts are kept apart at the type level. PublicEncoder is
// implemented by the public key formats and yields plain byte slices.
// SecretEncoder is implemented by SecretKeyFormat and yields secret buffers
// only. The method names are disjoint, so no type can satisfy both by
// accident and secret material never reaches a plain byte slice through
// this package.
//
// Every format has a binary encoding (CBOR, Core Deterministic Encoding,
// integer-keyed maps) and a PEM encoding wrapping the binary one.
package format

import (
	"fmt"
	"strings"

	"github.com/remiblancher/hybridkey/pkg/crypto"
	"github.com/remiblancher/hybridkey/pkg/secret"
)

// Version is the record layout version written into every encoding.
const Version = 1

// Encoding selects the binary or PEM form of a format.
type Encoding int

const (
	// EncodingPEM is the PEM text form.
	EncodingPEM Encoding = iota
	// EncodingBinary is the raw CBOR form.
	EncodingBinary
)

// String returns the encoding name.
func (e Encoding) String() string {
	switch e {
	case EncodingPEM:
		return "pem"
	case EncodingBinary:
		return "binary"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// ParseEncoding parses "pem" or "binary".
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "pem":
		return EncodingPEM, nil
	case "binary", "bin", "cbor":
		return EncodingBinary, nil
	default:
		return 0, fmt.Errorf("unknown encoding %q (want pem or binary)", s)
	}
}

// PublicEncoder is implemented by formats that hold public material only.
type PublicEncoder interface {
	EncodeBinary() ([]byte, error)
	EncodePEM() ([]byte, error)
}

// SecretEncoder is implemented by formats that hold secret material. The
// encoded output is itself secret and is returned in a secret buffer.
type SecretEncoder interface {
	EncodeSecretBinary() (*secret.Buffer, error)
	EncodeSecretPEM() (*secret.Buffer, error)
}

var (
	_ PublicEncoder = (*SignaturePublicKeyFormat)(nil)
	_ PublicEncoder = (*EncryptionPublicKeyFormat)(nil)
	_ PublicEncoder = (*FullChainPublicKeyFormat)(nil)
	_ SecretEncoder = (*SecretKeyFormat)(nil)
)

// Identifiers recorded in EncryptionMetadata.
const (
	KDFArgon2id             = "argon2id"
	CipherXChaCha20Poly1305 = "xchacha20-poly1305"
)

const additionalDataLabel = "hybridkey/secret-key/v1"

// KDFParams records how the encryption key was derived from the passphrase.
type KDFParams struct {
	Algorithm string
	Salt      []byte
	Time      uint32
	MemoryKB  uint32
	Threads   uint8
}

// CipherParams records the AEAD used to seal the master seed.
type CipherParams struct {
	Algorithm string
	Nonce     []byte
}

// EncryptionMetadata describes a passphrase-encrypted master seed. Its
// presence in a SecretKeyFormat means MasterSeed holds ciphertext.
type EncryptionMetadata struct {
	KDF    KDFParams
	Cipher CipherParams
}

// SecretKeyFormat is the persisted form of a master key.
type SecretKeyFormat struct {
	ECAlgorithm  crypto.ECAlgorithm
	PQAlgorithm  crypto.PQAlgorithm
	DHAlgorithm  crypto.DHAlgorithm
	KEMAlgorithm crypto.KEMAlgorithm

	// MasterSeed holds the plaintext seed, or the sealed seed when
	// EncryptionMetadata is set.
	MasterSeed *secret.Buffer

	EncryptionMetadata *EncryptionMetadata
}

// IsEncrypted reports whether the record carries a sealed seed.
func (f *SecretKeyFormat) IsEncrypted() bool {
	return f != nil && f.EncryptionMetadata != nil
}

// HybridSign returns the signing suite recorded in the format.
func (f *SecretKeyFormat) HybridSign() crypto.HybridSignAlgorithm {
	return crypto.HybridSignAlgorithm{EC: f.ECAlgorithm, PQ: f.PQAlgorithm}
}

// HybridKEM returns the key exchange suite recorded in the format.
func (f *SecretKeyFormat) HybridKEM() crypto.HybridKEMAlgorithm {
	return crypto.HybridKEMAlgorithm{DH: f.DHAlgorithm, KEM: f.KEMAlgorithm}
}

// AdditionalData returns the bytes authenticated alongside a sealed seed.
// It binds the layout version and all four algorithm identifiers, so a
// record whose identifiers were edited fails to open.
func (f *SecretKeyFormat) AdditionalData() []byte {
	parts := []string{
		additionalDataLabel,
		string(f.ECAlgorithm),
		string(f.PQAlgorithm),
		string(f.DHAlgorithm),
		string(f.KEMAlgorithm),
	}
	var out []byte
	for i, part := range parts {
		if i > 0 {
			out = append(out, 0)
		}
		out = append(out, part...)
	}
	return out
}

// Close wipes the master seed.
func (f *SecretKeyFormat) Close() error {
	if f == nil {
		return nil
	}
	return f.MasterSeed.Close()
}

// validate checks the record against the closed algorithm sets and the
// seed size rules.
func (f *SecretKeyFormat) validate() error {
	if err := f.HybridSign().Validate(); err != nil {
		return structureError("%v", err)
	}
	if err := f.HybridKEM().Validate(); err != nil {
		return structureError("%v", err)
	}
	if f.MasterSeed == nil {
		return structureError("missing master seed")
	}
	n := f.MasterSeed.Len()
	if f.EncryptionMetadata == nil {
		if n != crypto.SeedSize {
			return structureError("master seed is %d bytes, want %d", n, crypto.SeedSize)
		}
		return nil
	}
	if n <= crypto.SeedSize {
		return structureError("sealed master seed is too short (%d bytes)", n)
	}
	return f.EncryptionMetadata.validate()
}

func (m *EncryptionMetadata) validate() error {
	if m.KDF.Algorithm == "" {
		return structureError("missing KDF algorithm")
	}
	if len(m.KDF.Salt) == 0 {
		return structureError("missing KDF salt")
	}
	if m.Cipher.Algorithm == "" {
		return structureError("missing cipher algorithm")
	}
	if len(m.Cipher.Nonce) == 0 {
		return structureError("missing cipher nonce")
	}
	return nil
}

// SignaturePublicKeyFormat is the public half of the signing suite.
type SignaturePublicKeyFormat struct {
	ECAlgorithm crypto.ECAlgorithm
	ECPublic    []byte
	PQAlgorithm crypto.PQAlgorithm
	PQPublic    []byte
}

// HybridSign returns the signing suite of the key.
func (f *SignaturePublicKeyFormat) HybridSign() crypto.HybridSignAlgorithm {
	return crypto.HybridSignAlgorithm{EC: f.ECAlgorithm, PQ: f.PQAlgorithm}
}

// Verify checks a hybrid signature against both public keys.
func (f *SignaturePublicKeyFormat) Verify(message []byte, sig *crypto.HybridSignature) bool {
	return crypto.VerifyHybrid(f.HybridSign(), f.ECPublic, f.PQPublic, message, sig)
}

func (f *SignaturePublicKeyFormat) validate() error {
	if err := f.HybridSign().Validate(); err != nil {
		return structureError("%v", err)
	}
	if len(f.ECPublic) != f.ECAlgorithm.PublicKeySize() {
		return structureError("%s public key is %d bytes, want %d", f.ECAlgorithm, len(f.ECPublic), f.ECAlgorithm.PublicKeySize())
	}
	if len(f.PQPublic) != f.PQAlgorithm.PublicKeySize() {
		return structureError("%s public key is %d bytes, want %d", f.PQAlgorithm, len(f.PQPublic), f.PQAlgorithm.PublicKeySize())
	}
	return nil
}

// EncryptionPublicKeyFormat is the public half of the key exchange suite.
type EncryptionPublicKeyFormat struct {
	DHAlgorithm  crypto.DHAlgorithm
	DHPublic     []byte
	KEMAlgorithm crypto.KEMAlgorithm
	KEMPublic    []byte
}

// HybridKEM returns the key exchange suite of the key.
func (f *EncryptionPublicKeyFormat) HybridKEM() crypto.HybridKEMAlgorithm {
	return crypto.HybridKEMAlgorithm{DH: f.DHAlgorithm, KEM: f.KEMAlgorithm}
}

func (f *EncryptionPublicKeyFormat) validate() error {
	if err := f.HybridKEM().Validate(); err != nil {
		return structureError("%v", err)
	}
	if len(f.DHPublic) != f.DHAlgorithm.PublicKeySize() {
		return structureError("%s public key is %d bytes, want %d", f.DHAlgorithm, len(f.DHPublic), f.DHAlgorithm.PublicKeySize())
	}
	if len(f.KEMPublic) != f.KEMAlgorithm.PublicKeySize() {
		return structureError("%s public key is %d bytes, want %d", f.KEMAlgorithm, len(f.KEMPublic), f.KEMAlgorithm.PublicKeySize())
	}
	return nil
}

// FullChainPublicKeyFormat bundles both public halves of a master key.
type FullChainPublicKeyFormat struct {
	SignaturePublicKey  SignaturePublicKeyFormat
	EncryptionPublicKey EncryptionPublicKeyFormat
}

func (f *FullChainPublicKeyFormat) validate() error {
	if err := f.SignaturePublicKey.validate(); err != nil {
		return err
	}
	return f.EncryptionPublicKey.validate()
}
