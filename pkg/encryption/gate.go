// Package encryption seals and opens a master seed under a passphrase.
//
// The key is stretched from the passphrase with Argon2id and the seed is
// sealed with XChaCha20-Poly1305. Every parameter needed to open the seed
// again is returned as format.EncryptionMetadata and persisted next to the
// ciphertext. Callers pass additional data binding the record's algorithm
// identifiers, so a record whose identifiers were edited fails to open.
package encryption

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/remiblancher/hybridkey/pkg/format"
	"github.com/remiblancher/hybridkey/pkg/secret"
)

// Sizes of the random inputs recorded in the metadata.
const (
	SaltSize  = 16
	NonceSize = chacha20poly1305.NonceSizeX
	KeySize   = chacha20poly1305.KeySize
	Overhead  = chacha20poly1305.Overhead
)

// Cost bounds accepted when sealing and when opening a record. The record's
// parameters are read before anything is authenticated, so these also cap
// the work a corrupted or crafted record can demand.
const (
	MaxTime     = 16
	MaxMemoryKB = 1024 * 1024 // 1 GiB
	MaxThreads  = 16
)

// Sentinel errors for sealing and opening.
// Use errors.Is() to check for these errors through the error chain.
var (
	// ErrAuthentication indicates a wrong passphrase or a modified record.
	// The two cases are deliberately indistinguishable.
	ErrAuthentication = errors.New("authentication failed: wrong passphrase or corrupted key")

	// ErrUnsupportedParameters indicates unknown KDF or cipher identifiers,
	// or parameters outside the accepted bounds.
	ErrUnsupportedParameters = errors.New("unsupported encryption parameters")

	// ErrNoPassphrase indicates a nil passphrase buffer.
	ErrNoPassphrase = errors.New("no passphrase given")
)

// Params are the Argon2id cost parameters used when sealing.
type Params struct {
	Time     uint32
	MemoryKB uint32
	Threads  uint8

	// Rand supplies salt and nonce. Nil means crypto/rand.Reader.
	Rand io.Reader
}

// DefaultParams returns time=3, memory=64 MiB, threads=4.
func DefaultParams() Params {
	return Params{
		Time:     3,
		MemoryKB: 64 * 1024,
		Threads:  4,
	}
}

// Validate checks the cost parameters against the accepted bounds.
func (p Params) Validate() error {
	if p.Time == 0 || p.Time > MaxTime {
		return fmt.Errorf("%w: argon2id time %d outside [1, %d]", ErrUnsupportedParameters, p.Time, MaxTime)
	}
	if p.Threads == 0 || p.Threads > MaxThreads {
		return fmt.Errorf("%w: argon2id threads %d outside [1, %d]", ErrUnsupportedParameters, p.Threads, MaxThreads)
	}
	if p.MemoryKB < 8*uint32(p.Threads) || p.MemoryKB > MaxMemoryKB {
		return fmt.Errorf("%w: argon2id memory %d KiB outside [%d, %d]",
			ErrUnsupportedParameters, p.MemoryKB, 8*uint32(p.Threads), MaxMemoryKB)
	}
	return nil
}

// Seal encrypts plaintext under passphrase. It returns the ciphertext in a
// secret buffer and the metadata needed to open it.
func Seal(plaintext, passphrase *secret.Buffer, aad []byte, params Params) (*secret.Buffer, *format.EncryptionMetadata, error) {
	if passphrase == nil {
		return nil, nil, ErrNoPassphrase
	}
	if plaintext == nil {
		return nil, nil, fmt.Errorf("nothing to seal")
	}
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}

	random := params.Rand
	if random == nil {
		random = rand.Reader
	}
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(random, salt); err != nil {
		return nil, nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(random, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	metadata := &format.EncryptionMetadata{
		KDF: format.KDFParams{
			Algorithm: format.KDFArgon2id,
			Salt:      salt,
			Time:      params.Time,
			MemoryKB:  params.MemoryKB,
			Threads:   params.Threads,
		},
		Cipher: format.CipherParams{
			Algorithm: format.CipherXChaCha20Poly1305,
			Nonce:     nonce,
		},
	}

	key, err := deriveKey(passphrase, metadata.KDF)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = key.Close() }()

	var ciphertext []byte
	err = key.Expose(func(k []byte) error {
		aead, err := chacha20poly1305.NewX(k)
		if err != nil {
			return err
		}
		return plaintext.Expose(func(p []byte) error {
			ciphertext = aead.Seal(nil, nonce, p, aad)
			return nil
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to seal: %w", err)
	}

	sealed, err := secret.NewFromBytes(ciphertext)
	if err != nil {
		return nil, nil, err
	}
	return sealed, metadata, nil
}

// Open decrypts ciphertext sealed by Seal. A wrong passphrase, a modified
// ciphertext, metadata or aad all yield ErrAuthentication. There is no
// fallback to plaintext.
func Open(ciphertext, passphrase *secret.Buffer, aad []byte, metadata *format.EncryptionMetadata) (*secret.Buffer, error) {
	if passphrase == nil {
		return nil, ErrNoPassphrase
	}
	if ciphertext == nil {
		return nil, fmt.Errorf("nothing to open")
	}
	if err := checkMetadata(metadata); err != nil {
		return nil, err
	}
	if ciphertext.Len() <= Overhead {
		return nil, ErrAuthentication
	}

	key, err := deriveKey(passphrase, metadata.KDF)
	if err != nil {
		return nil, err
	}
	defer func() { _ = key.Close() }()

	plaintext, err := secret.New(ciphertext.Len() - Overhead)
	if err != nil {
		return nil, err
	}

	err = key.Expose(func(k []byte) error {
		aead, err := chacha20poly1305.NewX(k)
		if err != nil {
			return err
		}
		return ciphertext.Expose(func(c []byte) error {
			if _, err := aead.Open(plaintext.Bytes()[:0], metadata.Cipher.Nonce, c, aad); err != nil {
				return ErrAuthentication
			}
			return nil
		})
	})
	if err != nil {
		_ = plaintext.Close()
		return nil, err
	}
	return plaintext, nil
}

// checkMetadata rejects identifiers and parameters this package cannot honor.
func checkMetadata(m *format.EncryptionMetadata) error {
	if m == nil {
		return fmt.Errorf("%w: missing metadata", ErrUnsupportedParameters)
	}
	if m.KDF.Algorithm != format.KDFArgon2id {
		return fmt.Errorf("%w: KDF %q", ErrUnsupportedParameters, m.KDF.Algorithm)
	}
	if m.Cipher.Algorithm != format.CipherXChaCha20Poly1305 {
		return fmt.Errorf("%w: cipher %q", ErrUnsupportedParameters, m.Cipher.Algorithm)
	}
	if len(m.KDF.Salt) != SaltSize {
		return fmt.Errorf("%w: salt is %d bytes, want %d", ErrUnsupportedParameters, len(m.KDF.Salt), SaltSize)
	}
	if len(m.Cipher.Nonce) != NonceSize {
		return fmt.Errorf("%w: nonce is %d bytes, want %d", ErrUnsupportedParameters, len(m.Cipher.Nonce), NonceSize)
	}
	return Params{Time: m.KDF.Time, MemoryKB: m.KDF.MemoryKB, Threads: m.KDF.Threads}.Validate()
}

// deriveKey stretches the passphrase into an AEAD key held in secret memory.
func deriveKey(passphrase *secret.Buffer, kdf format.KDFParams) (*secret.Buffer, error) {
	var derived []byte
	err := passphrase.Expose(func(p []byte) error {
		derived = argon2.IDKey(p, kdf.Salt, kdf.Time, kdf.MemoryKB, kdf.Threads, KeySize)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	return secret.NewFromBytes(derived)
}
