package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/remiblancher/hybridkey/pkg/secret"
)

// SeedSize is the size of a master seed in bytes (256 bits).
const SeedSize = 32

// Seed is the root secret from which every keypair of a master key is
// derived. The bytes live in a secret buffer and never leave it except
// through Expose.
type Seed struct {
	buf *secret.Buffer
}

// GenerateSeed reads SeedSize bytes from random. A nil reader means
// crypto/rand.Reader. Reader failures, short reads and an all-zero result
// are reported as ErrRandomSource.
func GenerateSeed(random io.Reader) (*Seed, error) {
	if random == nil {
		random = rand.Reader
	}

	buf, err := secret.NewFromReader(random, SeedSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRandomSource, err)
	}

	if isZero(buf) {
		_ = buf.Close()
		return nil, fmt.Errorf("%w: source returned an all-zero seed", ErrRandomSource)
	}

	return &Seed{buf: buf}, nil
}

// NewSeed wraps an existing secret buffer holding seed bytes. The seed takes
// ownership of buf; it is closed on error.
func NewSeed(buf *secret.Buffer) (*Seed, error) {
	if buf == nil {
		return nil, fmt.Errorf("%w: nil buffer", ErrInvalidSeed)
	}
	if buf.Len() != SeedSize {
		n := buf.Len()
		_ = buf.Close()
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSeed, n, SeedSize)
	}
	return &Seed{buf: buf}, nil
}

// SeedFromBytes copies b into a new seed and zeros b.
func SeedFromBytes(b []byte) (*Seed, error) {
	if len(b) != SeedSize {
		n := len(b)
		secret.Zero(b)
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSeed, n, SeedSize)
	}
	buf, err := secret.NewFromBytes(b)
	if err != nil {
		return nil, err
	}
	return &Seed{buf: buf}, nil
}

// Expose calls fn with the raw seed bytes. The slice must not be retained.
func (s *Seed) Expose(fn func([]byte) error) error {
	return s.buf.Expose(fn)
}

// Clone returns a copy of the seed bytes in a fresh secret buffer, owned by
// the caller.
func (s *Seed) Clone() (*secret.Buffer, error) {
	return s.buf.Clone()
}

// Close wipes the seed.
func (s *Seed) Close() error {
	if s == nil {
		return nil
	}
	return s.buf.Close()
}

func isZero(buf *secret.Buffer) bool {
	zero := true
	_ = buf.Expose(func(b []byte) error {
		var acc byte
		for _, v := range b {
			acc |= v
		}
		zero = acc == 0
		return nil
	})
	return zero
}
