package encryption

import (
	"bytes"
	"errors"
	"testing"

	"github.com/remiblancher/hybridkey/pkg/format"
	"github.com/remiblancher/hybridkey/pkg/secret"
)

// cheapParams keeps Argon2id fast in tests.
func cheapParams() Params {
	return Params{Time: 1, MemoryKB: 64, Threads: 1}
}

func secretOf(t *testing.T, data []byte) *secret.Buffer {
	t.Helper()
	buf, err := secret.NewFromBytes(append([]byte(nil), data...))
	if err != nil {
		t.Fatalf("NewFromBytes() error = %v", err)
	}
	t.Cleanup(func() { _ = buf.Close() })
	return buf
}

var (
	testPlaintext = bytes.Repeat([]byte{0x42}, 32)
	testAAD       = []byte("hybridkey/secret-key/v1\x00ed25519\x00ml-dsa-65\x00x25519\x00ml-kem-768")
)

func sealTest(t *testing.T, passphrase string) (*secret.Buffer, *format.EncryptionMetadata) {
	t.Helper()
	ct, meta, err := Seal(secretOf(t, testPlaintext), secretOf(t, []byte(passphrase)), testAAD, cheapParams())
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	t.Cleanup(func() { _ = ct.Close() })
	return ct, meta
}

// =============================================================================
// [Unit] Params Tests
// =============================================================================

func TestU_Params_Default(t *testing.T) {
	p := DefaultParams()
	if p.Time != 3 || p.MemoryKB != 64*1024 || p.Threads != 4 {
		t.Errorf("DefaultParams() = %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("DefaultParams().Validate() error = %v", err)
	}
}

func TestU_Params_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"[Unit] Validate: cheap", cheapParams(), false},
		{"[Unit] Validate: max bounds", Params{Time: MaxTime, MemoryKB: MaxMemoryKB, Threads: MaxThreads}, false},
		{"[Unit] Validate: zero time", Params{Time: 0, MemoryKB: 64, Threads: 1}, true},
		{"[Unit] Validate: time too high", Params{Time: MaxTime + 1, MemoryKB: 64, Threads: 1}, true},
		{"[Unit] Validate: zero threads", Params{Time: 1, MemoryKB: 64, Threads: 0}, true},
		{"[Unit] Validate: threads too high", Params{Time: 1, MemoryKB: 4096, Threads: MaxThreads + 1}, true},
		{"[Unit] Validate: 4 GiB memory", Params{Time: 1, MemoryKB: 4 * 1024 * 1024, Threads: 1}, true},
		{"[Unit] Validate: memory below threads", Params{Time: 1, MemoryKB: 15, Threads: 2}, true},
		{"[Unit] Validate: memory too high", Params{Time: 1, MemoryKB: MaxMemoryKB + 1, Threads: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnsupportedParameters) {
				t.Errorf("Validate() error = %v, want ErrUnsupportedParameters", err)
			}
		})
	}
}

// =============================================================================
// [Unit] Seal / Open Tests
// =============================================================================

func TestU_Gate_RoundTrip(t *testing.T) {
	ct, meta := sealTest(t, "correct-horse")

	if ct.Len() != len(testPlaintext)+Overhead {
		t.Errorf("ciphertext length = %d, want %d", ct.Len(), len(testPlaintext)+Overhead)
	}
	if ct.Equal(append(append([]byte(nil), testPlaintext...), make([]byte, Overhead)...)) {
		t.Error("ciphertext holds the plaintext")
	}
	if meta.KDF.Algorithm != format.KDFArgon2id || meta.Cipher.Algorithm != format.CipherXChaCha20Poly1305 {
		t.Errorf("metadata algorithms = %q/%q", meta.KDF.Algorithm, meta.Cipher.Algorithm)
	}
	if len(meta.KDF.Salt) != SaltSize || len(meta.Cipher.Nonce) != NonceSize {
		t.Errorf("salt/nonce sizes = %d/%d", len(meta.KDF.Salt), len(meta.Cipher.Nonce))
	}
	if meta.KDF.Time != 1 || meta.KDF.MemoryKB != 64 || meta.KDF.Threads != 1 {
		t.Errorf("metadata cost = %+v", meta.KDF)
	}

	pt, err := Open(ct, secretOf(t, []byte("correct-horse")), testAAD, meta)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer pt.Close()
	if !pt.Equal(testPlaintext) {
		t.Error("Open() did not return the sealed plaintext")
	}
}

func TestU_Gate_FreshSaltAndNonce(t *testing.T) {
	_, meta1 := sealTest(t, "pw")
	_, meta2 := sealTest(t, "pw")
	if bytes.Equal(meta1.KDF.Salt, meta2.KDF.Salt) {
		t.Error("two seals share a salt")
	}
	if bytes.Equal(meta1.Cipher.Nonce, meta2.Cipher.Nonce) {
		t.Error("two seals share a nonce")
	}
}

func TestU_Gate_DeterministicWithFixedRandom(t *testing.T) {
	params := cheapParams()
	seal := func() []byte {
		params.Rand = bytes.NewReader(bytes.Repeat([]byte{7}, SaltSize+NonceSize))
		ct, _, err := Seal(secretOf(t, testPlaintext), secretOf(t, []byte("pw")), testAAD, params)
		if err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		defer ct.Close()
		return append([]byte(nil), ct.Bytes()...)
	}
	if !bytes.Equal(seal(), seal()) {
		t.Error("Seal() with identical randomness differs")
	}
}

func TestU_Gate_AuthenticationFailures(t *testing.T) {
	ct, meta := sealTest(t, "correct-horse")

	tamperedCT := func() *secret.Buffer {
		data := append([]byte(nil), ct.Bytes()...)
		data[0] ^= 0x01
		return secretOf(t, data)
	}
	tamperedMeta := func() *format.EncryptionMetadata {
		m := *meta
		m.KDF.Salt = append([]byte(nil), meta.KDF.Salt...)
		m.KDF.Salt[0] ^= 0x01
		return &m
	}
	otherAAD := bytes.Replace(testAAD, []byte("ed25519"), []byte("ed448"), 1)

	tests := []struct {
		name       string
		ciphertext *secret.Buffer
		passphrase string
		aad        []byte
		meta       *format.EncryptionMetadata
	}{
		{"[Unit] Open: wrong passphrase", ct, "battery-staple", testAAD, meta},
		{"[Unit] Open: tampered ciphertext", tamperedCT(), "correct-horse", testAAD, meta},
		{"[Unit] Open: tampered aad", ct, "correct-horse", otherAAD, meta},
		{"[Unit] Open: tampered salt", ct, "correct-horse", testAAD, tamperedMeta()},
		{"[Unit] Open: truncated ciphertext", secretOf(t, ct.Bytes()[:Overhead]), "correct-horse", testAAD, meta},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt, err := Open(tt.ciphertext, secretOf(t, []byte(tt.passphrase)), tt.aad, tt.meta)
			if !errors.Is(err, ErrAuthentication) {
				t.Errorf("Open() error = %v, want ErrAuthentication", err)
			}
			if pt != nil {
				t.Error("Open() returned plaintext on failure")
			}
		})
	}
}

func TestU_Gate_UnsupportedParameters(t *testing.T) {
	ct, meta := sealTest(t, "pw")

	mutate := func(fn func(m *format.EncryptionMetadata)) *format.EncryptionMetadata {
		m := *meta
		fn(&m)
		return &m
	}

	tests := []struct {
		name string
		meta *format.EncryptionMetadata
	}{
		{"[Unit] Open: nil metadata", nil},
		{"[Unit] Open: unknown KDF", mutate(func(m *format.EncryptionMetadata) { m.KDF.Algorithm = "scrypt" })},
		{"[Unit] Open: unknown cipher", mutate(func(m *format.EncryptionMetadata) { m.Cipher.Algorithm = "aes-256-gcm" })},
		{"[Unit] Open: short salt", mutate(func(m *format.EncryptionMetadata) { m.KDF.Salt = m.KDF.Salt[:8] })},
		{"[Unit] Open: short nonce", mutate(func(m *format.EncryptionMetadata) { m.Cipher.Nonce = m.Cipher.Nonce[:12] })},
		{"[Unit] Open: excessive memory", mutate(func(m *format.EncryptionMetadata) { m.KDF.MemoryKB = MaxMemoryKB + 1 })},
		{"[Unit] Open: excessive time", mutate(func(m *format.EncryptionMetadata) { m.KDF.Time = 1 << 20 })},
		{"[Unit] Open: zero threads", mutate(func(m *format.EncryptionMetadata) { m.KDF.Threads = 0 })},
		{"[Unit] Open: too many threads", mutate(func(m *format.EncryptionMetadata) { m.KDF.Threads = 255 })},
		{"[Unit] Open: crafted maximum cost", mutate(func(m *format.EncryptionMetadata) {
			m.KDF.MemoryKB = 4 * 1024 * 1024
			m.KDF.Time = 64
			m.KDF.Threads = 255
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(ct, secretOf(t, []byte("pw")), testAAD, tt.meta)
			if !errors.Is(err, ErrUnsupportedParameters) {
				t.Errorf("Open() error = %v, want ErrUnsupportedParameters", err)
			}
		})
	}
}

func TestU_Gate_SealErrors(t *testing.T) {
	pt := secretOf(t, testPlaintext)

	t.Run("[Unit] Seal: nil passphrase", func(t *testing.T) {
		if _, _, err := Seal(pt, nil, nil, cheapParams()); !errors.Is(err, ErrNoPassphrase) {
			t.Errorf("Seal() error = %v, want ErrNoPassphrase", err)
		}
	})

	t.Run("[Unit] Seal: invalid params", func(t *testing.T) {
		_, _, err := Seal(pt, secretOf(t, []byte("pw")), nil, Params{})
		if !errors.Is(err, ErrUnsupportedParameters) {
			t.Errorf("Seal() error = %v, want ErrUnsupportedParameters", err)
		}
	})

	t.Run("[Unit] Seal: failing random source", func(t *testing.T) {
		params := cheapParams()
		params.Rand = bytes.NewReader([]byte{1, 2, 3})
		if _, _, err := Seal(pt, secretOf(t, []byte("pw")), nil, params); err == nil {
			t.Error("Seal() with short randomness should fail")
		}
	})

	t.Run("[Unit] Open: nil passphrase", func(t *testing.T) {
		if _, err := Open(pt, nil, nil, &format.EncryptionMetadata{}); !errors.Is(err, ErrNoPassphrase) {
			t.Errorf("Open() error = %v, want ErrNoPassphrase", err)
		}
	})
}
