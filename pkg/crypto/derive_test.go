package crypto

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

// testSeed returns a seed filled with fill. The caller closes it.
func testSeed(t *testing.T, fill byte) *Seed {
	t.Helper()
	seed, err := SeedFromBytes(bytes.Repeat([]byte{fill}, SeedSize))
	if err != nil {
		t.Fatalf("SeedFromBytes() error = %v", err)
	}
	t.Cleanup(func() { _ = seed.Close() })
	return seed
}

// =============================================================================
// [Unit] Seed Tests
// =============================================================================

func TestU_Seed_Generate(t *testing.T) {
	seed, err := GenerateSeed(nil)
	if err != nil {
		t.Fatalf("GenerateSeed() error = %v", err)
	}
	defer seed.Close()

	_ = seed.Expose(func(b []byte) error {
		if len(b) != SeedSize {
			t.Errorf("seed length = %d, want %d", len(b), SeedSize)
		}
		return nil
	})
}

func TestU_Seed_Generate_RandomSourceFailure(t *testing.T) {
	tests := []struct {
		name   string
		reader io.Reader
	}{
		{"[Unit] RandomSource: reader error", iotest.ErrReader(errors.New("entropy unavailable"))},
		{"[Unit] RandomSource: short read", strings.NewReader("short")},
		{"[Unit] RandomSource: all zero", bytes.NewReader(make([]byte, SeedSize))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seed, err := GenerateSeed(tt.reader)
			if !errors.Is(err, ErrRandomSource) {
				t.Fatalf("GenerateSeed() error = %v, want ErrRandomSource", err)
			}
			if seed != nil {
				t.Error("GenerateSeed() returned a seed on failure")
			}
		})
	}
}

func TestU_Seed_FromBytes_WrongLength(t *testing.T) {
	source := []byte{1, 2, 3}
	if _, err := SeedFromBytes(source); !errors.Is(err, ErrInvalidSeed) {
		t.Errorf("SeedFromBytes() error = %v, want ErrInvalidSeed", err)
	}
	if !bytes.Equal(source, []byte{0, 0, 0}) {
		t.Error("SeedFromBytes() did not zero rejected source")
	}
}

// =============================================================================
// [Unit] Derivation Determinism Tests
// =============================================================================

func TestU_Derive_Deterministic(t *testing.T) {
	seedA := testSeed(t, 0x42)
	seedB := testSeed(t, 0x42)

	for _, alg := range ECAlgorithms() {
		t.Run("[Unit] Deterministic: "+string(alg), func(t *testing.T) {
			a, err := DeriveECKeyPair(seedA, alg)
			if err != nil {
				t.Fatalf("DeriveECKeyPair() error = %v", err)
			}
			defer a.Close()
			b, err := DeriveECKeyPair(seedB, alg)
			if err != nil {
				t.Fatalf("DeriveECKeyPair() error = %v", err)
			}
			defer b.Close()

			if !bytes.Equal(a.Public, b.Public) {
				t.Error("same seed produced different public keys")
			}
			if !b.SecretKey().Equal(a.SecretKey().Bytes()) {
				t.Error("same seed produced different secret keys")
			}
		})
	}

	for _, alg := range PQAlgorithms() {
		t.Run("[Unit] Deterministic: "+string(alg), func(t *testing.T) {
			a, err := DerivePQKeyPair(seedA, alg)
			if err != nil {
				t.Fatalf("DerivePQKeyPair() error = %v", err)
			}
			defer a.Close()
			b, err := DerivePQKeyPair(seedB, alg)
			if err != nil {
				t.Fatalf("DerivePQKeyPair() error = %v", err)
			}
			defer b.Close()

			if !bytes.Equal(a.Public, b.Public) {
				t.Error("same seed produced different public keys")
			}
		})
	}

	for _, alg := range DHAlgorithms() {
		t.Run("[Unit] Deterministic: "+string(alg), func(t *testing.T) {
			a, err := DeriveDHKeyPair(seedA, alg)
			if err != nil {
				t.Fatalf("DeriveDHKeyPair() error = %v", err)
			}
			defer a.Close()
			b, err := DeriveDHKeyPair(seedB, alg)
			if err != nil {
				t.Fatalf("DeriveDHKeyPair() error = %v", err)
			}
			defer b.Close()

			if !bytes.Equal(a.Public, b.Public) {
				t.Error("same seed produced different public keys")
			}
		})
	}

	for _, alg := range KEMAlgorithms() {
		t.Run("[Unit] Deterministic: "+string(alg), func(t *testing.T) {
			a, err := DeriveKEMKeyPair(seedA, alg)
			if err != nil {
				t.Fatalf("DeriveKEMKeyPair() error = %v", err)
			}
			defer a.Close()
			b, err := DeriveKEMKeyPair(seedB, alg)
			if err != nil {
				t.Fatalf("DeriveKEMKeyPair() error = %v", err)
			}
			defer b.Close()

			if !bytes.Equal(a.Public, b.Public) {
				t.Error("same seed produced different public keys")
			}
		})
	}
}

func TestU_Derive_DistinctSeeds(t *testing.T) {
	a, err := DeriveECKeyPair(testSeed(t, 0x01), AlgEd25519)
	if err != nil {
		t.Fatalf("DeriveECKeyPair() error = %v", err)
	}
	defer a.Close()
	b, err := DeriveECKeyPair(testSeed(t, 0x02), AlgEd25519)
	if err != nil {
		t.Fatalf("DeriveECKeyPair() error = %v", err)
	}
	defer b.Close()

	if bytes.Equal(a.Public, b.Public) {
		t.Error("different seeds produced the same public key")
	}
}

// =============================================================================
// [Unit] Domain Separation Tests
// =============================================================================

func TestU_Derive_DomainSeparation(t *testing.T) {
	seed := testSeed(t, 0x07)

	// Ed25519 and X25519 both consume 32 derived bytes; their secrets must
	// still differ because the purpose labels differ.
	ec, err := DeriveECKeyPair(seed, AlgEd25519)
	if err != nil {
		t.Fatalf("DeriveECKeyPair() error = %v", err)
	}
	defer ec.Close()

	dh, err := DeriveDHKeyPair(seed, AlgX25519)
	if err != nil {
		t.Fatalf("DeriveDHKeyPair() error = %v", err)
	}
	defer dh.Close()

	ecOKM, err := deriveBytes(seed, KindEC, string(AlgEd25519), 32)
	if err != nil {
		t.Fatalf("deriveBytes() error = %v", err)
	}
	defer ecOKM.Close()

	if dh.SecretKey().Equal(ecOKM.Bytes()) {
		t.Error("sign-ec and kex-dh derivations produced the same bytes")
	}

	pqA, err := DerivePQKeyPair(seed, AlgMLDSA44)
	if err != nil {
		t.Fatalf("DerivePQKeyPair() error = %v", err)
	}
	defer pqA.Close()
	pqB, err := DerivePQKeyPair(seed, AlgMLDSA65)
	if err != nil {
		t.Fatalf("DerivePQKeyPair() error = %v", err)
	}
	defer pqB.Close()

	if bytes.Equal(pqA.Public[:32], pqB.Public[:32]) {
		t.Error("ML-DSA-44 and ML-DSA-65 share derived public seed")
	}
}

func TestU_Derive_DomainSeparation_AllPurposes(t *testing.T) {
	seed := testSeed(t, 0x07)

	var ids []string
	for _, a := range ECAlgorithms() {
		ids = append(ids, string(a))
	}
	for _, a := range PQAlgorithms() {
		ids = append(ids, string(a))
	}
	for _, a := range DHAlgorithms() {
		ids = append(ids, string(a))
	}
	for _, a := range KEMAlgorithms() {
		ids = append(ids, string(a))
	}
	if len(ids) != 11 {
		t.Fatalf("got %d algorithm ids, want 11", len(ids))
	}

	type derived struct {
		label string
		okm   []byte
	}
	var outputs []derived
	for _, kind := range []Kind{KindEC, KindPQ, KindDH, KindKEM} {
		for _, id := range ids {
			buf, err := deriveBytes(seed, kind, id, 64)
			if err != nil {
				t.Fatalf("deriveBytes(%s) error = %v", DerivationInfo(kind, id), err)
			}
			outputs = append(outputs, derived{DerivationInfo(kind, id), bytes.Clone(buf.Bytes())})
			_ = buf.Close()
		}
	}

	for i := range outputs {
		for j := i + 1; j < len(outputs); j++ {
			a, b := outputs[i], outputs[j]
			if bytes.Equal(a.okm, b.okm) {
				t.Errorf("[Unit] %s and %s derived the same bytes", a.label, b.label)
			}
			if bytes.Equal(a.okm[:8], b.okm[:8]) {
				t.Errorf("[Unit] %s and %s share a leading block", a.label, b.label)
			}
			if bytes.Equal(a.okm[56:], b.okm[56:]) {
				t.Errorf("[Unit] %s and %s share a trailing block", a.label, b.label)
			}
		}
	}
}

func TestU_Derive_DistinctPublicKeys(t *testing.T) {
	seed := testSeed(t, 0x08)
	publics := map[string][]byte{}

	for _, alg := range ECAlgorithms() {
		kp, err := DeriveECKeyPair(seed, alg)
		if err != nil {
			t.Fatalf("DeriveECKeyPair(%s) error = %v", alg, err)
		}
		publics[string(alg)] = kp.Public
		_ = kp.Close()
	}
	for _, alg := range PQAlgorithms() {
		kp, err := DerivePQKeyPair(seed, alg)
		if err != nil {
			t.Fatalf("DerivePQKeyPair(%s) error = %v", alg, err)
		}
		publics[string(alg)] = kp.Public
		_ = kp.Close()
	}
	for _, alg := range DHAlgorithms() {
		kp, err := DeriveDHKeyPair(seed, alg)
		if err != nil {
			t.Fatalf("DeriveDHKeyPair(%s) error = %v", alg, err)
		}
		publics[string(alg)] = kp.Public
		_ = kp.Close()
	}
	for _, alg := range KEMAlgorithms() {
		kp, err := DeriveKEMKeyPair(seed, alg)
		if err != nil {
			t.Fatalf("DeriveKEMKeyPair(%s) error = %v", alg, err)
		}
		publics[string(alg)] = kp.Public
		_ = kp.Close()
	}

	seen := map[string]string{}
	for alg, pub := range publics {
		if len(pub) == 0 {
			t.Errorf("%s: empty public key", alg)
			continue
		}
		if other, ok := seen[string(pub)]; ok {
			t.Errorf("%s and %s derived the same public key", alg, other)
		}
		seen[string(pub)] = alg
	}
}

func TestU_Derive_ClosedSeed_AllKinds(t *testing.T) {
	seed, err := SeedFromBytes(bytes.Repeat([]byte{0x12}, SeedSize))
	if err != nil {
		t.Fatalf("SeedFromBytes() error = %v", err)
	}
	_ = seed.Close()

	if _, err := DerivePQKeyPair(seed, AlgMLDSA65); err == nil {
		t.Error("DerivePQKeyPair() on closed seed should fail")
	}
	if _, err := DeriveDHKeyPair(seed, AlgX25519); err == nil {
		t.Error("DeriveDHKeyPair() on closed seed should fail")
	}
	if _, err := DeriveKEMKeyPair(seed, AlgMLKEM768); err == nil {
		t.Error("DeriveKEMKeyPair() on closed seed should fail")
	}
}

func TestU_Derive_Info(t *testing.T) {
	tests := []struct {
		kind Kind
		alg  string
		want string
	}{
		{KindEC, "ed25519", "sign-ec:ed25519"},
		{KindPQ, "ml-dsa-65", "sign-pq:ml-dsa-65"},
		{KindDH, "x25519", "kex-dh:x25519"},
		{KindKEM, "ml-kem-768", "kex-kem:ml-kem-768"},
	}
	for _, tt := range tests {
		if got := DerivationInfo(tt.kind, tt.alg); got != tt.want {
			t.Errorf("DerivationInfo(%v, %q) = %q, want %q", tt.kind, tt.alg, got, tt.want)
		}
	}
}

func TestU_Derive_UnsupportedAlgorithm(t *testing.T) {
	seed := testSeed(t, 0x09)

	if _, err := DeriveECKeyPair(seed, "ml-dsa-65"); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("DeriveECKeyPair(ml-dsa-65) error = %v", err)
	}
	if _, err := DerivePQKeyPair(seed, "ed25519"); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("DerivePQKeyPair(ed25519) error = %v", err)
	}
	if _, err := DeriveDHKeyPair(seed, "p256"); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("DeriveDHKeyPair(p256) error = %v", err)
	}
	if _, err := DeriveKEMKeyPair(seed, "kyber768"); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("DeriveKEMKeyPair(kyber768) error = %v", err)
	}
}

func TestU_Derive_ClosedSeed(t *testing.T) {
	seed, err := SeedFromBytes(bytes.Repeat([]byte{0x11}, SeedSize))
	if err != nil {
		t.Fatalf("SeedFromBytes() error = %v", err)
	}
	_ = seed.Close()

	if _, err := DeriveECKeyPair(seed, AlgEd25519); err == nil {
		t.Error("DeriveECKeyPair() on closed seed should fail")
	}
}
