package crypto

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/remiblancher/hybridkey/pkg/secret"
)

// HybridSignAlgorithm pairs a classical and a post-quantum signature
// algorithm. Both halves sign every message.
type HybridSignAlgorithm struct {
	EC ECAlgorithm
	PQ PQAlgorithm
}

// HybridKEMAlgorithm pairs a classical key agreement with a post-quantum KEM.
type HybridKEMAlgorithm struct {
	DH  DHAlgorithm
	KEM KEMAlgorithm
}

// DefaultHybridSign returns the default signing suite, Ed25519 + ML-DSA-65.
func DefaultHybridSign() HybridSignAlgorithm {
	return HybridSignAlgorithm{EC: AlgEd25519, PQ: AlgMLDSA65}
}

// DefaultHybridKEM returns the default key exchange suite, X25519 + ML-KEM-768.
func DefaultHybridKEM() HybridKEMAlgorithm {
	return HybridKEMAlgorithm{DH: AlgX25519, KEM: AlgMLKEM768}
}

// Validate checks that both halves are supported algorithms.
func (h HybridSignAlgorithm) Validate() error {
	if !h.EC.IsValid() {
		return fmt.Errorf("%w: classical signature %q", ErrUnsupportedAlgorithm, h.EC)
	}
	if !h.PQ.IsValid() {
		return fmt.Errorf("%w: post-quantum signature %q", ErrUnsupportedAlgorithm, h.PQ)
	}
	return nil
}

// String returns "<ec>+<pq>".
func (h HybridSignAlgorithm) String() string {
	return string(h.EC) + "+" + string(h.PQ)
}

// Validate checks that both halves are supported algorithms.
func (h HybridKEMAlgorithm) Validate() error {
	if !h.DH.IsValid() {
		return fmt.Errorf("%w: key agreement %q", ErrUnsupportedAlgorithm, h.DH)
	}
	if !h.KEM.IsValid() {
		return fmt.Errorf("%w: KEM %q", ErrUnsupportedAlgorithm, h.KEM)
	}
	return nil
}

// String returns "<dh>+<kem>".
func (h HybridKEMAlgorithm) String() string {
	return string(h.DH) + "+" + string(h.KEM)
}

// ParseHybridSignAlgorithm parses "<ec>+<pq>", e.g. "ed25519+ml-dsa-65".
func ParseHybridSignAlgorithm(s string) (HybridSignAlgorithm, error) {
	ec, pq, ok := strings.Cut(s, "+")
	if !ok {
		return HybridSignAlgorithm{}, fmt.Errorf("%w: %q is not of the form <ec>+<pq>", ErrUnsupportedAlgorithm, s)
	}
	h := HybridSignAlgorithm{EC: ECAlgorithm(ec), PQ: PQAlgorithm(pq)}
	if err := h.Validate(); err != nil {
		return HybridSignAlgorithm{}, err
	}
	return h, nil
}

// ParseHybridKEMAlgorithm parses "<dh>+<kem>", e.g. "x25519+ml-kem-768".
func ParseHybridKEMAlgorithm(s string) (HybridKEMAlgorithm, error) {
	dh, k, ok := strings.Cut(s, "+")
	if !ok {
		return HybridKEMAlgorithm{}, fmt.Errorf("%w: %q is not of the form <dh>+<kem>", ErrUnsupportedAlgorithm, s)
	}
	h := HybridKEMAlgorithm{DH: DHAlgorithm(dh), KEM: KEMAlgorithm(k)}
	if err := h.Validate(); err != nil {
		return HybridKEMAlgorithm{}, err
	}
	return h, nil
}

// HybridSignature holds the two component signatures side by side.
type HybridSignature struct {
	EC []byte
	PQ []byte
}

// SignHybrid signs message with both the classical and post-quantum keys.
func SignHybrid(ec *ECKeyPair, pq *PQKeyPair, message []byte) (*HybridSignature, error) {
	if ec == nil || pq == nil {
		return nil, fmt.Errorf("hybrid signing requires both keypairs")
	}

	ecSig, err := ec.Sign(message)
	if err != nil {
		return nil, fmt.Errorf("classical signing failed: %w", err)
	}

	pqSig, err := pq.Sign(message)
	if err != nil {
		return nil, fmt.Errorf("PQC signing failed: %w", err)
	}

	return &HybridSignature{EC: ecSig, PQ: pqSig}, nil
}

// VerifyHybrid verifies both component signatures.
// Returns true only if both signatures are valid.
func VerifyHybrid(alg HybridSignAlgorithm, ecPublic, pqPublic, message []byte, sig *HybridSignature) bool {
	if sig == nil {
		return false
	}
	if !VerifyEC(alg.EC, ecPublic, message, sig.EC) {
		return false
	}
	return VerifyPQ(alg.PQ, pqPublic, message, sig.PQ)
}

// HybridCiphertext is what a sender transmits: the ephemeral DH public key
// and the KEM ciphertext.
type HybridCiphertext struct {
	DH  []byte
	KEM []byte
}

// HybridSharedSecret holds the two component shared secrets side by side.
// Combining them is left to the caller's protocol.
type HybridSharedSecret struct {
	DH  *secret.Buffer
	KEM *secret.Buffer
}

// Close wipes both shared secrets.
func (s *HybridSharedSecret) Close() error {
	if s == nil {
		return nil
	}
	return errors.Join(s.DH.Close(), s.KEM.Close())
}

// EncapsulateHybrid runs an ephemeral DH agreement against dhPublic and a KEM
// encapsulation against kemPublic. A nil random reader means crypto/rand.
func EncapsulateHybrid(alg HybridKEMAlgorithm, dhPublic, kemPublic []byte, random io.Reader) (*HybridCiphertext, *HybridSharedSecret, error) {
	if err := alg.Validate(); err != nil {
		return nil, nil, err
	}

	ephemeral, err := GenerateDHKeyPair(alg.DH, random)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}
	defer func() { _ = ephemeral.Close() }()

	dhShared, err := ephemeral.SharedSecret(dhPublic)
	if err != nil {
		return nil, nil, fmt.Errorf("key agreement failed: %w", err)
	}

	kemCiphertext, kemShared, err := Encapsulate(alg.KEM, kemPublic, random)
	if err != nil {
		_ = dhShared.Close()
		return nil, nil, err
	}

	return &HybridCiphertext{DH: ephemeral.Public, KEM: kemCiphertext},
		&HybridSharedSecret{DH: dhShared, KEM: kemShared}, nil
}

// DecapsulateHybrid recovers both shared secrets from a hybrid ciphertext.
func DecapsulateHybrid(dh *DHKeyPair, k *KEMKeyPair, ct *HybridCiphertext) (*HybridSharedSecret, error) {
	if dh == nil || k == nil || ct == nil {
		return nil, fmt.Errorf("hybrid decapsulation requires both keypairs and a ciphertext")
	}

	dhShared, err := dh.SharedSecret(ct.DH)
	if err != nil {
		return nil, fmt.Errorf("key agreement failed: %w", err)
	}

	kemShared, err := k.Decapsulate(ct.KEM)
	if err != nil {
		_ = dhShared.Close()
		return nil, err
	}

	return &HybridSharedSecret{DH: dhShared, KEM: kemShared}, nil
}
