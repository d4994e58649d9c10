// Package crypto provides the cryptographic primitives behind a hybrid
// master key: the root seed, the closed algorithm sets for classical and
// post-quantum signing and key exchange, and the deterministic,
// domain-separated derivation of keypairs from the seed.
//
// Classical algorithms (Ed25519, Ed448, X25519, X448) and post-quantum
// algorithms (ML-DSA, SLH-DSA, ML-KEM) are provided by the cloudflare/circl
// library.
package crypto

import (
	"encoding/asn1"
	"fmt"
	"sort"
)

// Kind identifies which of the four algorithm sets an identifier belongs to.
type Kind int

const (
	KindUnknown Kind = iota
	KindEC           // classical signature
	KindPQ           // post-quantum signature
	KindDH           // classical key agreement
	KindKEM          // post-quantum key encapsulation
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindEC:
		return "ec"
	case KindPQ:
		return "pq"
	case KindDH:
		return "dh"
	case KindKEM:
		return "kem"
	default:
		return "unknown"
	}
}

// purpose is the derivation label mixed into every key derived for this kind.
func (k Kind) purpose() string {
	switch k {
	case KindEC:
		return "sign-ec"
	case KindPQ:
		return "sign-pq"
	case KindDH:
		return "kex-dh"
	case KindKEM:
		return "kex-kem"
	default:
		return ""
	}
}

// ECAlgorithm identifies a classical signature algorithm.
type ECAlgorithm string

// Classical signature algorithms.
const (
	AlgEd25519 ECAlgorithm = "ed25519"
	AlgEd448   ECAlgorithm = "ed448"
)

// PQAlgorithm identifies a post-quantum signature algorithm.
type PQAlgorithm string

// Post-quantum signature algorithms (FIPS 204 ML-DSA, FIPS 205 SLH-DSA).
const (
	AlgMLDSA44        PQAlgorithm = "ml-dsa-44"
	AlgMLDSA65        PQAlgorithm = "ml-dsa-65"
	AlgMLDSA87        PQAlgorithm = "ml-dsa-87"
	AlgSLHDSASHA2128f PQAlgorithm = "slh-dsa-sha2-128f"
)

// DHAlgorithm identifies a classical Diffie-Hellman key agreement.
type DHAlgorithm string

// Classical key agreement algorithms (RFC 7748).
const (
	AlgX25519 DHAlgorithm = "x25519"
	AlgX448   DHAlgorithm = "x448"
)

// KEMAlgorithm identifies a post-quantum key encapsulation mechanism.
type KEMAlgorithm string

// Post-quantum KEM algorithms (FIPS 203 ML-KEM).
const (
	AlgMLKEM512  KEMAlgorithm = "ml-kem-512"
	AlgMLKEM768  KEMAlgorithm = "ml-kem-768"
	AlgMLKEM1024 KEMAlgorithm = "ml-kem-1024"
)

// algorithmInfo holds metadata about an algorithm.
type algorithmInfo struct {
	Kind          Kind
	OID           asn1.ObjectIdentifier
	SecurityLevel int // NIST category, 0 for classical
	Description   string
}

// algorithms maps every supported identifier to its metadata. Identifiers
// are unique across kinds.
var algorithms = map[string]algorithmInfo{
	// Edwards curves
	string(AlgEd25519): {
		Kind:        KindEC,
		OID:         asn1.ObjectIdentifier{1, 3, 101, 112},
		Description: "Ed25519 (EdDSA with Curve25519)",
	},
	string(AlgEd448): {
		Kind:        KindEC,
		OID:         asn1.ObjectIdentifier{1, 3, 101, 113},
		Description: "Ed448 (EdDSA with Curve448)",
	},

	// PQC Signatures (ML-DSA, FIPS 204)
	string(AlgMLDSA44): {
		Kind:          KindPQ,
		OID:           asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 17},
		SecurityLevel: 2,
		Description:   "ML-DSA-44 (NIST Level 2)",
	},
	string(AlgMLDSA65): {
		Kind:          KindPQ,
		OID:           asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 18},
		SecurityLevel: 3,
		Description:   "ML-DSA-65 (NIST Level 3)",
	},
	string(AlgMLDSA87): {
		Kind:          KindPQ,
		OID:           asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 19},
		SecurityLevel: 5,
		Description:   "ML-DSA-87 (NIST Level 5)",
	},

	// PQC Signatures (SLH-DSA, FIPS 205)
	string(AlgSLHDSASHA2128f): {
		Kind:          KindPQ,
		OID:           asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 21},
		SecurityLevel: 1,
		Description:   "SLH-DSA-SHA2-128f (NIST Level 1, fast)",
	},

	// Montgomery curves
	string(AlgX25519): {
		Kind:        KindDH,
		OID:         asn1.ObjectIdentifier{1, 3, 101, 110},
		Description: "X25519 (ECDH with Curve25519)",
	},
	string(AlgX448): {
		Kind:        KindDH,
		OID:         asn1.ObjectIdentifier{1, 3, 101, 111},
		Description: "X448 (ECDH with Curve448)",
	},

	// PQC KEM (ML-KEM, FIPS 203)
	string(AlgMLKEM512): {
		Kind:          KindKEM,
		OID:           asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 4, 1},
		SecurityLevel: 1,
		Description:   "ML-KEM-512 (NIST Level 1)",
	},
	string(AlgMLKEM768): {
		Kind:          KindKEM,
		OID:           asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 4, 2},
		SecurityLevel: 3,
		Description:   "ML-KEM-768 (NIST Level 3)",
	},
	string(AlgMLKEM1024): {
		Kind:          KindKEM,
		OID:           asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 4, 3},
		SecurityLevel: 5,
		Description:   "ML-KEM-1024 (NIST Level 5)",
	},
}

// lookup returns the metadata for name if it is registered under kind.
func lookup(kind Kind, name string) (algorithmInfo, bool) {
	info, ok := algorithms[name]
	if !ok || info.Kind != kind {
		return algorithmInfo{}, false
	}
	return info, true
}

func description(kind Kind, name string) string {
	if info, ok := lookup(kind, name); ok {
		return info.Description
	}
	return "Unknown algorithm"
}

func oid(kind Kind, name string) asn1.ObjectIdentifier {
	if info, ok := lookup(kind, name); ok {
		return info.OID
	}
	return nil
}

func names(kind Kind) []string {
	var result []string
	for name, info := range algorithms {
		if info.Kind == kind {
			result = append(result, name)
		}
	}
	sort.Strings(result)
	return result
}

// IsValid returns true if the algorithm is a supported classical signature.
func (a ECAlgorithm) IsValid() bool { _, ok := lookup(KindEC, string(a)); return ok }

// Kind returns KindEC.
func (a ECAlgorithm) Kind() Kind { return KindEC }

// String returns the algorithm identifier as a string.
func (a ECAlgorithm) String() string { return string(a) }

// Description returns a human-readable description of the algorithm.
func (a ECAlgorithm) Description() string { return description(KindEC, string(a)) }

// OID returns the ASN.1 Object Identifier for this algorithm.
func (a ECAlgorithm) OID() asn1.ObjectIdentifier { return oid(KindEC, string(a)) }

// IsValid returns true if the algorithm is a supported post-quantum signature.
func (a PQAlgorithm) IsValid() bool { _, ok := lookup(KindPQ, string(a)); return ok }

// Kind returns KindPQ.
func (a PQAlgorithm) Kind() Kind { return KindPQ }

// String returns the algorithm identifier as a string.
func (a PQAlgorithm) String() string { return string(a) }

// Description returns a human-readable description of the algorithm.
func (a PQAlgorithm) Description() string { return description(KindPQ, string(a)) }

// OID returns the ASN.1 Object Identifier for this algorithm.
func (a PQAlgorithm) OID() asn1.ObjectIdentifier { return oid(KindPQ, string(a)) }

// IsValid returns true if the algorithm is a supported key agreement.
func (a DHAlgorithm) IsValid() bool { _, ok := lookup(KindDH, string(a)); return ok }

// Kind returns KindDH.
func (a DHAlgorithm) Kind() Kind { return KindDH }

// String returns the algorithm identifier as a string.
func (a DHAlgorithm) String() string { return string(a) }

// Description returns a human-readable description of the algorithm.
func (a DHAlgorithm) Description() string { return description(KindDH, string(a)) }

// OID returns the ASN.1 Object Identifier for this algorithm.
func (a DHAlgorithm) OID() asn1.ObjectIdentifier { return oid(KindDH, string(a)) }

// IsValid returns true if the algorithm is a supported KEM.
func (a KEMAlgorithm) IsValid() bool { _, ok := lookup(KindKEM, string(a)); return ok }

// Kind returns KindKEM.
func (a KEMAlgorithm) Kind() Kind { return KindKEM }

// String returns the algorithm identifier as a string.
func (a KEMAlgorithm) String() string { return string(a) }

// Description returns a human-readable description of the algorithm.
func (a KEMAlgorithm) Description() string { return description(KindKEM, string(a)) }

// OID returns the ASN.1 Object Identifier for this algorithm.
func (a KEMAlgorithm) OID() asn1.ObjectIdentifier { return oid(KindKEM, string(a)) }

// ParseECAlgorithm parses a string into an ECAlgorithm.
// Returns an error if the algorithm is not a supported classical signature.
func ParseECAlgorithm(s string) (ECAlgorithm, error) {
	alg := ECAlgorithm(s)
	if !alg.IsValid() {
		return "", fmt.Errorf("%w: %q is not an EC signature algorithm", ErrUnsupportedAlgorithm, s)
	}
	return alg, nil
}

// ParsePQAlgorithm parses a string into a PQAlgorithm.
func ParsePQAlgorithm(s string) (PQAlgorithm, error) {
	alg := PQAlgorithm(s)
	if !alg.IsValid() {
		return "", fmt.Errorf("%w: %q is not a PQ signature algorithm", ErrUnsupportedAlgorithm, s)
	}
	return alg, nil
}

// ParseDHAlgorithm parses a string into a DHAlgorithm.
func ParseDHAlgorithm(s string) (DHAlgorithm, error) {
	alg := DHAlgorithm(s)
	if !alg.IsValid() {
		return "", fmt.Errorf("%w: %q is not a DH algorithm", ErrUnsupportedAlgorithm, s)
	}
	return alg, nil
}

// ParseKEMAlgorithm parses a string into a KEMAlgorithm.
func ParseKEMAlgorithm(s string) (KEMAlgorithm, error) {
	alg := KEMAlgorithm(s)
	if !alg.IsValid() {
		return "", fmt.Errorf("%w: %q is not a KEM algorithm", ErrUnsupportedAlgorithm, s)
	}
	return alg, nil
}

// ECAlgorithms returns all supported classical signature algorithms, sorted.
func ECAlgorithms() []ECAlgorithm {
	var result []ECAlgorithm
	for _, name := range names(KindEC) {
		result = append(result, ECAlgorithm(name))
	}
	return result
}

// PQAlgorithms returns all supported post-quantum signature algorithms, sorted.
func PQAlgorithms() []PQAlgorithm {
	var result []PQAlgorithm
	for _, name := range names(KindPQ) {
		result = append(result, PQAlgorithm(name))
	}
	return result
}

// DHAlgorithms returns all supported key agreement algorithms, sorted.
func DHAlgorithms() []DHAlgorithm {
	var result []DHAlgorithm
	for _, name := range names(KindDH) {
		result = append(result, DHAlgorithm(name))
	}
	return result
}

// KEMAlgorithms returns all supported KEM algorithms, sorted.
func KEMAlgorithms() []KEMAlgorithm {
	var result []KEMAlgorithm
	for _, name := range names(KindKEM) {
		result = append(result, KEMAlgorithm(name))
	}
	return result
}
