package crypto

import "errors"

// Sentinel errors for key derivation and key use.
// Use errors.Is() to check for these errors through the error chain.
var (
	// ErrUnsupportedAlgorithm indicates an identifier outside the closed
	// algorithm sets, or one used for the wrong purpose.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrRandomSource indicates the randomness source failed or produced
	// unusable output. Seed generation aborts rather than emit weak material.
	ErrRandomSource = errors.New("randomness source failure")

	// ErrInvalidSeed indicates seed material of the wrong length.
	ErrInvalidSeed = errors.New("invalid seed")

	// ErrInvalidKey indicates malformed public or secret key bytes.
	ErrInvalidKey = errors.New("invalid key")
)
