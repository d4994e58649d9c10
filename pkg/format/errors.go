package format

import (
	"errors"
	"fmt"
)

// Section identifies which layer of a decode failed.
type Section int

const (
	// SectionBinary is a malformed binary (CBOR) encoding.
	SectionBinary Section = iota + 1
	// SectionPEM is a malformed PEM envelope.
	SectionPEM
	// SectionStructure is a well-formed encoding whose contents are
	// inconsistent: wrong label, unknown algorithm, missing field.
	SectionStructure
)

// String returns the section name.
func (s Section) String() string {
	switch s {
	case SectionBinary:
		return "binary"
	case SectionPEM:
		return "pem"
	case SectionStructure:
		return "structure"
	default:
		return "unknown"
	}
}

// DecodeError represents a decode failure with the layer it occurred in.
// It supports errors.Is(err, ErrDecode) and errors.As() for the section.
type DecodeError struct {
	Section Section // Layer that failed
	Message string  // Description of the failure
	Err     error   // Underlying error, may be nil
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.Section, e.Message, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.Section, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports whether target is ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func binaryError(message string, err error) *DecodeError {
	return &DecodeError{Section: SectionBinary, Message: message, Err: err}
}

func pemError(message string, err error) *DecodeError {
	return &DecodeError{Section: SectionPEM, Message: message, Err: err}
}

func structureError(format string, args ...any) *DecodeError {
	return &DecodeError{Section: SectionStructure, Message: fmt.Sprintf(format, args...)}
}

// Sentinel errors for format operations.
// Use errors.Is() to check for these errors through the error chain.
var (
	// ErrDecode matches every *DecodeError.
	ErrDecode = errors.New("decode failed")

	// ErrPassphraseMismatch indicates the presence of a passphrase does not
	// match whether the record is encrypted.
	ErrPassphraseMismatch = errors.New("passphrase presence does not match record")

	// ErrPassphraseRequired is returned for an encrypted record imported
	// without a passphrase. It wraps ErrPassphraseMismatch.
	ErrPassphraseRequired = fmt.Errorf("%w: record is encrypted and no passphrase was given", ErrPassphraseMismatch)

	// ErrUnexpectedPassphrase is returned for a plaintext record imported
	// with a passphrase. It wraps ErrPassphraseMismatch.
	ErrUnexpectedPassphrase = fmt.Errorf("%w: record is not encrypted but a passphrase was given", ErrPassphraseMismatch)
)
