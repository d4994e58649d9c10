package masterkey

import (
	"errors"
	"fmt"
	"io"

	"github.com/remiblancher/hybridkey/pkg/crypto"
	"github.com/remiblancher/hybridkey/pkg/encryption"
	"github.com/remiblancher/hybridkey/pkg/format"
	"github.com/remiblancher/hybridkey/pkg/secret"
)

// MaxRecordSize bounds the size of a secret key record read by ReadSecretKey.
const MaxRecordSize = 64 * 1024

// ErrRecordTooLarge is returned when a record exceeds MaxRecordSize.
var ErrRecordTooLarge = errors.New("secret key record too large")

// Export writes the secret key record to w in a single Write. With a
// passphrase the seed is sealed first; without one the record carries the
// plaintext seed.
func (m *MasterKey) Export(w io.Writer, passphrase *secret.Buffer, enc format.Encoding) error {
	seed, err := m.seed.Clone()
	if err != nil {
		return fmt.Errorf("failed to read seed: %w", err)
	}

	record := &format.SecretKeyFormat{
		ECAlgorithm:  m.sign.EC,
		PQAlgorithm:  m.sign.PQ,
		DHAlgorithm:  m.kem.DH,
		KEMAlgorithm: m.kem.KEM,
		MasterSeed:   seed,
	}
	defer func() { _ = record.Close() }()

	if passphrase != nil {
		sealed, metadata, err := encryption.Seal(seed, passphrase, record.AdditionalData(), m.params)
		_ = seed.Close()
		if err != nil {
			return fmt.Errorf("failed to encrypt seed: %w", err)
		}
		record.MasterSeed = sealed
		record.EncryptionMetadata = metadata
	}

	var encoded *secret.Buffer
	switch enc {
	case format.EncodingBinary:
		encoded, err = record.EncodeSecretBinary()
	case format.EncodingPEM:
		encoded, err = record.EncodeSecretPEM()
	default:
		return fmt.Errorf("unsupported encoding: %v", enc)
	}
	if err != nil {
		return err
	}
	defer func() { _ = encoded.Close() }()

	if _, err := encoded.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write secret key: %w", err)
	}
	return nil
}

// Import rebuilds a master key from a decoded record. The passphrase must be
// given exactly when the record is encrypted; a mismatch fails before any
// decryption is attempted. f is not consumed and must still be closed by
// the caller.
func Import(f *format.SecretKeyFormat, passphrase *secret.Buffer, opts ...Option) (*MasterKey, error) {
	if f == nil {
		return nil, ErrNilFormat
	}
	switch {
	case f.IsEncrypted() && passphrase == nil:
		return nil, format.ErrPassphraseRequired
	case !f.IsEncrypted() && passphrase != nil:
		return nil, format.ErrUnexpectedPassphrase
	}
	if f.MasterSeed == nil {
		return nil, fmt.Errorf("%w: missing master seed", format.ErrDecode)
	}

	kem, sign := f.HybridKEM(), f.HybridSign()
	if err := validateSuites(kem, sign); err != nil {
		return nil, err
	}

	var buf *secret.Buffer
	var err error
	if f.IsEncrypted() {
		buf, err = encryption.Open(f.MasterSeed, passphrase, f.AdditionalData(), f.EncryptionMetadata)
	} else {
		buf, err = f.MasterSeed.Clone()
	}
	if err != nil {
		return nil, err
	}

	seed, err := crypto.NewSeed(buf)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &MasterKey{sign: sign, kem: kem, seed: seed, params: o.params}, nil
}

// ReadSecretKey reads a whole record from r and decodes it. The bytes are
// read straight into secret memory.
func ReadSecretKey(r io.Reader, enc format.Encoding) (*format.SecretKeyFormat, error) {
	data, err := readSecret(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = data.Close() }()

	switch enc {
	case format.EncodingBinary:
		return format.DecodeSecretKeyBinary(data)
	case format.EncodingPEM:
		return format.DecodeSecretKeyPEM(data)
	default:
		return nil, fmt.Errorf("unsupported encoding: %v", enc)
	}
}

// Load reads, decodes and imports a record in one step.
func Load(r io.Reader, passphrase *secret.Buffer, enc format.Encoding, opts ...Option) (*MasterKey, error) {
	f, err := ReadSecretKey(r, enc)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Import(f, passphrase, opts...)
}

func readSecret(r io.Reader) (*secret.Buffer, error) {
	scratch, err := secret.New(MaxRecordSize + 1)
	if err != nil {
		return nil, err
	}
	defer func() { _ = scratch.Close() }()

	var data *secret.Buffer
	err = scratch.Expose(func(b []byte) error {
		n, err := io.ReadFull(r, b)
		switch {
		case err == nil:
			return ErrRecordTooLarge
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty input", format.ErrDecode)
		case !errors.Is(err, io.ErrUnexpectedEOF):
			return fmt.Errorf("failed to read secret key: %w", err)
		}
		data, err = secret.New(n)
		if err != nil {
			return err
		}
		copy(data.Bytes(), b[:n])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ExportPublic writes the full public bundle to w. Only public halves are
// ever encoded on this path.
func (m *MasterKey) ExportPublic(w io.Writer, enc format.Encoding) error {
	pub, err := m.PublicKey()
	if err != nil {
		return err
	}
	data, err := format.Encode(pub, enc)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	return nil
}
