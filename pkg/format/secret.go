package format

import (
	"fmt"

	"github.com/remiblancher/hybridkey/pkg/crypto"
	"github.com/remiblancher/hybridkey/pkg/secret"
)

// EncodeSecretBinary encodes the record as CBOR into a secret buffer.
func (f *SecretKeyFormat) EncodeSecretBinary() (*secret.Buffer, error) {
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("cannot encode secret key: %w", err)
	}

	wire := wireSecretKey{
		Version: Version,
		EC:      string(f.ECAlgorithm),
		PQ:      string(f.PQAlgorithm),
		DH:      string(f.DHAlgorithm),
		KEM:     string(f.KEMAlgorithm),
		Seed:    sealedBytes{size: f.MasterSeed.Len()},
	}
	if m := f.EncryptionMetadata; m != nil {
		wire.Encryption = &wireEncryption{
			KDF: wireKDF{
				Algorithm: m.KDF.Algorithm,
				Salt:      m.KDF.Salt,
				Time:      m.KDF.Time,
				MemoryKB:  m.KDF.MemoryKB,
				Threads:   m.KDF.Threads,
			},
			Cipher: wireCipher{
				Algorithm: m.Cipher.Algorithm,
				Nonce:     m.Cipher.Nonce,
			},
		}
	}

	// The encoding ends with a zero-filled seed placeholder.
	encoded, err := encMode.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to encode secret key: %w", err)
	}
	out, err := secret.NewFromBytes(encoded)
	if err != nil {
		return nil, err
	}

	err = f.MasterSeed.Expose(func(seed []byte) error {
		dst := out.Bytes()
		copy(dst[len(dst)-len(seed):], seed)
		return nil
	})
	if err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("failed to encode secret key: %w", err)
	}
	return out, nil
}

// EncodeSecretPEM encodes the record as a PEM block into a secret buffer.
// Encrypted records use LabelEncryptedMasterKey, plaintext ones LabelMasterKey.
func (f *SecretKeyFormat) EncodeSecretPEM() (*secret.Buffer, error) {
	der, err := f.EncodeSecretBinary()
	if err != nil {
		return nil, err
	}
	defer func() { _ = der.Close() }()

	label := LabelMasterKey
	if f.IsEncrypted() {
		label = LabelEncryptedMasterKey
	}
	return encodeSecretPEM(label, der)
}

// DecodeSecretKeyBinary decodes a CBOR secret key record. The returned
// format owns a new secret buffer for the seed; data is left untouched.
func DecodeSecretKeyBinary(data *secret.Buffer) (*SecretKeyFormat, error) {
	if data == nil {
		return nil, binaryError("no data", nil)
	}

	var f *SecretKeyFormat
	err := data.Expose(func(b []byte) error {
		var err error
		f, err = decodeSecretKey(b)
		return err
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// DecodeSecretKeyPEM decodes a PEM secret key record. The label must agree
// with the presence of encryption metadata.
func DecodeSecretKeyPEM(data *secret.Buffer) (*SecretKeyFormat, error) {
	if data == nil {
		return nil, pemError("no data", nil)
	}

	var label string
	var der *secret.Buffer
	err := data.Expose(func(b []byte) error {
		var err error
		label, der, err = decodeSecretPEM(b)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = der.Close() }()

	if label != LabelMasterKey && label != LabelEncryptedMasterKey {
		return nil, structureError("PEM label %q is not a master key", label)
	}

	f, err := DecodeSecretKeyBinary(der)
	if err != nil {
		return nil, err
	}
	if f.IsEncrypted() != (label == LabelEncryptedMasterKey) {
		_ = f.Close()
		return nil, structureError("PEM label %q does not match record encryption state", label)
	}
	return f, nil
}

func decodeSecretKey(b []byte) (*SecretKeyFormat, error) {
	var wire wireSecretKey
	if err := decMode.Unmarshal(b, &wire); err != nil {
		_ = wire.Seed.buf.Close()
		return nil, binaryError("malformed secret key", err)
	}

	if err := checkVersion(wire.Version); err != nil {
		_ = wire.Seed.buf.Close()
		return nil, err
	}

	f := &SecretKeyFormat{
		ECAlgorithm:  crypto.ECAlgorithm(wire.EC),
		PQAlgorithm:  crypto.PQAlgorithm(wire.PQ),
		DHAlgorithm:  crypto.DHAlgorithm(wire.DH),
		KEMAlgorithm: crypto.KEMAlgorithm(wire.KEM),
		MasterSeed:   wire.Seed.buf,
	}
	if e := wire.Encryption; e != nil {
		f.EncryptionMetadata = &EncryptionMetadata{
			KDF: KDFParams{
				Algorithm: e.KDF.Algorithm,
				Salt:      e.KDF.Salt,
				Time:      e.KDF.Time,
				MemoryKB:  e.KDF.MemoryKB,
				Threads:   e.KDF.Threads,
			},
			Cipher: CipherParams{
				Algorithm: e.Cipher.Algorithm,
				Nonce:     e.Cipher.Nonce,
			},
		}
	}

	if err := f.validate(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}
