package format

import (
	"fmt"

	"github.com/remiblancher/hybridkey/pkg/crypto"
)

func (f *SignaturePublicKeyFormat) wire() wireSignaturePublicKey {
	return wireSignaturePublicKey{
		Version:  Version,
		EC:       string(f.ECAlgorithm),
		ECPublic: f.ECPublic,
		PQ:       string(f.PQAlgorithm),
		PQPublic: f.PQPublic,
	}
}

func (w *wireSignaturePublicKey) format() (*SignaturePublicKeyFormat, error) {
	if err := checkVersion(w.Version); err != nil {
		return nil, err
	}
	f := &SignaturePublicKeyFormat{
		ECAlgorithm: crypto.ECAlgorithm(w.EC),
		ECPublic:    w.ECPublic,
		PQAlgorithm: crypto.PQAlgorithm(w.PQ),
		PQPublic:    w.PQPublic,
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// EncodeBinary encodes the signing public key as CBOR.
func (f *SignaturePublicKeyFormat) EncodeBinary() ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("cannot encode signature public key: %w", err)
	}
	return encMode.Marshal(f.wire())
}

// EncodePEM encodes the signing public key as a PEM block.
func (f *SignaturePublicKeyFormat) EncodePEM() ([]byte, error) {
	der, err := f.EncodeBinary()
	if err != nil {
		return nil, err
	}
	return encodePublicPEM(LabelSignaturePublicKey, der), nil
}

// DecodeSignaturePublicKeyBinary decodes a CBOR signing public key.
func DecodeSignaturePublicKeyBinary(data []byte) (*SignaturePublicKeyFormat, error) {
	var w wireSignaturePublicKey
	if err := decMode.Unmarshal(data, &w); err != nil {
		return nil, binaryError("malformed signature public key", err)
	}
	return w.format()
}

// DecodeSignaturePublicKeyPEM decodes a PEM signing public key.
func DecodeSignaturePublicKeyPEM(data []byte) (*SignaturePublicKeyFormat, error) {
	der, err := decodePublicPEM(data, LabelSignaturePublicKey)
	if err != nil {
		return nil, err
	}
	return DecodeSignaturePublicKeyBinary(der)
}

func (f *EncryptionPublicKeyFormat) wire() wireEncryptionPublicKey {
	return wireEncryptionPublicKey{
		Version:   Version,
		DH:        string(f.DHAlgorithm),
		DHPublic:  f.DHPublic,
		KEM:       string(f.KEMAlgorithm),
		KEMPublic: f.KEMPublic,
	}
}

func (w *wireEncryptionPublicKey) format() (*EncryptionPublicKeyFormat, error) {
	if err := checkVersion(w.Version); err != nil {
		return nil, err
	}
	f := &EncryptionPublicKeyFormat{
		DHAlgorithm:  crypto.DHAlgorithm(w.DH),
		DHPublic:     w.DHPublic,
		KEMAlgorithm: crypto.KEMAlgorithm(w.KEM),
		KEMPublic:    w.KEMPublic,
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// EncodeBinary encodes the key exchange public key as CBOR.
func (f *EncryptionPublicKeyFormat) EncodeBinary() ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("cannot encode encryption public key: %w", err)
	}
	return encMode.Marshal(f.wire())
}

// EncodePEM encodes the key exchange public key as a PEM block.
func (f *EncryptionPublicKeyFormat) EncodePEM() ([]byte, error) {
	der, err := f.EncodeBinary()
	if err != nil {
		return nil, err
	}
	return encodePublicPEM(LabelEncryptionPublicKey, der), nil
}

// DecodeEncryptionPublicKeyBinary decodes a CBOR key exchange public key.
func DecodeEncryptionPublicKeyBinary(data []byte) (*EncryptionPublicKeyFormat, error) {
	var w wireEncryptionPublicKey
	if err := decMode.Unmarshal(data, &w); err != nil {
		return nil, binaryError("malformed encryption public key", err)
	}
	return w.format()
}

// DecodeEncryptionPublicKeyPEM decodes a PEM key exchange public key.
func DecodeEncryptionPublicKeyPEM(data []byte) (*EncryptionPublicKeyFormat, error) {
	der, err := decodePublicPEM(data, LabelEncryptionPublicKey)
	if err != nil {
		return nil, err
	}
	return DecodeEncryptionPublicKeyBinary(der)
}

// EncodeBinary encodes the public bundle as CBOR.
func (f *FullChainPublicKeyFormat) EncodeBinary() ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("cannot encode public key bundle: %w", err)
	}
	return encMode.Marshal(wireFullChain{
		Version:    Version,
		Signature:  f.SignaturePublicKey.wire(),
		Encryption: f.EncryptionPublicKey.wire(),
	})
}

// EncodePEM encodes the public bundle as a PEM block.
func (f *FullChainPublicKeyFormat) EncodePEM() ([]byte, error) {
	der, err := f.EncodeBinary()
	if err != nil {
		return nil, err
	}
	return encodePublicPEM(LabelFullChainPublicKey, der), nil
}

// DecodeFullChainBinary decodes a CBOR public bundle.
func DecodeFullChainBinary(data []byte) (*FullChainPublicKeyFormat, error) {
	var w wireFullChain
	if err := decMode.Unmarshal(data, &w); err != nil {
		return nil, binaryError("malformed public key bundle", err)
	}
	if err := checkVersion(w.Version); err != nil {
		return nil, err
	}

	sig, err := w.Signature.format()
	if err != nil {
		return nil, err
	}
	enc, err := w.Encryption.format()
	if err != nil {
		return nil, err
	}
	return &FullChainPublicKeyFormat{SignaturePublicKey: *sig, EncryptionPublicKey: *enc}, nil
}

// DecodeFullChainPEM decodes a PEM public bundle.
func DecodeFullChainPEM(data []byte) (*FullChainPublicKeyFormat, error) {
	der, err := decodePublicPEM(data, LabelFullChainPublicKey)
	if err != nil {
		return nil, err
	}
	return DecodeFullChainBinary(der)
}

// Encode encodes any public format in the requested encoding.
func Encode(f PublicEncoder, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingBinary:
		return f.EncodeBinary()
	case EncodingPEM:
		return f.EncodePEM()
	default:
		return nil, fmt.Errorf("unknown encoding %v", enc)
	}
}
