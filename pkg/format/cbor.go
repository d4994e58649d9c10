package format

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/remiblancher/hybridkey/pkg/secret"
)

// encMode encodes with Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The same
// record always produces identical bytes.
var encMode cbor.EncMode

// decMode is strict: unknown fields, duplicate map keys, tags and
// indefinite-length items are rejected.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("format: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		TagsMd:            cbor.TagsForbidden,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("format: CBOR decoder initialization failed: " + err.Error())
	}
}

type wireKDF struct {
	Algorithm string `cbor:"1,keyasint"`
	Salt      []byte `cbor:"2,keyasint"`
	Time      uint32 `cbor:"3,keyasint"`
	MemoryKB  uint32 `cbor:"4,keyasint"`
	Threads   uint8  `cbor:"5,keyasint"`
}

type wireCipher struct {
	Algorithm string `cbor:"1,keyasint"`
	Nonce     []byte `cbor:"2,keyasint"`
}

type wireEncryption struct {
	KDF    wireKDF    `cbor:"1,keyasint"`
	Cipher wireCipher `cbor:"2,keyasint"`
}

// wireSecretKey is the CBOR layout of SecretKeyFormat. The seed has the
// highest key, so under deterministic encoding it is the final item.
type wireSecretKey struct {
	Version    uint64          `cbor:"0,keyasint"`
	EC         string          `cbor:"1,keyasint"`
	PQ         string          `cbor:"2,keyasint"`
	DH         string          `cbor:"3,keyasint"`
	KEM        string          `cbor:"4,keyasint"`
	Encryption *wireEncryption `cbor:"5,keyasint,omitempty"`
	Seed       sealedBytes     `cbor:"6,keyasint"`
}

type wireSignaturePublicKey struct {
	Version  uint64 `cbor:"0,keyasint"`
	EC       string `cbor:"1,keyasint"`
	ECPublic []byte `cbor:"2,keyasint"`
	PQ       string `cbor:"3,keyasint"`
	PQPublic []byte `cbor:"4,keyasint"`
}

type wireEncryptionPublicKey struct {
	Version   uint64 `cbor:"0,keyasint"`
	DH        string `cbor:"1,keyasint"`
	DHPublic  []byte `cbor:"2,keyasint"`
	KEM       string `cbor:"3,keyasint"`
	KEMPublic []byte `cbor:"4,keyasint"`
}

type wireFullChain struct {
	Version    uint64                  `cbor:"0,keyasint"`
	Signature  wireSignaturePublicKey  `cbor:"1,keyasint"`
	Encryption wireEncryptionPublicKey `cbor:"2,keyasint"`
}

// sealedBytes is the master seed field. It encodes as a zero-filled byte
// string of the seed's length; the encoder output is then patched in secret
// memory, so the CBOR library never handles seed bytes. Decoding copies the
// content straight from the caller's secret buffer into a new one.
type sealedBytes struct {
	size int
	buf  *secret.Buffer
}

// MarshalCBOR implements cbor.Marshaler.
func (s sealedBytes) MarshalCBOR() ([]byte, error) {
	return encMode.Marshal(make([]byte, s.size))
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (s *sealedBytes) UnmarshalCBOR(data []byte) error {
	content, err := byteStringContent(data)
	if err != nil {
		return err
	}
	if len(content) == 0 {
		return fmt.Errorf("empty master seed")
	}

	buf, err := secret.New(len(content))
	if err != nil {
		return err
	}
	copy(buf.Bytes(), content)

	_ = s.buf.Close()
	s.buf = buf
	s.size = len(content)
	return nil
}

// byteStringContent returns the payload of a definite-length CBOR byte
// string without copying it.
func byteStringContent(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty CBOR item")
	}
	if major := data[0] >> 5; major != 2 {
		return nil, fmt.Errorf("master seed is CBOR major type %d, want byte string", major)
	}

	var length uint64
	var offset int
	switch info := data[0] & 0x1f; {
	case info < 24:
		length, offset = uint64(info), 1
	case info == 24 && len(data) >= 2:
		length, offset = uint64(data[1]), 2
	case info == 25 && len(data) >= 3:
		length, offset = uint64(binary.BigEndian.Uint16(data[1:3])), 3
	case info == 26 && len(data) >= 5:
		length, offset = uint64(binary.BigEndian.Uint32(data[1:5])), 5
	case info == 27 && len(data) >= 9:
		length, offset = binary.BigEndian.Uint64(data[1:9]), 9
	default:
		return nil, fmt.Errorf("unsupported byte string header 0x%02x", data[0])
	}

	if uint64(len(data)-offset) != length {
		return nil, fmt.Errorf("byte string length %d does not match item size %d", length, len(data)-offset)
	}
	return data[offset:], nil
}

func checkVersion(v uint64) error {
	if v != Version {
		return structureError("unsupported record version %d", v)
	}
	return nil
}
