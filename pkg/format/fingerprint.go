package format

import (
	"fmt"

	"github.com/mr-tron/base58/base58"
	"github.com/multiformats/go-multihash"
)

// Fingerprint identifies a public bundle: the base58btc text of the
// SHA2-256 multihash of its canonical binary encoding. Equal bundles always
// have equal fingerprints.
func (f *FullChainPublicKeyFormat) Fingerprint() (string, error) {
	data, err := f.EncodeBinary()
	if err != nil {
		return "", err
	}
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("failed to hash public key bundle: %w", err)
	}
	return base58.Encode(sum), nil
}
