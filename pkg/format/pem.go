package format

import (
	"bytes"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	"github.com/remiblancher/hybridkey/pkg/secret"
)

// PEM block labels.
const (
	LabelMasterKey           = "HYBRID MASTER KEY"
	LabelEncryptedMasterKey  = "ENCRYPTED HYBRID MASTER KEY"
	LabelFullChainPublicKey  = "HYBRID PUBLIC KEY"
	LabelSignaturePublicKey  = "HYBRID SIGNATURE PUBLIC KEY"
	LabelEncryptionPublicKey = "HYBRID ENCRYPTION PUBLIC KEY"
)

const (
	pemLineLength     = 64
	pemBytesPerLine   = pemLineLength / 4 * 3
	pemBeginPrefix    = "-----BEGIN "
	pemEndPrefix      = "-----END "
	pemBoundarySuffix = "-----"

	// pemSpace is the whitespace allowed around a PEM block.
	pemSpace = " \t\r\n"
)

// DetectEncoding reports the encoding of a record from its first bytes.
// Leading whitespace before a PEM boundary is ignored.
func DetectEncoding(head []byte) Encoding {
	if bytes.HasPrefix(bytes.TrimLeft(head, pemSpace), []byte(pemBeginPrefix)) {
		return EncodingPEM
	}
	return EncodingBinary
}

// encodePublicPEM wraps public bytes in a PEM block.
func encodePublicPEM(label string, data []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: label, Bytes: data})
}

// decodePublicPEM extracts exactly one PEM block with the expected label.
// Leading or trailing data and headers are rejected.
func decodePublicPEM(data []byte, label string) ([]byte, error) {
	data = bytes.Trim(data, pemSpace)
	if !bytes.HasPrefix(data, []byte(pemBeginPrefix)) {
		return nil, pemError("data does not start with a PEM block", nil)
	}
	block, rest := pem.Decode(data)
	if block == nil {
		return nil, pemError("no PEM block found", nil)
	}
	if len(bytes.TrimSpace(rest)) != 0 {
		return nil, pemError("trailing data after PEM block", nil)
	}
	if len(block.Headers) != 0 {
		return nil, pemError("unexpected PEM headers", nil)
	}
	if block.Type != label {
		return nil, structureError("PEM label %q, want %q", block.Type, label)
	}
	return block.Bytes, nil
}

// encodeSecretPEM writes a PEM block directly into secret memory. The
// layout matches encoding/pem: 64-column base64 lines, LF line endings.
func encodeSecretPEM(label string, data *secret.Buffer) (*secret.Buffer, error) {
	begin := pemBeginPrefix + label + pemBoundarySuffix + "\n"
	end := pemEndPrefix + label + pemBoundarySuffix + "\n"

	var out *secret.Buffer
	err := data.Expose(func(src []byte) error {
		lines := (len(src) + pemBytesPerLine - 1) / pemBytesPerLine
		size := len(begin) + base64.StdEncoding.EncodedLen(len(src)) + lines + len(end)

		buf, err := secret.New(size)
		if err != nil {
			return err
		}
		dst := buf.Bytes()

		n := copy(dst, begin)
		for len(src) > 0 {
			chunk := min(pemBytesPerLine, len(src))
			base64.StdEncoding.Encode(dst[n:], src[:chunk])
			n += base64.StdEncoding.EncodedLen(chunk)
			dst[n] = '\n'
			n++
			src = src[chunk:]
		}
		copy(dst[n:], end)

		out = buf
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode PEM: %w", err)
	}
	return out, nil
}

// decodeSecretPEM parses a single PEM block held in secret memory and
// decodes its body into a new secret buffer. Like decodePublicPEM it
// ignores whitespace around the block and rejects headers and any other
// leading or trailing data. Lines may end in LF or CRLF.
func decodeSecretPEM(data []byte) (string, *secret.Buffer, error) {
	lines := bytes.Split(bytes.Trim(data, pemSpace), []byte("\n"))
	for i := range lines {
		lines[i] = bytes.TrimSuffix(lines[i], []byte("\r"))
	}
	if len(lines) < 3 {
		return "", nil, pemError("truncated PEM block", nil)
	}

	label, ok := boundaryLabel(lines[0], pemBeginPrefix)
	if !ok {
		return "", nil, pemError("missing BEGIN line", nil)
	}
	endLabel, ok := boundaryLabel(lines[len(lines)-1], pemEndPrefix)
	if !ok {
		return "", nil, pemError("missing END line or trailing data", nil)
	}
	if endLabel != label {
		return "", nil, pemError(fmt.Sprintf("END label %q does not match BEGIN label %q", endLabel, label), nil)
	}

	body := lines[1 : len(lines)-1]
	capacity := 0
	for _, line := range body {
		if len(line) == 0 || len(line)%4 != 0 {
			return "", nil, pemError("malformed base64 line", nil)
		}
		capacity += base64.StdEncoding.DecodedLen(len(line))
	}

	scratch, err := secret.New(capacity)
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = scratch.Close() }()

	dst := scratch.Bytes()
	n := 0
	for i, line := range body {
		if i < len(body)-1 && bytes.IndexByte(line, '=') >= 0 {
			return "", nil, pemError("base64 padding before the last line", nil)
		}
		written, err := base64.StdEncoding.Decode(dst[n:], line)
		if err != nil {
			return "", nil, pemError("invalid base64", err)
		}
		n += written
	}
	if n == 0 {
		return "", nil, pemError("empty PEM body", nil)
	}

	out, err := secret.New(n)
	if err != nil {
		return "", nil, err
	}
	copy(out.Bytes(), dst[:n])
	return label, out, nil
}

// boundaryLabel extracts the label from "-----BEGIN X-----" or "-----END X-----".
func boundaryLabel(line []byte, prefix string) (string, bool) {
	if len(line) <= len(prefix)+len(pemBoundarySuffix) {
		return "", false
	}
	if !bytes.HasPrefix(line, []byte(prefix)) || !bytes.HasSuffix(line, []byte(pemBoundarySuffix)) {
		return "", false
	}
	return string(line[len(prefix) : len(line)-len(pemBoundarySuffix)]), true
}
