package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/remiblancher/hybridkey/internal/audit"
	"github.com/remiblancher/hybridkey/pkg/crypto"
	"github.com/remiblancher/hybridkey/pkg/encryption"
	"github.com/remiblancher/hybridkey/pkg/format"
	"github.com/remiblancher/hybridkey/pkg/masterkey"
	"github.com/remiblancher/hybridkey/pkg/secret"
)

// suiteString renders both suites the way audit events record them.
func suiteString(sign crypto.HybridSignAlgorithm, kem crypto.HybridKEMAlgorithm) string {
	return sign.String() + "/" + kem.String()
}

// resolveEncoding returns the encoding named by a flag, or the configured
// one when the flag is empty.
func resolveEncoding(flagValue string) (format.Encoding, error) {
	if flagValue == "" {
		return cfg.EncodingValue()
	}
	return format.ParseEncoding(flagValue)
}

// resolveSuites returns the suites named by flags, falling back to the
// configuration for each empty flag.
func resolveSuites(signFlag, kemFlag string) (crypto.HybridSignAlgorithm, crypto.HybridKEMAlgorithm, error) {
	var sign crypto.HybridSignAlgorithm
	var kem crypto.HybridKEMAlgorithm
	var err error

	if signFlag != "" {
		sign, err = crypto.ParseHybridSignAlgorithm(signFlag)
	} else {
		sign, err = cfg.HybridSign()
	}
	if err != nil {
		return sign, kem, err
	}

	if kemFlag != "" {
		kem, err = crypto.ParseHybridKEMAlgorithm(kemFlag)
	} else {
		kem, err = cfg.HybridKEM()
	}
	return sign, kem, err
}

// detectHeadSize is how far detectEncoding looks for a PEM boundary.
const detectHeadSize = 256

// detectEncoding peeks at the start of the file and rewinds it. A binary
// record's first bytes are its header and a PEM record's are whitespace and
// the BEGIN line, so no seed bytes are read.
func detectEncoding(f *os.File) (format.Encoding, error) {
	var head [detectHeadSize]byte
	n, err := io.ReadFull(f, head[:])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("failed to read key file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to rewind key file: %w", err)
	}
	return format.DetectEncoding(head[:n]), nil
}

// readKeyFile decodes the secret key record stored at path. The caller must
// Close the returned record.
func readKeyFile(path string) (*format.SecretKeyFormat, format.Encoding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open key file: %w", err)
	}
	defer func() { _ = f.Close() }()

	enc, err := detectEncoding(f)
	if err != nil {
		return nil, 0, err
	}
	record, err := masterkey.ReadSecretKey(f, enc)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return record, enc, nil
}

// openKey loads and imports the master key at path, asking for the
// passphrase when the record is encrypted. Failed and successful imports
// are both audited.
func openKey(path, passFlag string) (*masterkey.MasterKey, audit.KeyInfo, error) {
	info := audit.KeyInfo{Path: path}

	record, enc, err := readKeyFile(path)
	if err != nil {
		return nil, info, err
	}
	defer func() { _ = record.Close() }()

	info.Algorithms = suiteString(record.HybridSign(), record.HybridKEM())
	info.Encoding = enc.String()
	info.Encrypted = record.IsEncrypted()

	// A passphrase given for a plaintext record is passed through so Import
	// reports the mismatch.
	var pass *secret.Buffer
	if record.IsEncrypted() || passFlag != "" {
		pass, err = existingPassphrase(passFlag)
		if err != nil {
			return nil, info, err
		}
		defer func() { _ = pass.Close() }()
	}

	mk, err := masterkey.Import(record, pass, masterkey.WithEncryptionParams(cfg.KDFParams()))
	if err != nil {
		if errors.Is(err, encryption.ErrAuthentication) {
			if auditErr := audit.LogAuthFailed(info, "wrong passphrase or corrupted record"); auditErr != nil {
				return nil, info, errors.Join(err, auditErr)
			}
		}
		if auditErr := audit.LogKeyImported(info, false, err.Error()); auditErr != nil {
			return nil, info, errors.Join(err, auditErr)
		}
		return nil, info, fmt.Errorf("failed to import %s: %w", path, err)
	}

	info.Fingerprint, err = mk.Fingerprint()
	if err == nil {
		err = audit.LogKeyImported(info, true, "")
	}
	if err != nil {
		_ = mk.Close()
		return nil, info, err
	}
	return mk, info, nil
}

// writeKeyFile writes a secret key file atomically with mode 0600.
func writeKeyFile(path string, overwrite bool, write func(io.Writer) error) error {
	return writeFile(path, 0600, overwrite, write)
}

// writeFile writes path atomically through a temporary file in the same
// directory. An existing file is only replaced when overwrite is set.
func writeFile(path string, mode os.FileMode, overwrite bool, write func(io.Writer) error) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// saveKey exports mk to info.Path and audits the export.
func saveKey(mk *masterkey.MasterKey, info audit.KeyInfo, pass *secret.Buffer, enc format.Encoding, overwrite bool) error {
	err := writeKeyFile(info.Path, overwrite, func(w io.Writer) error {
		return mk.Export(w, pass, enc)
	})
	if auditErr := audit.LogKeyExported(info, err == nil); auditErr != nil {
		return errors.Join(err, auditErr)
	}
	return err
}

// savePublic writes a public format to path, or to out when path is empty,
// and audits the export.
func savePublic(pub format.PublicEncoder, info audit.KeyInfo, path string, out io.Writer, enc format.Encoding, overwrite bool) error {
	info.Path = path
	data, err := format.Encode(pub, enc)
	if err == nil {
		if path == "" {
			_, err = out.Write(data)
		} else {
			err = writeFile(path, 0644, overwrite, func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			})
		}
	}
	if auditErr := audit.LogPublicKeyExported(info, err == nil); auditErr != nil {
		return errors.Join(err, auditErr)
	}
	return err
}
