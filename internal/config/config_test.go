package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/remiblancher/hybridkey/pkg/crypto"
	"github.com/remiblancher/hybridkey/pkg/encryption"
	"github.com/remiblancher/hybridkey/pkg/format"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hkey.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

// =============================================================================
// [Unit] Default Tests
// =============================================================================

func TestU_Config_Default(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}

	sign, _ := cfg.HybridSign()
	kem, _ := cfg.HybridKEM()
	if sign != crypto.DefaultHybridSign() || kem != crypto.DefaultHybridKEM() {
		t.Errorf("default suites = %v, %v", sign, kem)
	}
	if enc, _ := cfg.EncodingValue(); enc != format.EncodingPEM {
		t.Errorf("default encoding = %v", enc)
	}
	if p := cfg.KDFParams(); p != encryption.DefaultParams() {
		t.Errorf("default KDF = %+v", p)
	}
	if cfg.AuditLog != "" {
		t.Errorf("default audit log = %q", cfg.AuditLog)
	}
}

// =============================================================================
// [Unit] Load Tests
// =============================================================================

func TestU_Config_LoadFull(t *testing.T) {
	path := writeConfig(t, `
algorithms:
  ec: ed448
  pq: slh-dsa-sha2-128f
  dh: x448
  kem: ml-kem-1024
encoding: binary
kdf:
  time: 2
  memory_kb: 1024
  threads: 2
audit_log: /tmp/hkey-audit.jsonl
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	sign, _ := cfg.HybridSign()
	if sign.EC != crypto.AlgEd448 || sign.PQ != crypto.AlgSLHDSASHA2128f {
		t.Errorf("HybridSign() = %v", sign)
	}
	kem, _ := cfg.HybridKEM()
	if kem.DH != crypto.AlgX448 || kem.KEM != crypto.AlgMLKEM1024 {
		t.Errorf("HybridKEM() = %v", kem)
	}
	if enc, _ := cfg.EncodingValue(); enc != format.EncodingBinary {
		t.Errorf("EncodingValue() = %v", enc)
	}
	if p := cfg.KDFParams(); p.Time != 2 || p.MemoryKB != 1024 || p.Threads != 2 {
		t.Errorf("KDFParams() = %+v", p)
	}
	if cfg.AuditLog != "/tmp/hkey-audit.jsonl" {
		t.Errorf("AuditLog = %q", cfg.AuditLog)
	}
}

func TestU_Config_LoadPartialKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "algorithms:\n  pq: ml-dsa-87\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	sign, _ := cfg.HybridSign()
	if sign.EC != crypto.AlgEd25519 || sign.PQ != crypto.AlgMLDSA87 {
		t.Errorf("HybridSign() = %v", sign)
	}
	if cfg.KDFParams() != encryption.DefaultParams() {
		t.Errorf("KDFParams() = %+v", cfg.KDFParams())
	}
}

func TestU_Config_LoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestU_Config_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"[Unit] Load: unknown field", "passphrase: hunter2\n"},
		{"[Unit] Load: unknown algorithm", "algorithms:\n  kem: kyber768\n"},
		{"[Unit] Load: kem in dh slot", "algorithms:\n  dh: ml-kem-768\n"},
		{"[Unit] Load: pq in ec slot", "algorithms:\n  ec: ml-dsa-65\n"},
		{"[Unit] Load: unknown encoding", "encoding: der\n"},
		{"[Unit] Load: zero kdf time", "kdf:\n  time: 0\n"},
		{"[Unit] Load: excessive kdf memory", "kdf:\n  memory_kb: 4294967295\n"},
		{"[Unit] Load: malformed yaml", "algorithms: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Load() should fail")
			}
		})
	}

	t.Run("[Unit] Load: missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("Load() should fail for a missing file")
		}
	})
}

func TestU_Config_ValidateUnsupportedAlgorithm(t *testing.T) {
	cfg := Default()
	cfg.Algorithms.EC = "rsa"
	if err := cfg.Validate(); !errors.Is(err, crypto.ErrUnsupportedAlgorithm) {
		t.Errorf("Validate() error = %v, want ErrUnsupportedAlgorithm", err)
	}
}

// =============================================================================
// [Unit] Passphrase Tests
// =============================================================================

func TestU_ResolvePassphrase(t *testing.T) {
	t.Setenv("HKEY_TEST_PASSPHRASE", "from-env")

	t.Run("[Unit] Resolve: empty", func(t *testing.T) {
		buf, err := ResolvePassphrase("")
		if err != nil || buf != nil {
			t.Errorf("ResolvePassphrase(\"\") = %v, %v", buf, err)
		}
	})

	t.Run("[Unit] Resolve: literal", func(t *testing.T) {
		buf, err := ResolvePassphrase("correct-horse")
		if err != nil {
			t.Fatalf("ResolvePassphrase() error = %v", err)
		}
		defer buf.Close()
		if !buf.Equal([]byte("correct-horse")) {
			t.Error("literal passphrase not preserved")
		}
	})

	t.Run("[Unit] Resolve: env", func(t *testing.T) {
		buf, err := ResolvePassphrase("env:HKEY_TEST_PASSPHRASE")
		if err != nil {
			t.Fatalf("ResolvePassphrase() error = %v", err)
		}
		defer buf.Close()
		if !buf.Equal([]byte("from-env")) {
			t.Error("env passphrase not resolved")
		}
	})

	t.Run("[Unit] Resolve: unset env", func(t *testing.T) {
		if _, err := ResolvePassphrase("env:HKEY_TEST_UNSET_VARIABLE"); err == nil {
			t.Error("ResolvePassphrase() should fail for an unset variable")
		}
	})
}
