// Package config loads the hkey YAML configuration.
//
// Example:
//
//	algorithms:
//	  ec: ed25519
//	  pq: ml-dsa-65
//	  dh: x25519
//	  kem: ml-kem-768
//	encoding: pem
//	kdf:
//	  time: 3
//	  memory_kb: 65536
//	  threads: 4
//	audit_log: /var/log/hkey-audit.jsonl
//
// Passphrases are never read from the configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/remiblancher/hybridkey/pkg/crypto"
	"github.com/remiblancher/hybridkey/pkg/encryption"
	"github.com/remiblancher/hybridkey/pkg/format"
)

// Config is the hkey configuration.
type Config struct {
	Algorithms AlgorithmsConfig `yaml:"algorithms"`
	Encoding   string           `yaml:"encoding"`
	KDF        KDFConfig        `yaml:"kdf"`
	AuditLog   string           `yaml:"audit_log"`
}

// AlgorithmsConfig selects the two hybrid suites of new master keys.
type AlgorithmsConfig struct {
	EC  string `yaml:"ec"`
	PQ  string `yaml:"pq"`
	DH  string `yaml:"dh"`
	KEM string `yaml:"kem"`
}

// KDFConfig holds the Argon2id cost used for encrypted exports.
type KDFConfig struct {
	Time     uint32 `yaml:"time"`
	MemoryKB uint32 `yaml:"memory_kb"`
	Threads  uint8  `yaml:"threads"`
}

// Default returns the built-in configuration.
func Default() *Config {
	sign, kem, params := crypto.DefaultHybridSign(), crypto.DefaultHybridKEM(), encryption.DefaultParams()
	return &Config{
		Algorithms: AlgorithmsConfig{
			EC:  string(sign.EC),
			PQ:  string(sign.PQ),
			DH:  string(kem.DH),
			KEM: string(kem.KEM),
		},
		Encoding: format.EncodingPEM.String(),
		KDF: KDFConfig{
			Time:     params.Time,
			MemoryKB: params.MemoryKB,
			Threads:  params.Threads,
		},
	}
}

// Load reads a configuration file. Fields absent from the file keep their
// defaults; unknown fields are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks every field against the supported values.
func (c *Config) Validate() error {
	if _, err := c.HybridSign(); err != nil {
		return err
	}
	if _, err := c.HybridKEM(); err != nil {
		return err
	}
	if _, err := c.EncodingValue(); err != nil {
		return err
	}
	if err := c.KDFParams().Validate(); err != nil {
		return fmt.Errorf("kdf: %w", err)
	}
	return nil
}

// HybridSign returns the configured signing suite.
func (c *Config) HybridSign() (crypto.HybridSignAlgorithm, error) {
	ec, err := crypto.ParseECAlgorithm(c.Algorithms.EC)
	if err != nil {
		return crypto.HybridSignAlgorithm{}, fmt.Errorf("algorithms.ec: %w", err)
	}
	pq, err := crypto.ParsePQAlgorithm(c.Algorithms.PQ)
	if err != nil {
		return crypto.HybridSignAlgorithm{}, fmt.Errorf("algorithms.pq: %w", err)
	}
	return crypto.HybridSignAlgorithm{EC: ec, PQ: pq}, nil
}

// HybridKEM returns the configured key exchange suite.
func (c *Config) HybridKEM() (crypto.HybridKEMAlgorithm, error) {
	dh, err := crypto.ParseDHAlgorithm(c.Algorithms.DH)
	if err != nil {
		return crypto.HybridKEMAlgorithm{}, fmt.Errorf("algorithms.dh: %w", err)
	}
	kem, err := crypto.ParseKEMAlgorithm(c.Algorithms.KEM)
	if err != nil {
		return crypto.HybridKEMAlgorithm{}, fmt.Errorf("algorithms.kem: %w", err)
	}
	return crypto.HybridKEMAlgorithm{DH: dh, KEM: kem}, nil
}

// EncodingValue returns the configured output encoding.
func (c *Config) EncodingValue() (format.Encoding, error) {
	enc, err := format.ParseEncoding(c.Encoding)
	if err != nil {
		return 0, fmt.Errorf("encoding: %w", err)
	}
	return enc, nil
}

// KDFParams returns the configured Argon2id cost.
func (c *Config) KDFParams() encryption.Params {
	return encryption.Params{
		Time:     c.KDF.Time,
		MemoryKB: c.KDF.MemoryKB,
		Threads:  c.KDF.Threads,
	}
}
