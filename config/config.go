// Package config loads the YAML configuration of the attestord and
// aggregatord daemons.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/attestlabs/attestor/types"
)

// Duration is a time.Duration that unmarshals from YAML strings like "6s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// AttestorConfig configures one attestord process.
type AttestorConfig struct {
	// KeyFile holds the attestor's hex-encoded secp256k1 secret.
	KeyFile string `yaml:"key_file"`

	// ListenAddrs are libp2p listen multiaddrs.
	ListenAddrs []string `yaml:"listen_addrs"`

	// Peers are multiaddrs (with /p2p/ components) of other network
	// participants to connect to at startup.
	Peers []string `yaml:"peers"`

	PollInterval  Duration `yaml:"poll_interval"`
	StoreCapacity int      `yaml:"store_capacity"`
	FinalizedOnly bool     `yaml:"finalized_only"`

	// GenesisTime and BlockTime parameterize the built-in devnet chain
	// adapter used when no real chain is wired in.
	GenesisTime uint64 `yaml:"genesis_time"`
	BlockTime   uint64 `yaml:"block_time"`

	LogLevel string `yaml:"log_level"`
}

// Validate checks required fields.
func (c *AttestorConfig) Validate() error {
	if c.KeyFile == "" {
		return fmt.Errorf("key_file is required")
	}
	if c.StoreCapacity < 0 {
		return fmt.Errorf("store_capacity must not be negative")
	}
	return nil
}

// AggregatorConfig configures one aggregatord process.
type AggregatorConfig struct {
	// ListenAddrs are libp2p listen multiaddrs for the relayer-facing
	// surface.
	ListenAddrs []string `yaml:"listen_addrs"`

	// AttestorEndpoints are multiaddrs (with /p2p/ components) of the
	// attestors to aggregate from.
	AttestorEndpoints []string `yaml:"attestor_endpoints"`

	// TrustedKeys are hex-encoded compressed public keys of the trusted
	// attestor set.
	TrustedKeys []string `yaml:"trusted_keys"`

	Quorum         uint32   `yaml:"quorum"`
	RequestTimeout Duration `yaml:"request_timeout"`

	// DataDir is where the pebble-backed client store lives. Empty selects
	// the in-memory store.
	DataDir string `yaml:"data_dir"`

	LogLevel string `yaml:"log_level"`
}

// Validate checks required fields and quorum consistency.
func (c *AggregatorConfig) Validate() error {
	if len(c.AttestorEndpoints) == 0 {
		return fmt.Errorf("attestor_endpoints is required")
	}
	if c.Quorum == 0 {
		return fmt.Errorf("quorum must be positive")
	}
	if len(c.TrustedKeys) == 0 {
		return fmt.Errorf("trusted_keys is required")
	}
	if int(c.Quorum) > len(c.TrustedKeys) {
		return fmt.Errorf("quorum %d exceeds %d trusted keys", c.Quorum, len(c.TrustedKeys))
	}
	return nil
}

// ParseTrustedKeys decodes the configured hex public keys.
func (c *AggregatorConfig) ParseTrustedKeys() ([]types.PublicKey, error) {
	keys := make([]types.PublicKey, 0, len(c.TrustedKeys))
	seen := make(map[types.PublicKey]struct{}, len(c.TrustedKeys))
	for i, raw := range c.TrustedKeys {
		pk, err := types.ParsePublicKey(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted key %d: %w", i, err)
		}
		if _, dup := seen[pk]; dup {
			return nil, fmt.Errorf("trusted key %d: duplicate key %s", i, raw)
		}
		seen[pk] = struct{}{}
		keys = append(keys, pk)
	}
	return keys, nil
}

// LoadAttestor loads and validates an attestord config file.
func LoadAttestor(path string) (*AttestorConfig, error) {
	var cfg AttestorConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid attestor config: %w", err)
	}
	return &cfg, nil
}

// LoadAggregator loads and validates an aggregatord config file.
func LoadAggregator(path string) (*AggregatorConfig, error) {
	var cfg AggregatorConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid aggregator config: %w", err)
	}
	return &cfg, nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
