// Package config loads and validates the bridge's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/doover-run/enip-plc-bridge/internal/bridgeerrors"
)

// SyncMode is one of the four per-mapping reconciliation policies.
type SyncMode string

const (
	SyncFromPLC         SyncMode = "FROM_PLC"
	SyncToPLC           SyncMode = "TO_PLC"
	SyncPLCPreferred    SyncMode = "SYNC_PLC_PREFERRED"
	SyncDooverPreferred SyncMode = "SYNC_DOOVER_PREFERRED"
	defaultSyncMode     SyncMode = SyncFromPLC
)

const (
	defaultPort           = 44818
	defaultPLCPort        = 44818
	defaultSeparator      = "__"
	defaultSyncPeriodSecs = 1.0
	defaultTimeoutSecs    = 0.2
)

// TagMapping binds one cloud tag to one PLC tag under a sync policy.
type TagMapping struct {
	Mode      SyncMode `yaml:"mode"`
	DooverTag string   `yaml:"doover_tag"`
	PlcTag    string   `yaml:"plc_tag"`
}

// PLCConfig describes one PLC endpoint and its tag mappings.
type PLCConfig struct {
	Name        string       `yaml:"name"`
	Address     string       `yaml:"address"`
	Port        int          `yaml:"port"`
	Micro800    bool         `yaml:"micro800"`
	Username    string       `yaml:"username,omitempty"`
	Password    string       `yaml:"password,omitempty"`
	SyncPeriod  float64      `yaml:"sync_period"`
	Timeout     float64      `yaml:"timeout"`
	TagMappings []TagMapping `yaml:"tag_mappings"`
}

// Config is the top-level bridge configuration.
type Config struct {
	Port                  int         `yaml:"port"`
	EnableEnipServer      bool        `yaml:"enable_enip_server"`
	TagNamespaceSeparator string      `yaml:"tag_namespace_separator"`
	PLCs                  []PLCConfig `yaml:"plcs"`
}

// Default returns a configuration with every default applied and no PLCs.
func Default() *Config {
	return &Config{
		Port:                  defaultPort,
		EnableEnipServer:      false,
		TagNamespaceSeparator: defaultSeparator,
	}
}

// Load reads, parses, defaults, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, bridgeerrors.NewConfigError(path, fmt.Errorf("read config file: %w", err))
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, bridgeerrors.NewConfigError(path, fmt.Errorf("parse YAML: %w", err))
	}

	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, bridgeerrors.NewConfigError(path, err)
	}

	return cfg, nil
}

// WriteDefault writes a default configuration to path, for first-run setup.
func WriteDefault(path string) error {
	return Save(Default(), path)
}

// Save writes cfg to path as YAML, for the config wizard and
// export-config.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.TagNamespaceSeparator == "" {
		cfg.TagNamespaceSeparator = defaultSeparator
	}
	for i := range cfg.PLCs {
		p := &cfg.PLCs[i]
		if p.Port == 0 {
			p.Port = defaultPLCPort
		}
		if p.SyncPeriod == 0 {
			p.SyncPeriod = defaultSyncPeriodSecs
		}
		if p.Timeout == 0 {
			p.Timeout = defaultTimeoutSecs
		}
		for j := range p.TagMappings {
			if p.TagMappings[j].Mode == "" {
				p.TagMappings[j].Mode = defaultSyncMode
			}
		}
	}
}

// Validate checks a config for structural correctness. It does not apply
// defaults; call applyDefaults (via Load) first.
func Validate(cfg *Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port %d out of range", cfg.Port)
	}
	if cfg.TagNamespaceSeparator == "" {
		return fmt.Errorf("tag_namespace_separator must not be empty")
	}

	seen := make(map[string]bool, len(cfg.PLCs))
	for i, p := range cfg.PLCs {
		if p.Name == "" {
			return fmt.Errorf("plcs[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("plcs[%d]: duplicate PLC name %q", i, p.Name)
		}
		seen[p.Name] = true

		if p.Address == "" {
			return fmt.Errorf("plcs[%d] (%s): address is required", i, p.Name)
		}
		if p.Port <= 0 || p.Port > 65535 {
			return fmt.Errorf("plcs[%d] (%s): port %d out of range", i, p.Name, p.Port)
		}
		if p.SyncPeriod <= 0 {
			return fmt.Errorf("plcs[%d] (%s): sync_period must be positive", i, p.Name)
		}
		if p.Timeout <= 0 {
			return fmt.Errorf("plcs[%d] (%s): timeout must be positive", i, p.Name)
		}

		for j, m := range p.TagMappings {
			if err := validateMode(m.Mode); err != nil {
				return fmt.Errorf("plcs[%d] (%s) tag_mappings[%d]: %w", i, p.Name, j, err)
			}
			if m.DooverTag == "" {
				return fmt.Errorf("plcs[%d] (%s) tag_mappings[%d]: doover_tag is required", i, p.Name, j)
			}
			if m.PlcTag == "" {
				return fmt.Errorf("plcs[%d] (%s) tag_mappings[%d]: plc_tag is required", i, p.Name, j)
			}
		}
	}

	return nil
}

func validateMode(m SyncMode) error {
	switch m {
	case SyncFromPLC, SyncToPLC, SyncPLCPreferred, SyncDooverPreferred:
		return nil
	default:
		return fmt.Errorf("unknown sync mode %q", m)
	}
}
