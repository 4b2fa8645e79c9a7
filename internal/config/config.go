// Package config loads machine settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tagvm/internal/machine"
	"github.com/roach88/tagvm/internal/osstr"
)

// Environment variables that override file settings.
const (
	EnvTarget        = "TAGVM_TARGET"
	EnvHost          = "TAGVM_HOST"
	EnvIsolation     = "TAGVM_ISOLATION"
	EnvDiagnosticsDB = "TAGVM_DIAGNOSTICS_DB"
)

// DefaultTarget is the target used when neither file nor environment names one.
const DefaultTarget = "x86_64-linux"

// Config holds the settings a machine is built from.
type Config struct {
	Target        string `yaml:"target"`
	Host          string `yaml:"host"`
	Isolation     bool   `yaml:"isolation"`
	Seed          uint64 `yaml:"seed"`
	DiagnosticsDB string `yaml:"diagnostics_db"`
	MaxStackDepth int    `yaml:"max_stack_depth"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Target:        DefaultTarget,
		Host:          "native",
		Isolation:     true,
		MaxStackDepth: machine.DefaultMaxStackDepth,
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Target = env.Str(EnvTarget, c.Target)
	c.Host = env.Str(EnvHost, c.Host)
	c.DiagnosticsDB = env.Str(EnvDiagnosticsDB, c.DiagnosticsDB)
	if env.Has(EnvIsolation) {
		c.Isolation = env.Bool(EnvIsolation)
	}
}

// Validate checks values that cannot be caught by YAML decoding.
func (c Config) Validate() error {
	if c.Target == "" {
		return fmt.Errorf("config: target is required")
	}
	if _, err := osstr.ByName(c.Host); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.MaxStackDepth <= 0 {
		return fmt.Errorf("config: max_stack_depth must be positive, got %d", c.MaxStackDepth)
	}
	return nil
}

// MachineOptions translates the settings into machine options. The
// diagnostics sink is wired separately since it owns a database handle.
func (c Config) MachineOptions() ([]machine.Option, error) {
	host, err := osstr.ByName(c.Host)
	if err != nil {
		return nil, err
	}
	return []machine.Option{
		machine.WithHost(host),
		machine.WithCommunicate(!c.Isolation),
		machine.WithSeed(c.Seed),
		machine.WithMaxStackDepth(c.MaxStackDepth),
	}, nil
}
