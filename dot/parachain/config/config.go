// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package config holds the configuration of the parachain subsystems, read from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/ChainSafe/parachain-backing/internal/log"
	"github.com/ChainSafe/parachain-backing/lib/common"
	"github.com/go-playground/validator/v10"
	"github.com/naoina/toml"
)

const (
	defaultLogLevel                = "info"
	defaultValidationCodeCacheSize = 64
	defaultBasePath                = "./parachain-data"
	defaultKeepUnavailableFor      = time.Hour
	defaultPruningInterval         = 5 * time.Minute
	defaultMetricsAddress          = "localhost:9876"
	defaultPprofAddress            = "localhost:6060"
)

var errInvalidConfig = errors.New("invalid config")

// Config is the configuration of the parachain subsystems.
type Config struct {
	Log               LogConfig               `toml:"log"`
	Chain             ChainConfig             `toml:"chain"`
	Backing           BackingConfig           `toml:"backing"`
	AvailabilityStore AvailabilityStoreConfig `toml:"availability-store"`
	Metrics           MetricsConfig           `toml:"metrics"`
	Pprof             PprofConfig             `toml:"pprof"`
}

// LogConfig holds the log levels, as accepted by log.ParseLevel.
type LogConfig struct {
	// Level is the level of every logger without a level of its own.
	Level string `toml:"level" validate:"loglevel"`
	// Backing is the level of the candidate backing subsystem.
	Backing string `toml:"backing" validate:"omitempty,loglevel"`
}

// ChainConfig pins the relay chain the subsystems run on.
type ChainConfig struct {
	// GenesisHash is checked against the genesis of the relay chain when set.
	GenesisHash common.Hash `toml:"genesis-hash" validate:"omitempty,len=32"`
}

type BackingConfig struct {
	ValidationCodeCacheSize int `toml:"validation-code-cache-size" validate:"gte=1"`
}

type AvailabilityStoreConfig struct {
	// BasePath is the directory of the database, ignored when InMemory is set.
	BasePath           string   `toml:"base-path" validate:"required_without=InMemory"`
	InMemory           bool     `toml:"in-memory"`
	KeepUnavailableFor Duration `toml:"keep-unavailable-for" validate:"gt=0"`
	PruningInterval    Duration `toml:"pruning-interval" validate:"gt=0"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address" validate:"required_if=Enabled true,omitempty,hostname_port"`
}

// PprofConfig configures the pprof http server.
type PprofConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address" validate:"required_if=Enabled true,omitempty,hostname_port"`
	// BlockProfileRate is passed to runtime.SetBlockProfileRate, 0 disables block profiling.
	BlockProfileRate int `toml:"block-profile-rate" validate:"gte=0"`
	// MutexProfileRate is passed to runtime.SetMutexProfileFraction, 0 disables mutex profiling.
	MutexProfileRate int `toml:"mutex-profile-rate" validate:"gte=0"`
}

// Duration is a time.Duration written as a string such as "1h30m" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration: %w", err)
	}
	d.Duration = duration
	return nil
}

// MarshalText formats the duration as a string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration with every field set to its default value.
func Default() Config {
	var cfg Config
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets the default value of every field left unset.
func (c *Config) SetDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}

	if c.Backing.ValidationCodeCacheSize == 0 {
		c.Backing.ValidationCodeCacheSize = defaultValidationCodeCacheSize
	}

	if c.AvailabilityStore.BasePath == "" && !c.AvailabilityStore.InMemory {
		c.AvailabilityStore.BasePath = defaultBasePath
	}
	if c.AvailabilityStore.KeepUnavailableFor.Duration == 0 {
		c.AvailabilityStore.KeepUnavailableFor.Duration = defaultKeepUnavailableFor
	}
	if c.AvailabilityStore.PruningInterval.Duration == 0 {
		c.AvailabilityStore.PruningInterval.Duration = defaultPruningInterval
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		c.Metrics.Address = defaultMetricsAddress
	}

	if c.Pprof.Enabled && c.Pprof.Address == "" {
		c.Pprof.Address = defaultPprofAddress
	}
}

// Validate checks the values of the configuration.
func (c Config) Validate() error {
	validate := validator.New()
	validate.RegisterCustomTypeFunc(common.HashValidator, common.Hash{})
	validate.RegisterCustomTypeFunc(durationValidator, Duration{})

	if err := validate.RegisterValidation("loglevel", isLogLevel); err != nil {
		return fmt.Errorf("registering log level validation: %w", err)
	}

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", errInvalidConfig, err)
	}
	return nil
}

// Load reads the configuration from a TOML file, sets the defaults of the fields left unset
// and validates it.
func Load(path string) (*Config, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML data, sets the defaults of the fields left unset and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding toml: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Marshal encodes the configuration to TOML.
func Marshal(cfg Config) ([]byte, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding toml: %w", err)
	}
	return data, nil
}

// Export encodes the configuration to TOML and writes it to the file at path.
func Export(cfg Config, path string) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// LogLevel is the parsed global log level.
func (c LogConfig) LogLevel() (log.Level, error) {
	return log.ParseLevel(c.Level)
}

// BackingLogLevel is the parsed log level of the backing subsystem, falling back to the
// global level.
func (c LogConfig) BackingLogLevel() (log.Level, error) {
	if c.Backing == "" {
		return c.LogLevel()
	}
	return log.ParseLevel(c.Backing)
}

func isLogLevel(fl validator.FieldLevel) bool {
	_, err := log.ParseLevel(fl.Field().String())
	return err == nil
}

func durationValidator(field reflect.Value) any {
	if duration, ok := field.Interface().(Duration); ok {
		return int64(duration.Duration)
	}
	return nil
}
