// Package config loads the stagehand runtime configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/driver"
	"github.com/aretw0/stagehand/pkg/typeref"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config is the root configuration.
type Config struct {
	LogLevel string                 `mapstructure:"log_level"`
	Audit    bool                   `mapstructure:"audit"` // log every transition
	Driver   DriverConfig           `mapstructure:"driver"`
	Store    StoreConfig            `mapstructure:"store"`
	HTTP     HTTPConfig             `mapstructure:"http"`
	Machines []domain.MachineConfig `mapstructure:"machines"`

	// MachinesDir is a directory of machine documents seeded alongside
	// Machines. Entries in Machines win on duplicate IDs.
	MachinesDir string `mapstructure:"machines_dir"`
}

type DriverConfig struct {
	FrameInterval time.Duration `mapstructure:"frame_interval"`
	FixedStep     time.Duration `mapstructure:"fixed_step"`
	MaxFixedSteps int           `mapstructure:"max_fixed_steps"`
}

type StoreConfig struct {
	Kind   string      `mapstructure:"kind"`
	Path   string      `mapstructure:"path"`
	Format string      `mapstructure:"format"`
	Redis  RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns a configuration that runs in memory with no machines.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Driver: DriverConfig{
			FrameInterval: driver.DefaultFrameInterval,
			FixedStep:     driver.DefaultFixedStep,
			MaxFixedSteps: driver.DefaultMaxFixedSteps,
		},
		Store: StoreConfig{
			Kind:   StoreMemory,
			Path:   ".stagehand/machines",
			Format: "json",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// Load reads a YAML file on top of Default. A missing path yields Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      cfg,
		ErrorUnused: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			typeref.DecodeHook(),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if c.Driver.FrameInterval <= 0 {
		errs = append(errs, fmt.Errorf("driver.frame_interval must be positive, got %s", c.Driver.FrameInterval))
	}
	if c.Driver.FixedStep <= 0 {
		errs = append(errs, fmt.Errorf("driver.fixed_step must be positive, got %s", c.Driver.FixedStep))
	}
	if c.Driver.MaxFixedSteps <= 0 {
		errs = append(errs, fmt.Errorf("driver.max_fixed_steps must be positive, got %d", c.Driver.MaxFixedSteps))
	}

	switch c.Store.Kind {
	case StoreMemory:
	case StoreFile:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the file store"))
		}
		if c.Store.Format != "json" && c.Store.Format != "yaml" {
			errs = append(errs, fmt.Errorf("store.format must be json or yaml, got %q", c.Store.Format))
		}
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("store.redis.addr is required for the redis store"))
		}
		if c.Store.Redis.TTL < 0 {
			errs = append(errs, errors.New("store.redis.ttl cannot be negative"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.kind must be one of memory, file, redis, got %q", c.Store.Kind))
	}

	seen := make(map[string]bool, len(c.Machines))
	for i, m := range c.Machines {
		switch {
		case m.ID == "":
			errs = append(errs, fmt.Errorf("machines[%d].id is required", i))
		case seen[m.ID]:
			errs = append(errs, fmt.Errorf("machines[%d].id %q is duplicated", i, m.ID))
		}
		seen[m.ID] = true
	}

	return errors.Join(errs...)
}
