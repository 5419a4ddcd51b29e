package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/btflow/internal/radio"
	"gopkg.in/yaml.v3"
)

// Radio backends.
const (
	BackendSim = "sim"
	BackendBLE = "ble"
)

// Config holds application configuration
type Config struct {
	LogLevel     string        `yaml:"log_level" default:"warn"`
	Backend      string        `yaml:"backend" default:"sim"` // sim, ble
	BusCapacity  int           `yaml:"bus_capacity" default:"64"`
	TimerTick    time.Duration `yaml:"timer_tick" default:"1s"`
	PowerTimeout time.Duration `yaml:"power_timeout" default:"10s"`

	Discovery DiscoveryConfig `yaml:"discovery"`
	Pairing   PairingConfig   `yaml:"pairing"`
	Sim       SimConfig       `yaml:"sim"`
}

// DiscoveryConfig holds discovery request settings.
type DiscoveryConfig struct {
	Timeout    int           `yaml:"timeout" default:"30"` // seconds
	Prefix     string        `yaml:"prefix"`
	MinSignal  int           `yaml:"min_signal"`
	ScanWindow time.Duration `yaml:"scan_window" default:"10s"` // length of one BLE scan cycle
}

// PairingConfig holds pairing request settings.
type PairingConfig struct {
	Timeout int `yaml:"timeout" default:"20"` // seconds
}

// SimConfig describes the simulated adapter.
type SimConfig struct {
	Cycle     time.Duration     `yaml:"cycle" default:"2s"`
	Enabled   bool              `yaml:"enabled"`
	Devices   []radio.SimDevice `yaml:"devices"`
	Bonded    []string          `yaml:"bonded"`
	Behaviors map[string]string `yaml:"behaviors"` // address -> accept, reject, hold, decline, drop
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "btflow")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns default configuration values
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)

	cfg.Sim.Devices = []radio.SimDevice{
		{Address: "00:1A:7D:DA:71:01", Name: "PAX-Terminal-01", RSSI: radio.Signal(-45)},
		{Address: "00:1A:7D:DA:71:02", Name: "MP-12345678", RSSI: radio.Signal(-62)},
		{Address: "00:1A:7D:DA:71:03", Name: "PAX-Terminal-02", RSSI: radio.Signal(-78)},
	}
	return cfg
}

// Load reads and parses a YAML config file. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when given. Without a path it loads the default config file
// if one exists and falls back to defaults otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if _, err := os.Stat(DefaultConfigPath()); err == nil {
		return Load(DefaultConfigPath())
	}
	return Default(), nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	switch c.Backend {
	case BackendSim, BackendBLE:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendSim, BackendBLE, c.Backend)
	}

	if c.BusCapacity <= 0 {
		return fmt.Errorf("bus_capacity must be > 0")
	}
	if c.TimerTick <= 0 {
		return fmt.Errorf("timer_tick must be > 0")
	}
	if c.PowerTimeout <= 0 {
		return fmt.Errorf("power_timeout must be > 0")
	}
	if c.Discovery.Timeout <= 0 {
		return fmt.Errorf("discovery.timeout must be > 0")
	}
	if c.Discovery.MinSignal < 0 || c.Discovery.MinSignal > 100 {
		return fmt.Errorf("discovery.min_signal must be within 0..100, got %d", c.Discovery.MinSignal)
	}
	if c.Pairing.Timeout <= 0 {
		return fmt.Errorf("pairing.timeout must be > 0")
	}

	for addr, name := range c.Sim.Behaviors {
		if _, err := radio.ParseBondBehavior(name); err != nil {
			return fmt.Errorf("sim.behaviors[%s]: %w", addr, err)
		}
	}

	return nil
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

// SimOptions translates the sim section into simulator options.
func (c *Config) SimOptions() []radio.SimOption {
	opts := []radio.SimOption{
		radio.WithCycle(c.Sim.Cycle),
		radio.WithEnabled(c.Sim.Enabled),
		radio.WithNearby(c.Sim.Devices...),
		radio.WithBonded(c.Sim.Bonded...),
	}
	for addr, name := range c.Sim.Behaviors {
		if b, err := radio.ParseBondBehavior(name); err == nil {
			opts = append(opts, radio.WithBondBehavior(addr, b))
		}
	}
	return opts
}
