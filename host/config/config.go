// Package config loads the host tool configuration file.
package config

import (
	"io/ioutil"
	"time"

	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"
)

// Config is the host tool configuration. Command line flags override it.
type Config struct {
	// Device is the serial port of the bridge board
	Device string `yaml:"device"`

	// Baud is the serial rate
	Baud int `yaml:"baud"`

	// ReadTimeout bounds how long a command response may take
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// BusyTimeout bounds how long the flash may stay busy after an erase
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// ChunkSize is the largest command body, at most 128
	ChunkSize int `yaml:"chunk_size"`

	// Erase erases the flash before programming
	Erase bool `yaml:"erase"`

	// Verify reads the flash back after programming
	Verify bool `yaml:"verify"`

	// Sim configures the in-process simulator used with --sim
	Sim SimConfig `yaml:"sim"`
}

// SimConfig describes the simulated flash
type SimConfig struct {
	FlashSize int `yaml:"flash_size"`
	BusyPolls int `yaml:"busy_polls"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Device:      "/dev/ttyACM0",
		Baud:        1000000,
		ReadTimeout: 5 * time.Second,
		BusyTimeout: 60 * time.Second,
		ChunkSize:   128,
		Erase:       true,
		Verify:      true,
		Sim: SimConfig{
			FlashSize: 128 * 1024,
			BusyPolls: 1,
		},
	}
}

// Parse decodes YAML over the defaults. Unknown keys are an error.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Annotatef(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

// Load reads the configuration file at path
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "read config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Annotatef(err, "%s", path)
	}
	return cfg, nil
}

// Validate checks that values are in range
func (c *Config) Validate() error {
	if c.Baud <= 0 {
		return errors.Errorf("baud must be positive, got %d", c.Baud)
	}
	if c.ChunkSize < 2 || c.ChunkSize > 128 {
		return errors.Errorf("chunk_size must be 2..128, got %d", c.ChunkSize)
	}
	if c.Sim.FlashSize <= 0 {
		return errors.Errorf("sim.flash_size must be positive, got %d", c.Sim.FlashSize)
	}
	return nil
}

// Marshal encodes the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	return data, errors.Trace(err)
}
