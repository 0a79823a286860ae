package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	LogLevel  string          `yaml:"log_level" default:"info"`
	Device    DeviceConfig    `yaml:"device"`
	Protocol  ProtocolConfig  `yaml:"protocol"`
	Throttle  ThrottleConfig  `yaml:"throttle"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Datalog   DatalogConfig   `yaml:"datalog"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type DeviceConfig struct {
	// Address of the controller; empty means search for the first serial device
	Address        string        `yaml:"address"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`
	ScanTimeout    time.Duration `yaml:"scan_timeout" default:"10s"`
}

type ProtocolConfig struct {
	// Framing is "angle" (<...>) or "legacy" (\r terminated)
	Framing string `yaml:"framing" default:"angle"`
	// MaxBuffer of 0 selects the framing default
	MaxBuffer int `yaml:"max_buffer" default:"0"`
}

type ThrottleConfig struct {
	Interval time.Duration `yaml:"interval" default:"400ms"`
}

// DiscoveryConfig lists extra UUIDs tried before the built-in serial tables
type DiscoveryConfig struct {
	Services []string `yaml:"services"`
	TX       []string `yaml:"tx"`
	RX       []string `yaml:"rx"`
}

type DatalogConfig struct {
	// Path of the snapshot log; empty disables recording
	Path     string `yaml:"path"`
	Format   string `yaml:"format" default:"jsonl"`
	Capacity int    `yaml:"capacity" default:"600"`
}

type MetricsConfig struct {
	// Addr to serve Prometheus metrics on; empty disables the endpoint
	Addr string `yaml:"addr"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := cfg.Decode(data); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode applies YAML data over c and validates the result
func (c *Config) Decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return c.Validate()
}

// Validate rejects values the rest of the program cannot work with
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch c.Protocol.Framing {
	case "angle", "legacy":
	default:
		return fmt.Errorf("protocol.framing: %q is not angle or legacy", c.Protocol.Framing)
	}
	if c.Protocol.MaxBuffer < 0 {
		return fmt.Errorf("protocol.max_buffer: must not be negative")
	}
	if c.Throttle.Interval <= 0 {
		return fmt.Errorf("throttle.interval: must be positive")
	}
	if c.Device.ConnectTimeout <= 0 || c.Device.ScanTimeout <= 0 {
		return fmt.Errorf("device timeouts must be positive")
	}
	switch c.Datalog.Format {
	case "jsonl", "csv":
	default:
		return fmt.Errorf("datalog.format: %q is not jsonl or csv", c.Datalog.Format)
	}
	if c.Datalog.Capacity <= 0 {
		return fmt.Errorf("datalog.capacity: must be positive")
	}
	return nil
}

// Level returns the parsed log level, falling back to info
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
