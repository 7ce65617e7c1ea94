package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling from strings.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration strings like "5s" or "1m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return fmt.Errorf("duration value node is nil")
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}
	if raw == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// LokiConfig configures optional Loki integration for logging.
type LokiConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Labels  map[string]string `yaml:"labels"`
}

// LoggingConfig encapsulates runtime logging options.
type LoggingConfig struct {
	Level  string     `yaml:"level"`
	Format string     `yaml:"format"`
	Loki   LokiConfig `yaml:"loki"`
}

// TelemetryConfig enables the metrics collector.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"`
}

// Config is the root configuration structure for the relay.
type Config struct {
	Port      int             `yaml:"port"`
	Keepalive Duration        `yaml:"keepalive"`
	Sweep     Duration        `yaml:"sweep"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DefaultPort is used when neither the config file nor the PORT
// environment variable supplies a usable value.
const DefaultPort = 8080

// Load reads and decodes the configuration file from disk.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyEnv()
	return &cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. Used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	return cfg
}

// applyEnv overlays environment variables onto the configuration. The
// PORT variable wins over the file; invalid values are ignored.
func (c *Config) applyEnv() {
	if raw, ok := os.LookupEnv("PORT"); ok {
		if port, err := strconv.Atoi(raw); err == nil && port > 0 && port < 65536 {
			c.Port = port
		}
	}
}

// ListenAddr returns the TCP listen address for the relay server.
func (c *Config) ListenAddr() string {
	port := DefaultPort
	if c != nil && c.Port > 0 && c.Port < 65536 {
		port = c.Port
	}
	return fmt.Sprintf(":%d", port)
}

// KeepaliveInterval returns the per-connection ping period.
func (c *Config) KeepaliveInterval() time.Duration {
	if c == nil || c.Keepalive.Duration <= 0 {
		return 30 * time.Second
	}
	return c.Keepalive.Duration
}

// SweepInterval returns the waiting queue maintenance period.
func (c *Config) SweepInterval() time.Duration {
	if c == nil || c.Sweep.Duration <= 0 {
		return time.Minute
	}
	return c.Sweep.Duration
}
