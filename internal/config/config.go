// Package config loads cycletee settings from defaults, an optional YAML
// file and the environment. Command-line flags are applied on top by the
// command itself.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"

	"github.com/Geun-Oh/cycletee/internal/buffer"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "CYCLETEE"

// DefaultBufferSize matches the stdio BUFSIZ of common platforms.
const DefaultBufferSize = buffer.DefaultSize

// Config holds all cycletee configuration.
type Config struct {
	Append           bool      `yaml:"append" envconfig:"APPEND"`
	IgnoreInterrupts bool      `yaml:"ignore_interrupts" envconfig:"IGNORE_INTERRUPTS"`
	NoStdout         bool      `yaml:"no_stdout" envconfig:"NO_STDOUT"`
	BufferSize       int       `yaml:"buffer_size" envconfig:"BUFFER_SIZE"`
	Stats            bool      `yaml:"stats" envconfig:"STATS"`
	MetricsFile      string    `yaml:"metrics_file" envconfig:"METRICS_FILE"`
	Log              LogConfig `yaml:"log" envconfig:"LOG"`
}

// LogConfig holds diagnostic logging configuration.
type LogConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		BufferSize: DefaultBufferSize,
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	// Fields carry no default tags, so unset variables leave them alone.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.BufferSize <= 0 {
		return fmt.Errorf("config: buffer size must be positive, got %d", c.BufferSize)
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("config: log level: %w", err)
	}
	return nil
}
