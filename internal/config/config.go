// Package config manages configuration for the sluice tooling. Configuration
// is TOML with {{ .ENV.VAR }} template expansion from the environment and an
// optional .env file. The file format version is gated by a semver range.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sluiceio/sluice/internal/common/validation"
	"github.com/sluiceio/sluice/pkg/stream"
)

// StreamConfig holds default stream parameters used when a stream is created
// without explicit settings.
type StreamConfig struct {
	DefaultCapacity int    `toml:"default_capacity" validate:"omitempty,gt=0"` // buffer capacity
	TickInterval    string `toml:"tick_interval"`                              // base scheduling interval
}

// GetTickInterval returns the tick interval as time.Duration.
func (s *StreamConfig) GetTickInterval() (time.Duration, error) {
	return ParseDuration(s.TickInterval)
}

// GetTickIntervalOrDefault returns the tick interval as time.Duration
// or panics if the value is invalid.
func (s *StreamConfig) GetTickIntervalOrDefault() time.Duration {
	duration, err := s.GetTickInterval()
	if err != nil {
		panic(fmt.Sprintf("invalid tick interval: %v", err))
	}
	return duration
}

// JournalConfig holds event journal related configuration.
type JournalConfig struct {
	Dir           string `toml:"dir"`                                        // directory for journal files
	Compress      bool   `toml:"compress"`                                   // whether exports are Snappy compressed
	FlushInterval int    `toml:"flush_interval" validate:"omitempty,gt=0"`   // entries buffered before a flush
	MaxLineSize   int    `toml:"max_line_size" validate:"omitempty,gte=1024"` // verify scanner line limit in bytes
}

// GetPath returns the journal directory, creating it if necessary.
func (j *JournalConfig) GetPath() string {
	if err := os.MkdirAll(j.Dir, 0700); err != nil {
		panic(fmt.Sprintf("error creating journal directory: %v", err))
	}
	return j.Dir
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level string `toml:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic"`
}

// ConfigParam holds all configuration parameters for the sluice tooling
type ConfigParam struct {
	// Configuration version
	FormatVersion string `toml:"format_version"` // Version of this configuration file format

	// Server configuration
	ServerHostName string `toml:"server_hostname"` // Hostname for the inspection server
	ServerPort     string `toml:"server_port" validate:"required,numeric"`
	HandleCORS     bool   `toml:"handle_cors"`     // Whether to handle CORS
	RequestTimeout string `toml:"request_timeout"` // Per-request handling timeout

	// Stream defaults
	Stream StreamConfig `toml:"stream"`

	// Event journal configuration
	Journal JournalConfig `toml:"journal"`

	// Log configuration
	Log LogConfig `toml:"log"`
}

var cfg *ConfigParam

// Config returns the current configuration
func Config() *ConfigParam {
	return cfg
}

// GetURL returns the base URL of the inspection server.
func GetURL() string {
	return "http://" + Config().ServerHostName + ":" + Config().ServerPort
}

// GetRequestTimeout returns the request timeout as time.Duration.
func (c *ConfigParam) GetRequestTimeout() (time.Duration, error) {
	return ParseDuration(c.RequestTimeout)
}

// GetRequestTimeoutOrDefault returns the request timeout as time.Duration
// or panics if the value is invalid.
func (c *ConfigParam) GetRequestTimeoutOrDefault() time.Duration {
	duration, err := c.GetRequestTimeout()
	if err != nil {
		panic(fmt.Sprintf("invalid request timeout: %v", err))
	}
	return duration
}

// ParseDuration parses a duration string. Beyond the standard library units it
// accepts "<number>d" for days and "<number>y" for years.
func ParseDuration(input string) (time.Duration, error) {
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid input format")
	}

	unit := input[len(input)-1:]
	valueStr := input[:len(input)-1]

	switch unit {
	case "d", "y":
		value, err := strconv.Atoi(valueStr)
		if err != nil {
			return 0, fmt.Errorf("invalid number: %s", err)
		}
		if unit == "d" {
			return time.Duration(value) * 24 * time.Hour, nil
		}
		// Assuming 1 year = 365 days for simplicity
		return time.Duration(value) * 365 * 24 * time.Hour, nil
	default:
		return time.ParseDuration(input)
	}
}

// ValidateConfig checks if all required configuration values are present and
// valid, filling in defaults for omitted values.
func ValidateConfig(cfg *ConfigParam) error {
	// Check if the config file format version is supported
	if !isFormatSupported(cfg.FormatVersion) {
		return fmt.Errorf("unsupported config file format version: %s", cfg.FormatVersion)
	}

	// Server defaults
	if cfg.ServerHostName == "" {
		cfg.ServerHostName = "127.0.0.1"
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8636"
	}
	if cfg.RequestTimeout == "" {
		cfg.RequestTimeout = "30s"
	}
	if _, err := ParseDuration(cfg.RequestTimeout); err != nil {
		return fmt.Errorf("invalid request_timeout: %v", err)
	}

	// Stream defaults
	if cfg.Stream.DefaultCapacity == 0 {
		cfg.Stream.DefaultCapacity = stream.DefaultCapacity
	}
	if cfg.Stream.TickInterval == "" {
		cfg.Stream.TickInterval = stream.DefaultTickInterval.String()
	}
	if _, err := ParseDuration(cfg.Stream.TickInterval); err != nil {
		return fmt.Errorf("invalid stream.tick_interval: %v", err)
	}

	// Journal defaults
	if cfg.Journal.Dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error getting user home directory: %v", err)
		}
		cfg.Journal.Dir = filepath.Join(homeDir, ".sluice", "journal")
	}
	if err := os.MkdirAll(cfg.Journal.Dir, 0700); err != nil {
		return fmt.Errorf("error creating journal directory: %v", err)
	}
	if cfg.Journal.FlushInterval == 0 {
		cfg.Journal.FlushInterval = 16
	}
	if cfg.Journal.MaxLineSize == 0 {
		cfg.Journal.MaxLineSize = 1024 * 1024
	}

	// Log defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if err := validation.V().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	return nil
}

// LoadConfig loads configuration from a file
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("config filename is required")
	}

	// Read and parse the config file
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	expanded, err := ExpandEnv(content)
	if err != nil {
		return fmt.Errorf("error expanding config file: %v", err)
	}

	c := &ConfigParam{}
	if _, err := toml.Decode(string(expanded), c); err != nil {
		return fmt.Errorf("error parsing config file: %v", err)
	}

	// Validate the configuration
	if err := ValidateConfig(c); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	cfg = c
	return nil
}

// LoadDefault installs a fully defaulted configuration. Used by commands that
// run without a config file.
func LoadDefault() error {
	c := &ConfigParam{FormatVersion: ConfigFormatVersion}
	if err := ValidateConfig(c); err != nil {
		return err
	}
	cfg = c
	return nil
}

// ConfigFormatVersion is the current version of the configuration file format
const ConfigFormatVersion = "0.1.0"
