// Package config provides configuration management for the validator
// process: where the policy sources live, how diagnostics are logged,
// whether decision auditing is enabled, and the optional HTTP listener.
package config

import (
	"fmt"
	"time"

	"github.com/vyrodovalexey/nacmval/internal/audit"
)

// Config holds all configuration settings for the validator process.
type Config struct {
	// Sources configures where policy source documents are loaded from.
	Sources SourcesConfig `yaml:"sources" json:"sources"`

	// Logging configures process diagnostics.
	Logging LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty"`

	// Audit configures decision audit logging.
	Audit audit.Config `yaml:"audit,omitempty" json:"audit,omitempty"`

	// Server configures the optional HTTP decision endpoint.
	Server ServerConfig `yaml:"server,omitempty" json:"server,omitempty"`
}

// SourcesConfig configures policy source loading.
type SourcesConfig struct {
	// Dir is a directory of .xml sources, loaded in alphabetical
	// filename order.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`

	// Files is an explicit ordered list of source files. Mutually
	// exclusive with Dir.
	Files []string `yaml:"files,omitempty" json:"files,omitempty"`

	// Watch enables hot reload of the source directory while serving.
	Watch bool `yaml:"watch,omitempty" json:"watch,omitempty"`
}

// LoggingConfig configures process diagnostics.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level,omitempty" json:"level,omitempty"`

	// Format is the log encoding (json, console).
	Format string `yaml:"format,omitempty" json:"format,omitempty"`

	// Output is the log destination (stdout, stderr).
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// ServerConfig configures the HTTP decision endpoint.
type ServerConfig struct {
	// Listen is the listen address, e.g. ":8080". Empty disables the
	// server.
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`

	// MetricsPath is the prometheus scrape path.
	MetricsPath string `yaml:"metricsPath,omitempty" json:"metricsPath,omitempty"`

	// ReadTimeout bounds request reading.
	ReadTimeout time.Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`

	// WriteTimeout bounds response writing.
	WriteTimeout time.Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Audit: audit.Config{
			Enabled: false,
			Output:  "stderr",
		},
		Server: ServerConfig{
			MetricsPath:     "/metrics",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Sources.Dir != "" && len(c.Sources.Files) > 0 {
		return fmt.Errorf("sources.dir and sources.files are mutually exclusive")
	}
	if c.Sources.Watch && c.Sources.Dir == "" {
		return fmt.Errorf("sources.watch requires sources.dir")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid logging.format %q", c.Logging.Format)
	}

	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}

	return nil
}
