// Package cliconfig holds the proxy's operator-facing configuration:
// defaults, validation, and the file/env/flag layering used by the cabbage
// command. Precedence, lowest to highest: defaults, config file, CABBAGE_*
// environment variables, command-line flags.
package cliconfig

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds CLI configuration for the cabbage proxy.
type Config struct {
	// Listen is the host:port the proxy accepts client connections on.
	Listen string

	// Target is the host:port of the backing key-value server. It is
	// dialed fresh for every accepted client connection.
	Target string

	// LogLevel is the zerolog level name applied at startup.
	LogLevel string

	// WatchConfig enables hot-reloading LogLevel from the config file.
	WatchConfig bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Listen:   "127.0.0.1:5000",
		Target:   "127.0.0.1:6379",
		LogLevel: "info",
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}

	if c.Target == "" {
		return fmt.Errorf("target address is required")
	}
	if _, _, err := net.SplitHostPort(c.Target); err != nil {
		return fmt.Errorf("invalid target address %q: %w", c.Target, err)
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}

	return nil
}

// Level returns the parsed zerolog level. Call Validate first; an
// unparseable level falls back to info here.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

var logger zerolog.Logger

func init() {
	logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// Logger returns the package console logger used by the cabbage command.
func Logger() zerolog.Logger {
	return logger
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't been
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false. Used for environment
// variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
