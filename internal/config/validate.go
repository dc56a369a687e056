package config

import (
	"errors"
	"fmt"
	"strings"
)

var noiseColors = map[string]struct{}{
	"white":  {},
	"pink":   {},
	"brown":  {},
	"blue":   {},
	"violet": {},
	"velvet": {},
}

// Validate ensures the configuration is usable. Volume is deliberately left
// unchecked; the player clamps it when building its command line.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePlayer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.PIDFile) == "" {
		return errors.New("paths.pid_file must be set")
	}
	if strings.HasSuffix(c.Paths.PIDFile, "/") {
		return fmt.Errorf("paths.pid_file %q must name a file", c.Paths.PIDFile)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validatePlayer() error {
	if c.Player.Binary == "" {
		return errors.New("player.binary must be set")
	}
	if c.Player.Source == "" {
		if _, ok := noiseColors[c.Player.Color]; !ok {
			return fmt.Errorf("player.color: unsupported value %q (expected white, pink, brown, blue, violet or velvet)", c.Player.Color)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
