package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizePlayer(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.PIDFile) == "" {
		c.Paths.PIDFile = DefaultPIDFile()
	}
	if c.Paths.PIDFile, err = expandPath(strings.TrimSpace(c.Paths.PIDFile)); err != nil {
		return fmt.Errorf("paths.pid_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePlayer() error {
	c.Player.Binary = strings.TrimSpace(c.Player.Binary)
	if c.Player.Binary == "" {
		c.Player.Binary = defaultPlayerBinary
	}
	c.Player.Color = strings.ToLower(strings.TrimSpace(c.Player.Color))
	if c.Player.Color == "" {
		c.Player.Color = defaultNoiseColor
	}
	source := strings.TrimSpace(c.Player.Source)
	if source == "" {
		c.Player.Source = ""
		return nil
	}
	expanded, err := expandPath(source)
	if err != nil {
		return fmt.Errorf("player.source: %w", err)
	}
	c.Player.Source = expanded
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
