package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"noiseplayer/internal/config"
	"noiseplayer/internal/history"
	"noiseplayer/internal/logging"
)

// historyRetention bounds the lifecycle journal.
const historyRetention = 500

type commandContext struct {
	configFlag  *string
	pidFileFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag, pidFileFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		pidFileFlag: pidFileFlag,
	}
}

// ensureConfig loads settings once. A missing or broken file is not fatal:
// the defaults are used and the problem is reported as a warning.
func (c *commandContext) ensureConfig() *config.Config {
	c.configOnce.Do(func() {
		cfg, path, err := config.LoadOrDefault(c.configFlagValue())
		c.config = cfg
		c.configPath = path
		c.configErr = err
		if err != nil {
			logging.WarnWithContext(c.loggerFor(cfg), "config load failed; using defaults", "config_load_failed",
				logging.String("config_path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run `noiseplayer config validate`"),
				logging.Float64("volume", cfg.Volume),
			)
		}
	})
	return c.config
}

func (c *commandContext) configFlagValue() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// pidFile resolves the pid file: --pid-file, then paths.pid_file, then the default.
func (c *commandContext) pidFile() string {
	if c.pidFileFlag != nil {
		if flag := strings.TrimSpace(*c.pidFileFlag); flag != "" {
			if expanded, err := config.ExpandPath(flag); err == nil {
				return expanded
			}
			return flag
		}
	}
	if cfg := c.ensureConfig(); cfg != nil && cfg.Paths.PIDFile != "" {
		return cfg.Paths.PIDFile
	}
	return config.DefaultPIDFile()
}

func (c *commandContext) loggerValue() *slog.Logger {
	return c.loggerFor(c.ensureConfig())
}

func (c *commandContext) loggerFor(cfg *config.Config) *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

// recordEvent appends to the lifecycle journal. Failures only produce a warning.
func (c *commandContext) recordEvent(ctx context.Context, event history.Event) {
	cfg := c.ensureConfig()
	logger := c.loggerValue()
	if event.PIDFile == "" {
		event.PIDFile = c.pidFile()
	}

	recordCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	store, err := history.Open(recordCtx, cfg.HistoryPath())
	if err == nil {
		defer store.Close()
		if _, err = store.Record(recordCtx, event); err == nil {
			_, err = store.Prune(recordCtx, historyRetention)
		}
	}
	if err != nil {
		logging.WarnWithContext(logger, "lifecycle history not updated", "history_write_failed",
			logging.String("event", string(event.Kind)),
			logging.String("history_path", cfg.HistoryPath()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "`noiseplayer history` will miss this event"),
		)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
