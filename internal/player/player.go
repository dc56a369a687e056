package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"noiseplayer/internal/config"
	"noiseplayer/internal/logging"
)

// ErrInit marks failures that happen before audio starts: a missing binary, a
// missing source file, or a player that dies within the startup grace window.
var ErrInit = errors.New("player failed to initialize")

const (
	defaultStartupGrace = time.Second
	stopWaitDelay       = 2 * time.Second
)

// Runner plays audio until the context is cancelled.
type Runner interface {
	RunForever(ctx context.Context, volume float64) error
}

// FFplay renders noise through an ffplay-compatible binary.
type FFplay struct {
	Binary string
	Color  string
	// Source, when set, is looped instead of generating noise.
	Source       string
	StartupGrace time.Duration
	logger       *slog.Logger
}

// NewFFplay builds a runner from player settings.
func NewFFplay(cfg *config.Config, logger *slog.Logger) *FFplay {
	p := &FFplay{
		Binary:       "ffplay",
		Color:        "brown",
		StartupGrace: defaultStartupGrace,
		logger:       logging.NewComponentLogger(logger, "player"),
	}
	if cfg != nil {
		p.Binary = cfg.PlayerBinary()
		p.Color = cfg.Player.Color
		p.Source = cfg.Player.Source
	}
	return p
}

// Args returns the player command line for volume.
func (p *FFplay) Args(volume float64) []string {
	args := []string{
		"-nodisp",
		"-hide_banner",
		"-loglevel", "error",
		"-volume", strconv.Itoa(VolumePercent(volume)),
	}
	if p.Source != "" {
		return append(args, "-loop", "0", p.Source)
	}
	return append(args, "-f", "lavfi", "-i", "anoisesrc=color="+p.Color)
}

// VolumePercent maps a linear volume to ffplay's 0-100 scale.
func VolumePercent(volume float64) int {
	if math.IsNaN(volume) {
		return 0
	}
	return int(math.Round(math.Min(math.Max(volume, 0), 1) * 100))
}

// RunForever starts the player and blocks until ctx is cancelled, returning
// nil in that case. There is no restart: an unexpected exit is returned as an
// error and the caller decides what to do.
func (p *FFplay) RunForever(ctx context.Context, volume float64) error {
	if ctx.Err() != nil {
		return nil
	}

	binary, err := exec.LookPath(p.Binary)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInit, err)
	}
	if p.Source != "" {
		if _, err := os.Stat(p.Source); err != nil {
			return fmt.Errorf("%w: source %v", ErrInit, err)
		}
	}

	args := p.Args(volume)
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Stderr = newLineLogger(p.logger)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = stopWaitDelay

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start %s: %v", ErrInit, binary, err)
	}
	p.logger.Info("player started",
		logging.String(logging.FieldEventType, "player_started"),
		logging.Int("player_pid", cmd.Process.Pid),
		logging.Float64("volume", volume),
		logging.Int("volume_percent", VolumePercent(volume)),
		logging.String("binary", binary),
	)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	grace := p.StartupGrace
	if grace <= 0 {
		grace = defaultStartupGrace
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case err := <-done:
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: player exited during startup: %s", ErrInit, exitDetail(err))
	case <-timer.C:
	}

	err = <-done
	if ctx.Err() != nil {
		p.logger.Info("player stopped", logging.String(logging.FieldEventType, "player_stopped"))
		return nil
	}
	return fmt.Errorf("player exited unexpectedly: %s", exitDetail(err))
}

func exitDetail(err error) string {
	if err == nil {
		return "exit status 0"
	}
	return err.Error()
}
