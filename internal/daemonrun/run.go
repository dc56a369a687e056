// Package daemonrun is the body of the detached daemon process.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"noiseplayer/internal/logging"
	"noiseplayer/internal/pidlock"
	"noiseplayer/internal/player"
)

// Options configures the daemon side of a spawn.
type Options struct {
	PIDFile string
	Volume  float64
	Runner  player.Runner
	Logger  *slog.Logger
	// LockFD is the inherited descriptor carrying the pid file lock.
	LockFD uintptr
	// Ready receives the acknowledgement once the pid is recorded. It is closed
	// afterwards when it implements io.Closer.
	Ready io.Writer
	// ReadyAck is the acknowledgement text.
	ReadyAck string
}

// Run adopts the inherited lock, records the current pid and plays until
// SIGINT or SIGTERM. Nothing is played unless the pid write succeeded.
func Run(cmdCtx context.Context, opts Options) error {
	if opts.Runner == nil {
		return errors.New("player runner is required")
	}
	logger := logging.NewComponentLogger(opts.Logger, "daemon")

	guard, err := pidlock.Adopt(opts.LockFD, opts.PIDFile)
	if err != nil {
		return fmt.Errorf("adopt pid file lock: %w", err)
	}
	defer func() {
		if err := guard.Release(); err != nil {
			logger.Debug("release pid file lock", logging.Error(err))
		}
	}()

	pid := os.Getpid()
	if err := guard.WritePID(pid); err != nil {
		return err
	}
	if err := acknowledge(opts.Ready, opts.ReadyAck); err != nil {
		// The launcher only loses its confirmation; the pid is already on disk.
		logging.WarnWithContext(logger, "readiness acknowledgement failed", "daemon_ready_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "launcher reports startup as unconfirmed"),
		)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("noiseplayer daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.PID(pid),
		logging.String(logging.FieldPIDFile, opts.PIDFile),
		logging.Float64("volume", opts.Volume),
	)

	if err := opts.Runner.RunForever(signalCtx, opts.Volume); err != nil {
		logging.ErrorWithContext(logger, "player stopped with error", "daemon_player_failed",
			logging.Error(err),
			logging.Bool("init_failure", errors.Is(err, player.ErrInit)),
			logging.String(logging.FieldErrorHint, "run `noiseplayer status` to check the player binary"),
		)
		return err
	}

	logger.Info("noiseplayer daemon shutting down", logging.String(logging.FieldEventType, "daemon_stopped"))
	return nil
}

func acknowledge(w io.Writer, ack string) error {
	if w == nil {
		return nil
	}
	_, writeErr := io.WriteString(w, ack)
	var closeErr error
	if closer, ok := w.(io.Closer); ok {
		closeErr = closer.Close()
	}
	return errors.Join(writeErr, closeErr)
}
