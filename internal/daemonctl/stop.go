package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"noiseplayer/internal/logging"
	"noiseplayer/internal/pidlock"
)

// ErrNotRunning indicates there is no pid file, so there is nothing to stop.
var ErrNotRunning = errors.New("daemon not running")

// Signaler delivers a signal to a pid.
type Signaler func(pid int, sig syscall.Signal) error

// StopOutcome describes what happened to the termination request.
type StopOutcome string

const (
	OutcomeSignalled      StopOutcome = "signalled"
	OutcomeAlreadyGone    StopOutcome = "already_gone"
	OutcomeDeliveryFailed StopOutcome = "delivery_failed"
)

// StopOptions configures a termination request.
type StopOptions struct {
	PIDFile string
	// Signal defaults to SIGTERM.
	Signal   syscall.Signal
	Signaler Signaler
	Logger   *slog.Logger
}

// StopResult captures the outcome of Stop.
type StopResult struct {
	PID     int
	Outcome StopOutcome
	// Err is the delivery error when Outcome is OutcomeDeliveryFailed.
	Err error
}

// Stop reads the recorded pid and asks that process to terminate. It never
// waits for the process to exit and never touches the pid file.
//
// A missing file returns ErrNotRunning. Unparseable content returns an error
// wrapping pidlock.ErrCorruptPID and nothing is signalled. A failed delivery is
// reported in the result, not as an error.
func Stop(opts StopOptions) (StopResult, error) {
	logger := logging.NewComponentLogger(opts.Logger, "daemonctl")

	pid, err := pidlock.ReadPID(opts.PIDFile)
	if errors.Is(err, os.ErrNotExist) {
		return StopResult{}, ErrNotRunning
	}
	if err != nil {
		return StopResult{}, err
	}

	sig := opts.Signal
	if sig == 0 {
		sig = syscall.SIGTERM
	}
	signaler := opts.Signaler
	if signaler == nil {
		signaler = unix.Kill
	}

	result := StopResult{PID: pid}
	switch err := signaler(pid, sig); {
	case err == nil:
		result.Outcome = OutcomeSignalled
		logger.Info("stop signal sent",
			logging.String(logging.FieldEventType, "stop_signalled"),
			logging.PID(pid),
			logging.String("signal", unix.SignalName(sig)),
		)
	case errors.Is(err, unix.ESRCH):
		result.Outcome = OutcomeAlreadyGone
		logger.Info("daemon process already gone",
			logging.String(logging.FieldEventType, "stop_already_gone"),
			logging.PID(pid),
		)
	default:
		result.Outcome = OutcomeDeliveryFailed
		result.Err = err
		logging.WarnWithContext(logger, "stop signal not delivered", "stop_delivery_failed",
			logging.PID(pid),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the process may belong to another user"),
			logging.String(logging.FieldImpact, "daemon keeps running"),
		)
	}
	return result, nil
}

// WaitForRelease polls until nobody holds the lock on path or ctx ends.
func WaitForRelease(ctx context.Context, path string, interval time.Duration) error {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		held, err := pidlock.Held(path)
		if err != nil {
			return err
		}
		if !held {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s to be released: %w", path, ctx.Err())
		case <-ticker.C:
		}
	}
}
