package daemonctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"noiseplayer/internal/logging"
	"noiseplayer/internal/pidlock"
)

// RunDaemonCommand is the hidden subcommand the launcher re-executes to become the daemon.
const RunDaemonCommand = "_run-daemon"

// Descriptors the daemon inherits from the launcher. ExtraFiles[i] becomes fd 3+i.
const (
	InheritedLockFD  = 3
	InheritedReadyFD = 4
	// ReadyAck is written on the ready descriptor once the daemon's pid is on disk.
	ReadyAck = "ready\n"
)

const defaultReadyTimeout = 5 * time.Second

// status and stop --wait take a shared lock for an instant; a spawn that
// collides with one retries within this window before reporting a daemon.
const (
	lockContentionWindow = 250 * time.Millisecond
	lockRetryInterval    = 25 * time.Millisecond
)

var (
	// ErrAlreadyRunning indicates the lock is held, so another daemon owns the pid file.
	ErrAlreadyRunning = errors.New("daemon already running")
	// ErrDaemonExited indicates the daemon died before acknowledging that it recorded its pid.
	ErrDaemonExited = errors.New("daemon exited before recording its pid")
)

// Phase is the controller's position in the spawn state machine.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseLockAttempted Phase = "lock_attempted"
	PhaseForked        Phase = "forked"
	PhaseRejected      Phase = "rejected"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	// Executable defaults to the running binary.
	Executable string
	PIDFile    string
	ConfigPath string
	Volume     float64
	// SessionID tags the daemon's log lines and journal entries.
	SessionID string
	// LogPath receives the daemon's stdout and stderr. Empty discards them.
	LogPath string
	// Env is appended to the current environment.
	Env          []string
	ReadyTimeout time.Duration
	Logger       *slog.Logger
}

// SpawnResult captures the outcome of a spawn attempt.
type SpawnResult struct {
	Phase Phase
	PID   int
	// Ready is false when the daemon did not acknowledge within ReadyTimeout.
	Ready bool
}

// Controller drives a single spawn attempt. It is not reusable.
type Controller struct {
	opts   LaunchOptions
	logger *slog.Logger
	phase  Phase
}

// NewController prepares a spawn attempt.
func NewController(opts LaunchOptions) *Controller {
	return &Controller{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "daemonctl"),
		phase:  PhaseIdle,
	}
}

// Phase reports where the last Spawn call left the state machine.
func (c *Controller) Phase() Phase { return c.phase }

// LaunchArgs returns the arguments passed to the re-executed binary.
func LaunchArgs(opts LaunchOptions) []string {
	args := []string{
		RunDaemonCommand,
		"--pid-file", opts.PIDFile,
		"--volume", strconv.FormatFloat(opts.Volume, 'g', -1, 64),
	}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if id := strings.TrimSpace(opts.SessionID); id != "" {
		args = append(args, "--session-id", id)
	}
	return args
}

// Spawn takes the singleton lock and launches a detached daemon that inherits
// it. When the lock is already held the result is PhaseRejected with
// ErrAlreadyRunning and the pid file is left as it was.
func (c *Controller) Spawn(ctx context.Context) (SpawnResult, error) {
	if c.phase != PhaseIdle {
		return SpawnResult{Phase: c.phase}, fmt.Errorf("controller already used (phase %s)", c.phase)
	}
	if strings.TrimSpace(c.opts.PIDFile) == "" {
		return SpawnResult{Phase: c.phase}, errors.New("pid file path is empty")
	}

	guard, err := c.acquire(ctx)
	if errors.Is(err, pidlock.ErrAlreadyLocked) {
		c.phase = PhaseRejected
		c.logger.Info("daemon already running",
			logging.String(logging.FieldEventType, "spawn_rejected"),
			logging.String(logging.FieldPIDFile, c.opts.PIDFile),
		)
		return SpawnResult{Phase: c.phase}, ErrAlreadyRunning
	}
	if err != nil {
		return SpawnResult{Phase: c.phase}, err
	}

	proc, ready, err := c.launch(guard)
	if err != nil {
		if releaseErr := guard.Release(); releaseErr != nil {
			err = errors.Join(err, releaseErr)
		}
		return SpawnResult{Phase: c.phase}, err
	}

	// The daemon holds the lock through its inherited descriptor from here on.
	if err := guard.Leak(); err != nil {
		c.logger.Debug("close launcher pid descriptor", logging.Error(err))
	}
	c.phase = PhaseForked
	result := SpawnResult{Phase: c.phase, PID: proc.Pid}

	acked, waitErr := waitReady(ctx, ready, c.readyTimeout())
	_ = ready.Close()
	switch {
	case acked:
		result.Ready = true
		_ = proc.Release()
	case errors.Is(waitErr, io.EOF):
		state, _ := proc.Wait()
		return result, fmt.Errorf("%w (pid %d): %s", ErrDaemonExited, proc.Pid, exitState(state))
	default:
		logging.WarnWithContext(c.logger, "daemon did not confirm startup", "daemon_ready_timeout",
			logging.PID(proc.Pid),
			logging.Duration("ready_timeout", c.readyTimeout()),
			logging.Error(waitErr),
			logging.String(logging.FieldErrorHint, "check the daemon log or run `noiseplayer status`"),
			logging.String(logging.FieldImpact, "the pid file may not contain the daemon pid yet"),
		)
		_ = proc.Release()
	}

	c.logger.Info("daemon spawned",
		logging.String(logging.FieldEventType, "daemon_spawned"),
		logging.PID(result.PID),
		logging.Bool("ready", result.Ready),
		logging.String(logging.FieldPIDFile, c.opts.PIDFile),
	)
	return result, nil
}

// acquire opens the pid file and takes the lock. An open failure leaves the
// controller idle.
func (c *Controller) acquire(ctx context.Context) (*pidlock.Guard, error) {
	deadline := time.Now().Add(lockContentionWindow)
	for {
		file, err := pidlock.OpenOrCreate(c.opts.PIDFile)
		if err != nil {
			return nil, err
		}
		c.phase = PhaseLockAttempted
		guard, err := file.TryAcquire()
		if !errors.Is(err, pidlock.ErrAlreadyLocked) || !time.Now().Before(deadline) {
			return guard, err
		}
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(lockRetryInterval):
		}
	}
}

func (c *Controller) launch(guard *pidlock.Guard) (*os.Process, *os.File, error) {
	executable := strings.TrimSpace(c.opts.Executable)
	if executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, nil, fmt.Errorf("resolve executable: %w", err)
		}
		executable = exe
	}

	output, err := openDaemonOutput(c.opts.LogPath)
	if err != nil {
		return nil, nil, err
	}
	defer output.Close()

	readyR, readyW, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("create ready pipe: %w", err)
	}

	cmd := exec.Command(executable, LaunchArgs(c.opts)...) //nolint:gosec
	cmd.Stdout = output
	cmd.Stderr = output
	cmd.ExtraFiles = []*os.File{guard.Descriptor(), readyW}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Env = append(os.Environ(), c.opts.Env...)

	startErr := cmd.Start()
	// The child has its own copy; keeping ours would hide the child's exit from the reader.
	_ = readyW.Close()
	if startErr != nil {
		_ = readyR.Close()
		return nil, nil, fmt.Errorf("launch daemon: %w", startErr)
	}
	return cmd.Process, readyR, nil
}

func (c *Controller) readyTimeout() time.Duration {
	if c.opts.ReadyTimeout > 0 {
		return c.opts.ReadyTimeout
	}
	return defaultReadyTimeout
}

func openDaemonOutput(path string) (*os.File, error) {
	if strings.TrimSpace(path) == "" {
		return os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open daemon log %s: %w", path, err)
	}
	return file, nil
}

// waitReady reads the acknowledgement line. io.EOF means every copy of the
// write end closed without an acknowledgement, i.e. the daemon is gone.
func waitReady(ctx context.Context, ready *os.File, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := ready.SetReadDeadline(deadline); err != nil {
		return false, fmt.Errorf("set ready deadline: %w", err)
	}
	line, err := bufio.NewReader(ready).ReadString('\n')
	if line == ReadyAck {
		return true, nil
	}
	if err == nil {
		return false, fmt.Errorf("unexpected ready message %q", line)
	}
	return false, err
}

func exitState(state *os.ProcessState) string {
	if state == nil {
		return "exit status unknown"
	}
	return state.String()
}
