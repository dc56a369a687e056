package daemonctl

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"

	"noiseplayer/internal/pidlock"
)

// State summarizes what the pid file says about the daemon.
type State string

const (
	StateNotRunning State = "not_running"
	StateRunning    State = "running"
	// StateStale means the file names a pid but nobody holds the lock.
	StateStale   State = "stale"
	StateCorrupt State = "corrupt"
)

// Status is a point-in-time view of the daemon.
type Status struct {
	State   State
	PIDFile string
	PID     int
	// Locked is the authoritative liveness signal.
	Locked bool
	// Alive reports whether a process with PID exists. The pid may have been reused.
	Alive  bool
	Detail string
}

// Probe inspects the pid file and its lock without modifying either.
func Probe(path string) (Status, error) {
	status := Status{PIDFile: path}

	pid, readErr := pidlock.ReadPID(path)
	if errors.Is(readErr, os.ErrNotExist) {
		status.State = StateNotRunning
		return status, nil
	}

	locked, err := pidlock.Held(path)
	if err != nil {
		return status, err
	}
	status.Locked = locked

	switch {
	case errors.Is(readErr, pidlock.ErrCorruptPID):
		status.State = StateCorrupt
		status.Detail = readErr.Error()
		return status, nil
	case readErr != nil:
		return status, readErr
	}

	status.PID = pid
	status.Alive = processExists(pid)
	if locked {
		status.State = StateRunning
	} else {
		status.State = StateStale
	}
	return status, nil
}

func processExists(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
