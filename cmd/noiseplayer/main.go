package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"noiseplayer/internal/daemonctl"
	"noiseplayer/internal/pidlock"
)

const (
	exitOK             = 0
	exitFatal          = 1
	exitUsage          = 2
	exitAlreadyRunning = 3
	exitNotRunning     = 4
)

// usageError marks invocation mistakes (missing subcommand, bad flags).
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func main() {
	cmd := newRootCommand()
	err := cmd.Execute()
	code := exitCode(err)
	if err != nil && !reported(err) && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(code)
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	var usage usageError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, daemonctl.ErrAlreadyRunning):
		return exitAlreadyRunning
	case errors.Is(err, daemonctl.ErrNotRunning):
		return exitNotRunning
	case errors.As(err, &usage):
		return exitUsage
	default:
		return exitFatal
	}
}

// reported reports whether the command already told the user about err.
func reported(err error) bool {
	return errors.Is(err, daemonctl.ErrAlreadyRunning) ||
		errors.Is(err, daemonctl.ErrNotRunning) ||
		errors.Is(err, errHelpShown)
}

var errHelpShown = usageError{msg: "no command given"}

// isCorrupt is split out so stop and status agree on what counts as corrupt state.
func isCorrupt(err error) bool {
	return errors.Is(err, pidlock.ErrCorruptPID)
}
