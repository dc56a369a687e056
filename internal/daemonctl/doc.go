// Package daemonctl owns the daemon lifecycle as seen from the command line.
//
// Spawn takes an exclusive advisory lock on the pid file and re-executes the
// binary as a detached daemon that inherits the locked descriptor, so the lock
// is never dropped between the check and the daemon's own pid write. The
// daemon acknowledges on a pipe once its pid is on disk. A second Spawn while
// the lock is held is rejected without touching the file.
//
// Stop sends SIGTERM to the recorded pid and returns immediately. Probe
// reports the lock state, which is the source of truth for "running".
package daemonctl
