// Package pidlock manages the file that is both the singleton lock and the
// record of the daemon's pid.
//
// Holding an exclusive flock(2) on the file is the only evidence that a daemon
// runs; the file existing or containing a pid proves nothing. The lock belongs
// to an open file description, so it can be passed to a child process as an
// inherited descriptor, after which the launcher calls Guard.Leak to drop its
// own copy without unlocking. The kernel releases the lock when the daemon
// exits, however it exits.
package pidlock
