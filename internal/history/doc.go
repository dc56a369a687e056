// Package history keeps a small SQLite journal of lifecycle events (spawns,
// rejections, stop requests) so `noiseplayer history` can show what happened
// to the daemon across invocations.
//
// The journal is advisory. Callers treat write failures as warnings and the
// pid file lock remains the only authority on whether a daemon is running.
package history
