// Package main hosts the noiseplayer CLI entrypoint and command graph.
//
// `start` spawns the background player through internal/daemonctl and exits
// as soon as the daemon has recorded its pid; `stop` signals that pid. The
// hidden `_run-daemon` command is what the spawned process actually runs.
// Exit codes: 0 success, 1 fatal, 2 usage, 3 already running, 4 not running.
package main
