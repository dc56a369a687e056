// Package player runs the daemon's workload: an ffplay process rendering
// generated noise (or a looped file) at the configured volume until the
// daemon is told to stop.
package player
