// Package config loads, normalizes, and validates noiseplayer settings.
//
// It supplies defaults, expands user paths (including tilde shortcuts), and
// reads a TOML file whose only historically required key is the playback
// volume. Optional sections choose the player binary and noise color, the
// pid file and state directory, and log formatting.
//
// Callers that must keep going on a missing or broken file use LoadOrDefault
// and log the returned error as a warning.
package config
