// Package logging assembles the slog loggers used by the CLI and the daemon.
//
// It owns the console and JSON handlers, level parsing and output routing,
// plus attribute helpers and WarnWithContext, which makes every warning carry
// an event type, an impact and a hint. The daemon tags every line
// with a per-run session id. NewNop serves tests and wiring that cannot fail.
package logging
