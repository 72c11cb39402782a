// Package logging assembles structured slog loggers used across audioconv.
//
// It owns the console and JSON handlers, maps the 0-5 verbosity setting onto
// slog levels, and exposes context-aware helpers so scheduler and HTTP code
// tag every line with job ids, stages, and request correlation ids. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
