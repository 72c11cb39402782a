// Package config loads, normalizes, and validates audioconv configuration.
//
// Values come from built-in defaults, an optional TOML file, and environment
// variables, in that order. Environment variables may also be supplied by a
// .env file; the process environment wins over it. Load expands paths, resolves the record store DSN
// inputs, and rejects settings the daemon cannot run with, so callers can use
// the returned Config without further checks.
package config
