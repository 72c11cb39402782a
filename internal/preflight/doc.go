// Package preflight provides readiness checks for the filesystem paths and
// external services audioconv depends on.
//
// The daemon runs RunAll at startup and logs failures as warnings; the CLI
// "audioconv status" command renders the same results as a table.
// Each check is gated by its config toggle.
package preflight
