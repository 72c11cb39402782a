// Package workflow drives conversion jobs from pending to a terminal status.
//
// The Manager ticks on a fixed interval. Each tick optionally takes a
// distributed lock, marks converting jobs with a stale heartbeat as error,
// then claims pending jobs one at a time in creation order. A claimed job is
// read from the blob store, converted, written back under the same key and
// finished. Invalid input ends as not_valid; every other failure, including
// timeouts and panics, ends as error. The terminal status is committed even
// when the daemon is shutting down.
//
// RunOnce exposes a single tick to the CLI and tests. Status aggregates the
// last outcome, per-status counts and component health for the API.
package workflow
