// Package queue persists users and conversion jobs in SQLite or PostgreSQL and
// exposes the operations that drive a job through its lifecycle.
//
// The Store owns the connection (with a bounded startup retry), applies the
// embedded goose migrations for the selected dialect, and implements the
// status transitions as guarded single-row updates: a job is claimed with a
// compare-and-swap from pending to converting, and only a converting job may
// be finished. Terminal statuses are never rewritten.
//
// Treat this package as the single source of truth for job state; the blob
// bytes themselves live in internal/blob.
package queue
