// Package services defines the shared error taxonomy and context helpers used
// by the record store, scheduler and request services.
//
// Key responsibilities:
//   - Sentinel errors for caller-facing outcomes (conflict, unauthorized, not
//     found, not ready) and conversion outcomes (invalid input, fault).
//   - The Wrap helper that tags failures with a marker plus stage context so
//     callers classify them with errors.Is.
//   - Context helpers that stamp job ids, user ids, stages and request ids for
//     logging and tracing.
package services
