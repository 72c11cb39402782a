// Package reporting forwards failures to Sentry.
//
// A Reporter owns its own hub so tests and the daemon never touch the global
// sentry state. Without a DSN every method is a no-op, and a nil *Reporter
// is valid.
package reporting
