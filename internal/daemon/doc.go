// Package daemon hosts the long-running service: the HTTP API and the
// conversion scheduler, guarded by a single-instance file lock.
//
// Client routes (POST /user, POST /record, GET /record) follow the wire
// contract existing clients rely on. Operator routes under /api sit behind
// an optional bearer token. Every request carries a correlation id that is
// echoed in X-Request-ID and attached to its log lines.
package daemon
