// Package main hosts the audioconv CLI entrypoint and command graph.
//
// "audioconv serve" runs the daemon: HTTP API, scheduler and the single
// instance lock. The remaining commands operate on the job store directly so
// operators can register users, inspect jobs and force a scheduler pass
// without a running daemon.
package main
