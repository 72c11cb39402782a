package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"audioconv/internal/blob"
	"audioconv/internal/config"
	"audioconv/internal/deps"
	"audioconv/internal/logging"
	"audioconv/internal/queue"
	"audioconv/internal/reporting"
	"audioconv/internal/workflow"
)

// Daemon coordinates the HTTP API and the scheduler and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	blobs    blob.Store
	workflow *workflow.Manager
	reporter *reporting.Reporter
	http     *httpServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	Database     string
	BlobStore    string
	LockFilePath string
	Dependencies []deps.Status
}

// Option configures optional Daemon behavior.
type Option func(*Daemon)

// WithReporter forwards HTTP 5xx errors and handler panics to r.
func WithReporter(r *reporting.Reporter) Option {
	return func(d *Daemon) {
		d.reporter = r
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, blobs blob.Store, wf *workflow.Manager, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || blobs == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, blob store, and scheduler")
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		blobs:    blobs,
		workflow: wf,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.http = newHTTPServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, starts listening and launches the scheduler.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another audioconv daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.http.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if err := d.workflow.Start(runCtx); err != nil {
		d.http.stop()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start scheduler: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("audioconv daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.http.addr()),
	)
	return nil
}

// Stop stops the HTTP server first so no new uploads arrive, then waits for
// the scheduler to commit its current job, then releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.http.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("audioconv daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the address the HTTP server listens on, or "" before Start.
func (d *Daemon) Addr() string {
	return d.http.addr()
}

// Handler exposes the HTTP router.
func (d *Daemon) Handler() http.Handler {
	return d.http.handler
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		Database:     d.store.Driver() + ":" + d.store.Location(),
		BlobStore:    d.blobs.Name(),
		LockFilePath: d.lockPath,
		Dependencies: []deps.Status{deps.Resolve(deps.FFmpegTool(d.cfg.FFmpegBinary()))},
	}
}
