package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"audioconv/internal/blob"
	"audioconv/internal/config"
	"audioconv/internal/convert"
	"audioconv/internal/logging"
	"audioconv/internal/queue"
	"audioconv/internal/reporting"
)

// commitTimeout bounds the detached write of a job's terminal status.
const commitTimeout = 10 * time.Second

// Manager coordinates the conversion of pending jobs.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	blobs     blob.Store
	converter convert.Converter
	reporter  *reporting.Reporter
	locker    TickLocker
	logger    *slog.Logger

	pollInterval      time.Duration
	errorRetry        time.Duration
	conversionTimeout time.Duration

	heartbeat *HeartbeatMonitor

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastJob  *queue.Job
	lastTick time.Time
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithReporter forwards error outcomes and recovered panics to r.
func WithReporter(r *reporting.Reporter) ManagerOption {
	return func(m *Manager) {
		m.reporter = r
	}
}

// WithTickLock makes every tick acquire l first. A tick that cannot take the
// lock is skipped.
func WithTickLock(l TickLocker) ManagerOption {
	return func(m *Manager) {
		m.locker = l
	}
}

// NewManager constructs a scheduler over the given store, blob backend and
// converter.
func NewManager(cfg *config.Config, store *queue.Store, blobs blob.Store, converter convert.Converter, logger *slog.Logger, opts ...ManagerOption) *Manager {
	logger = logging.NewComponentLogger(logger, "scheduler")
	m := &Manager{
		cfg:               cfg,
		store:             store,
		blobs:             blobs,
		converter:         converter,
		logger:            logger,
		pollInterval:      seconds(cfg.Scheduler.Interval),
		errorRetry:        seconds(cfg.Scheduler.ErrorRetryInterval),
		conversionTimeout: seconds(cfg.Scheduler.ConversionTimeout),
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			seconds(cfg.Scheduler.HeartbeatInterval),
			seconds(cfg.Scheduler.HeartbeatTimeout),
		),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}
