package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"audioconv/internal/config"
	"audioconv/internal/logging"
	"audioconv/internal/services"
)

// Store manages job persistence backed by SQLite or PostgreSQL.
type Store struct {
	db       *sql.DB
	driver   string
	location string
	logger   *slog.Logger
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	connectInitialBackoff = 100 * time.Millisecond
	connectMaxBackoff     = 5 * time.Second
	pingTimeout           = 5 * time.Second
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	query = s.rebind(query)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ensureContext(ctx), s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ensureContext(ctx), s.rebind(query), args...)
}

// Open connects to the configured database, waiting for it to become
// reachable, and applies pending migrations.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "store", "open", "config is nil", nil)
	}
	ctx = ensureContext(ctx)
	logger = logging.NewComponentLogger(logger, "store")

	driver, dsn := cfg.DatabaseDSN()
	location := dsn
	if driver == config.DriverPostgres {
		location = fmt.Sprintf("%s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
		if cfg.Database.DSN != "" {
			location = "dsn override"
		}
	} else if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	db, err := connect(ctx, driver, dsn, cfg.ConnectTimeout(), cfg.ConnectWarnInterval(), logger)
	if err != nil {
		return nil, err
	}

	store := &Store{db: db, driver: driver, location: location, logger: logger}
	if err := store.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("record store ready",
		logging.String("driver", driver),
		logging.String("location", location),
		logging.String(logging.FieldEventType, "store_ready"),
	)
	return store, nil
}

// connect opens the pool and pings it until it answers or timeout elapses.
// A warning is logged every warnEvery while the database stays unreachable.
func connect(ctx context.Context, driver, dsn string, timeout, warnEvery time.Duration, logger *slog.Logger) (*sql.DB, error) {
	if driver == config.DriverSQLite {
		dsn = sqliteDSN(dsn)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "store", "open", driver, err)
	}
	started := time.Now()
	lastWarn := started
	delay := connectInitialBackoff
	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		pingErr := db.PingContext(pingCtx)
		cancel()
		if pingErr == nil {
			if attempt > 1 {
				logger.Info("database reachable",
					logging.Int("attempts", attempt),
					logging.Duration("waited", time.Since(started)),
				)
			}
			return db, nil
		}

		elapsed := time.Since(started)
		if elapsed >= timeout {
			_ = db.Close()
			return nil, services.Wrap(services.ErrTransient, "store", "connect",
				fmt.Sprintf("database unreachable after %s", elapsed.Round(time.Millisecond)), pingErr)
		}
		logger.Debug("database not reachable yet", logging.Int("attempt", attempt), logging.Error(pingErr))
		if time.Since(lastWarn) >= warnEvery {
			logging.WarnWithContext(logger, "database still unreachable", "store_connect_retry",
				logging.Duration("waited", elapsed.Round(time.Second)),
				logging.Error(pingErr),
				logging.String(logging.FieldErrorHint, "check database host, credentials and network"),
				logging.String(logging.FieldImpact, "daemon startup is blocked until the database answers"),
			)
			lastWarn = time.Now()
		}

		wait := delay
		if remaining := timeout - elapsed; wait > remaining {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		if next := delay * 2; next <= connectMaxBackoff {
			delay = next
		} else {
			delay = connectMaxBackoff
		}
	}
}

// sqliteDSN sets pragmas through the DSN so every pooled connection gets them.
func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Driver reports the configured database driver name.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// Location describes where the store lives without exposing credentials.
func (s *Store) Location() string {
	if s == nil {
		return ""
	}
	return s.location
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("record store unavailable")
	}
	ctx, cancel := context.WithTimeout(ensureContext(ctx), pingTimeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return services.Wrap(services.ErrTransient, "store", "ping", "", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
