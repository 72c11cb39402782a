package queue

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"

	"audioconv/internal/config"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// goose keeps dialect, base FS and logger in package globals.
var gooseMu sync.Mutex

func migrationSource(driver string) (fs.FS, string, error) {
	switch driver {
	case config.DriverSQLite:
		sub, err := fs.Sub(migrationFS, "migrations/sqlite")
		return sub, "sqlite3", err
	case config.DriverPostgres:
		sub, err := fs.Sub(migrationFS, "migrations/postgres")
		return sub, "postgres", err
	default:
		return nil, "", fmt.Errorf("no migrations for driver %q", driver)
	}
}

func (s *Store) applyMigrations(ctx context.Context) error {
	source, dialect, err := migrationSource(s.driver)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(source)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{logger: s.logger})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) schemaVersion(ctx context.Context) (int64, error) {
	_, dialect, err := migrationSource(s.driver)
	if err != nil {
		return 0, err
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := goose.SetDialect(dialect); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, s.db)
}

// gooseLogger routes goose output into the store logger at debug level.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("source", "goose"))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("source", "goose"))
}
