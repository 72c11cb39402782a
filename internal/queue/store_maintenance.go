package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"audioconv/internal/config"
)

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.query(ctx, `SELECT status, COUNT(1) FROM conversion_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusConverting:
			health.Converting += count
		case StatusFinished:
			health.Finished += count
		case StatusNotValid:
			health.NotValid += count
		case StatusError:
			health.Errored += count
		}
	}
	return health, nil
}

var expectedTables = []string{"users", "conversion_jobs"}

// CheckHealth returns diagnostic information about the record store.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{Driver: s.driver, Location: s.location}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.Reachable = true

	for _, table := range expectedTables {
		present, err := s.tableExists(connCtx, table)
		if err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
		if present {
			health.TablesPresent = append(health.TablesPresent, table)
		} else {
			health.MissingTables = append(health.MissingTables, table)
		}
	}
	if len(health.MissingTables) > 0 {
		return health, nil
	}

	if version, err := s.schemaVersion(connCtx); err == nil {
		health.SchemaVersion = version
	} else {
		health.Error = err.Error()
	}

	if err := s.queryRow(connCtx, `SELECT COUNT(*) FROM conversion_jobs`).Scan(&health.TotalJobs); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count jobs: %w", err)
	}
	if err := s.queryRow(connCtx, `SELECT COUNT(*) FROM users`).Scan(&health.TotalUsers); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count users: %w", err)
	}

	if s.driver == config.DriverSQLite {
		var integrityResult string
		if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrityResult); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("integrity check: %w", err)
		}
		health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")
	} else {
		health.IntegrityCheck = true
	}
	return health, nil
}

func (s *Store) tableExists(ctx context.Context, name string) (bool, error) {
	query := `SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?`
	if s.driver == config.DriverPostgres {
		query = `SELECT COUNT(1) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?`
	}
	var count int
	if err := s.queryRow(ctx, query, name).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
