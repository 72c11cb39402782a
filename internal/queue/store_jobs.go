package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"audioconv/internal/services"
)

// CreateJob inserts a pending job. JobID, UserID and BlobRef are required;
// status and timestamps are assigned here. A duplicate job id yields
// services.ErrConflict.
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if strings.TrimSpace(job.JobID) == "" || strings.TrimSpace(job.BlobRef) == "" {
		return services.Wrap(services.ErrValidation, "store", "create job", "job id and blob ref are required", nil)
	}
	if job.SourceFormat == "" {
		job.SourceFormat = "wav"
	}
	now := time.Now().UTC()
	job.Status = StatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	job.HeartbeatAt = nil
	job.ErrorMessage = ""

	_, err := s.execWithRetry(ctx,
		`INSERT INTO conversion_jobs (
            job_id, user_id, status, blob_ref, source_format, source_content_type,
            source_size, error_message, created_at, updated_at, heartbeat_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, NULL)`,
		job.JobID,
		job.UserID,
		string(job.Status),
		job.BlobRef,
		job.SourceFormat,
		nullableString(job.SourceContentType),
		job.SourceSize,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return services.Wrap(services.ErrConflict, "store", "create job", "job id already exists", err)
		}
		return services.Wrap(services.ErrTransient, "store", "create job", "", err)
	}
	return nil
}

// GetJob fetches a job by id. It returns nil, nil when absent.
func (s *Store) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.getJob(ctx, `SELECT `+jobColumns+` FROM conversion_jobs WHERE job_id = ?`, jobID)
}

// GetJobForUser fetches a job only when it belongs to userID. It returns
// nil, nil when the job is absent or owned by someone else.
func (s *Store) GetJobForUser(ctx context.Context, jobID string, userID int64) (*Job, error) {
	return s.getJob(ctx, `SELECT `+jobColumns+` FROM conversion_jobs WHERE job_id = ? AND user_id = ?`, jobID, userID)
}

func (s *Store) getJob(ctx context.Context, query string, args ...any) (*Job, error) {
	job, err := scanJob(s.queryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "get job", "", err)
	}
	return job, nil
}

// PendingJobs returns pending jobs in creation order. A limit <= 0 returns all.
func (s *Store) PendingJobs(ctx context.Context, limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM conversion_jobs WHERE status = ? ORDER BY created_at, job_id`
	args := []any{string(StatusPending)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "pending jobs", "", err)
	}
	return collectJobs(rows)
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM conversion_jobs`
	orderClause := ` ORDER BY created_at, job_id`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.query(ctx, baseQuery+orderClause)
	} else {
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = string(status)
		}
		rows, err = s.query(ctx, baseQuery+` WHERE status IN (`+makePlaceholders(len(statuses))+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return collectJobs(rows)
}

// ListForUser returns every job owned by userID in creation order.
func (s *Store) ListForUser(ctx context.Context, userID int64) ([]*Job, error) {
	rows, err := s.query(ctx, `SELECT `+jobColumns+` FROM conversion_jobs WHERE user_id = ? ORDER BY created_at, job_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list jobs for user: %w", err)
	}
	return collectJobs(rows)
}
