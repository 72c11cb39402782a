package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"audioconv/internal/services"
)

// ErrInvalidTransition reports a status update the state machine forbids,
// such as finishing a job that is not converting.
var ErrInvalidTransition = errors.New("invalid status transition")

// ClaimJob atomically moves a job from pending to converting. It returns
// false when another scheduler already claimed the job or it is no longer
// pending.
func (s *Store) ClaimJob(ctx context.Context, jobID string) (bool, error) {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(ctx,
		`UPDATE conversion_jobs
         SET status = ?, updated_at = ?, heartbeat_at = ?, error_message = NULL
         WHERE job_id = ? AND status = ?`,
		string(StatusConverting), now, now, jobID, string(StatusPending),
	)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "store", "claim job", jobID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// FinishJob records the terminal outcome of a converting job. Only a job in
// converting can be finished; anything else returns ErrInvalidTransition so a
// terminal status is never overwritten.
func (s *Store) FinishJob(ctx context.Context, jobID string, status Status, message string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: %s is not terminal", ErrInvalidTransition, status)
	}
	if status == StatusFinished {
		message = ""
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE conversion_jobs
         SET status = ?, error_message = ?, updated_at = ?, heartbeat_at = NULL
         WHERE job_id = ? AND status = ?`,
		string(status), nullableString(message), formatTime(time.Now()), jobID, string(StatusConverting),
	)
	if err != nil {
		return services.Wrap(services.ErrTransient, "store", "finish job", jobID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: job %s is not converting", ErrInvalidTransition, jobID)
	}
	return nil
}

// UpdateHeartbeat refreshes the heartbeat of a converting job.
func (s *Store) UpdateHeartbeat(ctx context.Context, jobID string) error {
	now := formatTime(time.Now())
	if _, err := s.execWithRetry(ctx,
		`UPDATE conversion_jobs SET heartbeat_at = ?, updated_at = ? WHERE job_id = ? AND status = ?`,
		now, now, jobID, string(StatusConverting),
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleConverting marks converting jobs whose heartbeat is older than
// cutoff as error. Interrupted conversions are never re-queued.
func (s *Store) ReclaimStaleConverting(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE conversion_jobs
         SET status = ?, error_message = ?, updated_at = ?, heartbeat_at = NULL
         WHERE status = ? AND COALESCE(heartbeat_at, updated_at) < ?`,
		string(StatusError),
		InterruptedMessage,
		formatTime(time.Now()),
		string(StatusConverting),
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}
