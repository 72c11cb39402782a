package api

import (
	"context"

	"audioconv/internal/queue"
)

// JobReader abstracts record store interactions needed for operator queries.
type JobReader interface {
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error)
	ListForUser(ctx context.Context, userID int64) ([]*queue.Job, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	GetJob(ctx context.Context, jobID string) (*queue.Job, error)
}

// JobService exposes read-only job operations returning API DTOs.
type JobService struct {
	store JobReader
}

// NewJobService constructs a JobService around the provided reader.
func NewJobService(store JobReader) *JobService {
	if store == nil {
		return nil
	}
	return &JobService{store: store}
}

// List returns jobs filtered by status, newest first.
func (s *JobService) List(ctx context.Context, statuses ...queue.Status) ([]Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	jobs, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return SortJobsNewestFirst(FromJobs(jobs)), nil
}

// ListForUser returns the jobs owned by userID, newest first, optionally
// narrowed to the given statuses.
func (s *JobService) ListForUser(ctx context.Context, userID int64, statuses ...queue.Status) ([]Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	jobs, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(statuses) > 0 {
		wanted := make(map[queue.Status]struct{}, len(statuses))
		for _, status := range statuses {
			wanted[status] = struct{}{}
		}
		filtered := jobs[:0]
		for _, job := range jobs {
			if _, ok := wanted[job.Status]; ok {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}
	return SortJobsNewestFirst(FromJobs(jobs)), nil
}

// Stats returns job counts keyed by status string.
func (s *JobService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single job. A missing job yields nil without error.
func (s *JobService) Describe(ctx context.Context, jobID string) (*Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil || job == nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}
