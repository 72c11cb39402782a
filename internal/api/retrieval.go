package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"

	"audioconv/internal/blob"
	"audioconv/internal/logging"
	"audioconv/internal/queue"
	"audioconv/internal/services"
)

// DefaultResultContentType is served when sniffing the result is inconclusive.
const DefaultResultContentType = "audio/mpeg"

// ErrRecordNotFound reports a job id that does not exist for the user.
var ErrRecordNotFound = fmt.Errorf("%w: audio with this id and id of user not found", services.ErrNotFound)

// ErrResultMissing reports a finished job whose result blob is gone. It is a
// server-side fault and carries no client-facing marker.
var ErrResultMissing = errors.New("result blob missing for finished job")

// JobLookup resolves a job scoped to its owner.
type JobLookup interface {
	GetJobForUser(ctx context.Context, jobID string, userID int64) (*queue.Job, error)
}

// NotReadyError reports a job that cannot be fetched in its current status.
// It matches services.ErrNotReady, and services.ErrJobFailed when Permanent.
type NotReadyError struct {
	Status    queue.Status
	Permanent bool
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("Record not ready, current status=%s", e.Status)
}

func (e *NotReadyError) Is(target error) bool {
	return target == services.ErrNotReady || (e.Permanent && target == services.ErrJobFailed)
}

// Result is a fetchable converted recording.
type Result struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
	Job         *queue.Job
}

// RetrievalService serves converted recordings to their owners.
type RetrievalService struct {
	jobs         JobLookup
	users        UserLookup
	blobs        blob.Store
	requireToken bool
	logger       *slog.Logger
}

// NewRetrievalService constructs a RetrievalService. With requireToken set
// every fetch must present the owner's token.
func NewRetrievalService(jobs JobLookup, users UserLookup, blobs blob.Store, requireToken bool, logger *slog.Logger) *RetrievalService {
	return &RetrievalService{
		jobs:         jobs,
		users:        users,
		blobs:        blobs,
		requireToken: requireToken,
		logger:       logging.NewComponentLogger(logger, "retrieval"),
	}
}

// Fetch returns the converted recording of jobID owned by userID. A supplied
// token is always verified. The store is never modified.
func (s *RetrievalService) Fetch(ctx context.Context, jobID string, userID int64, token string) (*Result, error) {
	if token != "" || s.requireToken {
		if _, err := authenticate(ctx, s.users, userID, token); err != nil {
			return nil, err
		}
	}

	job, err := s.jobs.GetJobForUser(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrRecordNotFound
	}
	if job.Status != queue.StatusFinished {
		return nil, &NotReadyError{Status: job.Status, Permanent: job.Status.IsFailure()}
	}

	ctx = services.WithJobID(services.WithUserID(ctx, userID), jobID)
	data, err := blob.Get(ctx, s.blobs, job.BlobRef)
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(ctx, s.logger), "finished job has no readable result", "result_read_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check blob storage for the job id"),
		)
		if errors.Is(err, services.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrResultMissing, job.BlobRef)
		}
		return nil, err
	}

	detected := mimetype.Detect(data)
	contentType := detected.String()
	if detected.Is("application/octet-stream") {
		contentType = DefaultResultContentType
	}
	return &Result{
		Body:        io.NopCloser(bytes.NewReader(data)),
		ContentType: contentType,
		Size:        int64(len(data)),
		Job:         job,
	}, nil
}
