package api

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"audioconv/internal/blob"
	"audioconv/internal/convert"
	"audioconv/internal/logging"
	"audioconv/internal/queue"
	"audioconv/internal/services"
)

const rollbackTimeout = 10 * time.Second

// JobCreator persists new pending jobs. GetJob resolves ambiguous insert
// failures; a missing job yields nil without error.
type JobCreator interface {
	CreateJob(ctx context.Context, job *queue.Job) error
	GetJob(ctx context.Context, jobID string) (*queue.Job, error)
}

// Handle identifies an accepted upload.
type Handle struct {
	JobID  string
	UserID int64
}

// URL renders the retrieval URL for the handle under base.
func (h Handle) URL(base string) string {
	query := url.Values{}
	query.Set("id", h.JobID)
	query.Set("user_id", strconv.FormatInt(h.UserID, 10))
	return base + "/record?" + query.Encode()
}

// IngestionService accepts uploads and records pending jobs.
type IngestionService struct {
	users  UserLookup
	jobs   JobCreator
	blobs  blob.Store
	logger *slog.Logger
	newID  func() string
}

// NewIngestionService constructs an IngestionService.
func NewIngestionService(users UserLookup, jobs JobCreator, blobs blob.Store, logger *slog.Logger) *IngestionService {
	return &IngestionService{
		users:  users,
		jobs:   jobs,
		blobs:  blobs,
		logger: logging.NewComponentLogger(logger, "ingestion"),
		newID:  uuid.NewString,
	}
}

// Upload verifies the client, stores data and records a pending job. When
// the insert fails the blob is removed only once the record is known to be
// absent, and a retryable error is returned. An insert that reports failure
// but did commit is treated as accepted.
func (s *IngestionService) Upload(ctx context.Context, userID int64, token string, data []byte) (Handle, error) {
	if _, err := authenticate(ctx, s.users, userID, token); err != nil {
		return Handle{}, err
	}
	if len(data) == 0 {
		return Handle{}, services.Wrap(services.ErrValidation, "ingestion", "upload", "audio payload is empty", nil)
	}

	jobID := s.newID()
	ctx = services.WithJobID(services.WithUserID(ctx, userID), jobID)
	logger := logging.WithContext(ctx, s.logger)
	contentType := mimetype.Detect(data).String()

	if err := s.blobs.Put(ctx, jobID, data); err != nil {
		logging.ErrorWithContext(logger, "failed to store upload", "upload_store_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check blob storage health"),
		)
		return Handle{}, retryable(err, "store upload")
	}

	job := &queue.Job{
		JobID:             jobID,
		UserID:            userID,
		BlobRef:           jobID,
		SourceFormat:      convert.SourceFormatWAV,
		SourceContentType: contentType,
		SourceSize:        int64(len(data)),
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		if s.recorded(ctx, logger, jobID, err) {
			logging.WarnWithContext(logger, "job insert reported failure but the record exists", "upload_record_ambiguous",
				logging.Error(err),
			)
		} else {
			logging.ErrorWithContext(logger, "failed to record upload", "upload_record_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check record store access"),
			)
			return Handle{}, retryable(err, "record job")
		}
	}

	logger.Info("upload accepted",
		logging.String(logging.FieldEventType, "upload_accepted"),
		logging.Int("bytes", len(data)),
		logging.String("content_type", contentType),
	)
	return Handle{JobID: jobID, UserID: userID}, nil
}

// recorded reports whether the job row exists after a failed insert. The
// blob is deleted when the row is definitely absent and kept when that cannot
// be established, so a committed job never loses its source.
func (s *IngestionService) recorded(ctx context.Context, logger *slog.Logger, jobID string, insertErr error) bool {
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if errors.Is(insertErr, services.ErrConflict) || errors.Is(insertErr, services.ErrValidation) {
		s.rollback(rbCtx, logger, jobID)
		return false
	}
	existing, err := s.jobs.GetJob(rbCtx, jobID)
	switch {
	case err != nil:
		logging.WarnWithContext(logger, "could not confirm job insert; keeping upload", "upload_record_unknown",
			logging.Error(err),
			logging.String(logging.FieldImpact, "an unreferenced blob may remain in storage"),
		)
		return false
	case existing != nil:
		return true
	default:
		s.rollback(rbCtx, logger, jobID)
		return false
	}
}

func (s *IngestionService) rollback(ctx context.Context, logger *slog.Logger, jobID string) {
	if err := s.blobs.Delete(ctx, jobID); err != nil {
		logging.WarnWithContext(logger, "failed to remove orphaned upload", "upload_rollback_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "an unreferenced blob remains in storage"),
		)
	}
}

// retryable keeps conflict and transient markers and tags everything else as
// transient so clients know to retry.
func retryable(err error, operation string) error {
	if errors.Is(err, services.ErrConflict) || errors.Is(err, services.ErrTransient) {
		return err
	}
	return services.Wrap(services.ErrTransient, "ingestion", operation, "", err)
}
