package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"audioconv/internal/blob"
	"audioconv/internal/logging"
	"audioconv/internal/queue"
	"audioconv/internal/services"
)

const (
	stageConvert      = "convert"
	maxFailureMessage = 512
)

// StatusForError maps a conversion outcome onto the terminal job status.
// Invalid input becomes not_valid; every other failure becomes error.
func StatusForError(err error) queue.Status {
	switch {
	case err == nil:
		return queue.StatusFinished
	case errors.Is(err, services.ErrInvalidInput):
		return queue.StatusNotValid
	default:
		return queue.StatusError
	}
}

// processJob claims and converts a single job. It returns an empty status
// when the claim was lost to another scheduler. The returned error only
// reports a failed claim; conversion failures are persisted on the job.
func (m *Manager) processJob(ctx context.Context, job *queue.Job) (status queue.Status, err error) {
	claimed, err := m.store.ClaimJob(ctx, job.JobID)
	if err != nil {
		return "", err
	}
	if !claimed {
		m.logger.Debug("job claimed elsewhere; skipping", logging.String(logging.FieldJobID, job.JobID))
		return "", nil
	}

	jobCtx := services.WithJobID(ctx, job.JobID)
	jobCtx = services.WithUserID(jobCtx, job.UserID)
	jobCtx = services.WithStage(jobCtx, stageConvert)
	logger := logging.WithContext(jobCtx, m.logger)
	started := time.Now()
	logger.Info("conversion started",
		logging.String(logging.FieldEventType, "conversion_start"),
		logging.Int64("source_size", job.SourceSize),
	)

	hbCtx, stopHeartbeat := context.WithCancel(jobCtx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.JobID)

	outcome := queue.StatusError
	var convErr error
	defer func() {
		if recovered := recover(); recovered != nil {
			outcome = queue.StatusError
			convErr = fmt.Errorf("%w: conversion panicked: %v", services.ErrConversionFault, recovered)
			logging.ErrorWithContext(logger, "conversion panicked", "conversion_panic",
				logging.Any("panic", recovered),
				logging.String(logging.FieldErrorHint, "report this job id with the daemon log"),
			)
			m.reporter.CapturePanic(jobCtx, "scheduler", recovered)
		}
		stopHeartbeat()
		hbWG.Wait()
		m.commit(jobCtx, logger, job, outcome, convErr, time.Since(started))
		status = outcome
	}()

	convErr = m.convertJob(jobCtx, job)
	outcome = StatusForError(convErr)
	return outcome, nil
}

func (m *Manager) convertJob(ctx context.Context, job *queue.Job) error {
	src, err := blob.Get(ctx, m.blobs, job.BlobRef)
	if err != nil {
		return fmt.Errorf("read source blob: %w", err)
	}

	convCtx := ctx
	if m.conversionTimeout > 0 {
		var cancel context.CancelFunc
		convCtx, cancel = context.WithTimeout(ctx, m.conversionTimeout)
		defer cancel()
	}
	out, err := m.converter.Convert(convCtx, src, job.SourceFormat)
	if err != nil {
		if errors.Is(convCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
			return services.Wrap(services.ErrTimeout, "scheduler", "convert",
				fmt.Sprintf("exceeded %s", m.conversionTimeout), err)
		}
		return err
	}

	if err := m.blobs.Replace(ctx, job.BlobRef, out); err != nil {
		return fmt.Errorf("store converted blob: %w", err)
	}
	return nil
}

// commit writes the terminal status with a context detached from shutdown.
func (m *Manager) commit(ctx context.Context, logger *slog.Logger, job *queue.Job, status queue.Status, convErr error, elapsed time.Duration) {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()

	message := failureMessage(convErr)
	if err := m.store.FinishJob(commitCtx, job.JobID, status, message); err != nil {
		if errors.Is(err, queue.ErrInvalidTransition) {
			logging.WarnWithContext(logger, "job already finalized elsewhere; outcome discarded", "job_commit_conflict",
				logging.String("status", string(status)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the stored terminal status is kept"),
			)
		} else {
			logging.ErrorWithContext(logger, "failed to persist conversion outcome", "job_commit_failed",
				logging.String("status", string(status)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the stale sweep will mark the job as error"),
			)
			m.reporter.CaptureError(ctx, "scheduler", err)
		}
		m.setLastError(err)
		return
	}

	finished := *job
	finished.Status = status
	finished.ErrorMessage = message
	finished.HeartbeatAt = nil
	finished.UpdatedAt = time.Now().UTC()
	m.setLastJob(&finished)

	attrs := []logging.Attr{
		logging.String("status", string(status)),
		logging.Duration("elapsed", elapsed),
	}
	switch status {
	case queue.StatusFinished:
		logger.Info("conversion finished",
			logging.Args(append(attrs, logging.String(logging.FieldEventType, "conversion_complete"))...)...)
	case queue.StatusNotValid:
		logger.Info("upload is not valid audio",
			logging.Args(append(attrs, logging.String(logging.FieldEventType, "conversion_rejected"), logging.Error(convErr))...)...)
	default:
		m.setLastError(convErr)
		logging.ErrorWithContext(logger, "conversion failed", "conversion_failed", append(attrs, logging.Error(convErr))...)
		m.reporter.CaptureError(ctx, "scheduler", convErr)
	}
}

func failureMessage(err error) string {
	if err == nil {
		return ""
	}
	message := strings.TrimSpace(err.Error())
	if len(message) > maxFailureMessage {
		message = message[:maxFailureMessage]
	}
	return message
}
