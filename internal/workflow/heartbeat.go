package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"audioconv/internal/logging"
	"audioconv/internal/queue"
)

// HeartbeatMonitor manages job heartbeats and stale job reclamation.
type HeartbeatMonitor struct {
	store             *queue.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor. A zero timeout disables the
// stale sweep.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:             store,
		logger:            logger,
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// ReclaimStale marks converting jobs that stopped heartbeating as error.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context) (int64, error) {
	if h.heartbeatTimeout <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-h.heartbeatTimeout)
	reclaimed, err := h.store.ReclaimStaleConverting(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		logging.WarnWithContext(h.logger, "marked stale conversions as error", "heartbeat_reclaim",
			logging.Int64("count", reclaimed),
			logging.Duration("heartbeat_timeout", h.heartbeatTimeout),
			logging.String(logging.FieldImpact, "interrupted jobs will not be retried"),
			logging.String(logging.FieldErrorHint, "ask the uploader to submit the recording again"),
		)
	}
	return reclaimed, nil
}

// StartLoop refreshes the heartbeat of jobID until ctx is cancelled.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, jobID string) {
	defer wg.Done()
	if h.heartbeatInterval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger.With(logging.String(logging.FieldComponent, "scheduler-heartbeat")))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Debug("heartbeat update cancelled")
				} else {
					logger.Warn("heartbeat update failed", logging.Error(err))
				}
			}
		}
	}
}
