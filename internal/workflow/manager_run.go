package workflow

import (
	"context"
	"errors"
	"time"

	"audioconv/internal/logging"
	"audioconv/internal/queue"
)

// TickResult counts what a single tick did.
type TickResult struct {
	// LockHeld is set when another daemon owned the tick lock and nothing ran.
	LockHeld  bool  `json:"lockHeld"`
	Reclaimed int64 `json:"reclaimed"`
	Claimed   int   `json:"claimed"`
	Skipped   int   `json:"skipped"`
	Finished  int   `json:"finished"`
	NotValid  int   `json:"notValid"`
	Errored   int   `json:"errored"`
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("scheduler already running")
	}
	if m.pollInterval <= 0 {
		m.mu.Unlock()
		return errors.New("scheduler interval must be positive")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("scheduler started",
		logging.Duration("interval", m.pollInterval),
		logging.Duration("conversion_timeout", m.conversionTimeout),
	)
	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for the current job to
// commit its terminal status.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("scheduler stopped")
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, err := m.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.handleTickError(ctx, err)
			continue
		}
		m.waitForNextTick(ctx)
	}
}

// RunOnce performs one scheduler tick: lock, stale sweep, then every pending
// job in creation order.
func (m *Manager) RunOnce(ctx context.Context) (TickResult, error) {
	var result TickResult

	if m.locker != nil {
		release, ok, err := m.locker.TryLock(ctx)
		if err != nil {
			return result, err
		}
		if !ok {
			m.logger.Debug("tick lock held elsewhere; skipping tick")
			result.LockHeld = true
			return result, nil
		}
		defer release()
	}

	m.mu.Lock()
	m.lastTick = time.Now()
	m.mu.Unlock()

	reclaimed, err := m.heartbeat.ReclaimStale(ctx)
	if err != nil {
		logging.WarnWithContext(m.logger, "stale conversion sweep failed; stuck jobs may remain", "heartbeat_reclaim_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check record store access"),
		)
	}
	result.Reclaimed = reclaimed

	jobs, err := m.store.PendingJobs(ctx, 0)
	if err != nil {
		return result, err
	}
	if len(jobs) > 0 {
		m.logger.Debug("pending jobs found", logging.Int("count", len(jobs)))
	}

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		status, err := m.processJob(ctx, job)
		if err != nil {
			m.setLastError(err)
			logging.WarnWithContext(m.logger, "claim failed; job left for a later tick", "job_claim_failed",
				logging.String(logging.FieldJobID, job.JobID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check record store access"),
			)
			continue
		}
		switch status {
		case "":
			result.Skipped++
			continue
		case queue.StatusFinished:
			result.Finished++
		case queue.StatusNotValid:
			result.NotValid++
		default:
			result.Errored++
		}
		result.Claimed++
	}
	return result, nil
}

func (m *Manager) handleTickError(ctx context.Context, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(m.logger, "scheduler tick failed", "scheduler_tick_failed",
		logging.Error(err),
		logging.Duration("retry_in", m.errorRetry),
		logging.String(logging.FieldErrorHint, "check record store and redis access"),
	)
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.errorRetry):
	}
}

func (m *Manager) waitForNextTick(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.pollInterval):
	}
}
