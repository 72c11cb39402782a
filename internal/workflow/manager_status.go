package workflow

import (
	"context"
	"time"

	"audioconv/internal/logging"
	"audioconv/internal/queue"
)

// StatusSummary represents lightweight scheduler diagnostics.
type StatusSummary struct {
	Running    bool
	LastError  string
	LastJob    *queue.Job
	LastTick   time.Time
	QueueStats map[queue.Status]int
	Health     map[string]ComponentHealth
}

// Status returns the latest scheduler information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	lastTick := m.lastTick
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read job stats", logging.Error(err))
	}

	summary := StatusSummary{
		Running:    running,
		LastTick:   lastTick,
		QueueStats: stats,
		Health:     m.componentHealth(ctx),
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		copy := *lastJob
		summary.LastJob = &copy
	}
	return summary
}

func (m *Manager) componentHealth(ctx context.Context) map[string]ComponentHealth {
	health := make(map[string]ComponentHealth, 2)
	if m.converter != nil {
		if err := m.converter.HealthCheck(ctx); err != nil {
			health["converter"] = UnhealthyComponent("converter", err.Error())
		} else {
			health["converter"] = HealthyComponent("converter")
		}
	}
	if m.blobs != nil {
		name := "blob"
		if err := m.blobs.HealthCheck(ctx); err != nil {
			health[name] = UnhealthyComponent(m.blobs.Name(), err.Error())
		} else {
			health[name] = HealthyComponent(m.blobs.Name())
		}
	}
	return health
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		copy := *job
		m.lastJob = &copy
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
