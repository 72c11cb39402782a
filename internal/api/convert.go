package api

import (
	"slices"
	"time"

	"audioconv/internal/queue"
	"audioconv/internal/workflow"
)

// FromJob converts a job record to its API representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		JobID:             job.JobID,
		UserID:            job.UserID,
		Status:            string(job.Status),
		SourceFormat:      job.SourceFormat,
		SourceContentType: job.SourceContentType,
		SourceSize:        job.SourceSize,
		ErrorMessage:      job.ErrorMessage,
		CreatedAt:         FormatTime(job.CreatedAt),
		UpdatedAt:         FormatTime(job.UpdatedAt),
	}
	if job.HeartbeatAt != nil {
		dto.HeartbeatAt = FormatTime(*job.HeartbeatAt)
	}
	return dto
}

// FromJobs converts a slice of job records into API DTOs.
func FromJobs(jobs []*queue.Job) []Job {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromStatusSummary converts a scheduler status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:         summary.Running,
		QueueStats:      MergeQueueStats(summary.QueueStats),
		LastError:       summary.LastError,
		LastTick:        FormatTime(summary.LastTick),
		ComponentHealth: ComponentHealthSlice(summary.Health),
	}
	if summary.LastJob != nil {
		last := FromJob(summary.LastJob)
		wf.LastJob = &last
	}
	return wf
}

// MergeQueueStats produces a string-keyed representation of job counts with
// every known status present.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = 0
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// ComponentHealthSlice converts a health map into a deterministic slice.
func ComponentHealthSlice(health map[string]workflow.ComponentHealth) []ComponentHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]ComponentHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		detail := h.Detail
		if h.Ready && h.Name != "" && h.Name != name {
			detail = h.Name
		}
		out = append(out, ComponentHealth{Name: name, Ready: h.Ready, Detail: detail})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
