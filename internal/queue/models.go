package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a conversion job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConverting Status = "converting"
	StatusFinished   Status = "finished"
	StatusNotValid   Status = "not_valid"
	StatusError      Status = "error"
)

// InterruptedMessage is recorded on jobs whose conversion stopped heartbeating.
const InterruptedMessage = "conversion interrupted"

var allStatuses = []Status{
	StatusPending,
	StatusConverting,
	StatusFinished,
	StatusNotValid,
	StatusError,
}

var terminalStatuses = map[Status]struct{}{
	StatusFinished: {},
	StatusNotValid: {},
	StatusError:    {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transition can leave the status.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// IsFailure reports whether the status is a terminal failure.
func (s Status) IsFailure() bool {
	return s == StatusNotValid || s == StatusError
}

// User is a registered API client.
type User struct {
	UserID      int64
	DisplayName string
	SecretToken string
	CreatedAt   time.Time
}

// Job is one uploaded recording tracked through conversion.
type Job struct {
	JobID             string
	UserID            int64
	Status            Status
	BlobRef           string
	SourceFormat      string
	SourceContentType string
	SourceSize        int64
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	HeartbeatAt       *time.Time
}

// DatabaseHealth captures diagnostic information about the record store.
type DatabaseHealth struct {
	Driver         string
	Location       string
	Reachable      bool
	SchemaVersion  int64
	TablesPresent  []string
	MissingTables  []string
	IntegrityCheck bool
	TotalJobs      int
	TotalUsers     int
	Error          string
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Converting int
	Finished   int
	NotValid   int
	Errored    int
}
