package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a conversion job in a transport-friendly format.
type Job struct {
	JobID             string `json:"jobId"`
	UserID            int64  `json:"userId"`
	Status            string `json:"status"`
	SourceFormat      string `json:"sourceFormat"`
	SourceContentType string `json:"sourceContentType,omitempty"`
	SourceSize        int64  `json:"sourceSize"`
	ErrorMessage      string `json:"errorMessage,omitempty"`
	CreatedAt         string `json:"createdAt,omitempty"`
	UpdatedAt         string `json:"updatedAt,omitempty"`
	HeartbeatAt       string `json:"heartbeatAt,omitempty"`
}

// WorkflowStatus summarizes scheduler execution state.
type WorkflowStatus struct {
	Running         bool              `json:"running"`
	QueueStats      map[string]int    `json:"queueStats"`
	LastError       string            `json:"lastError,omitempty"`
	LastJob         *Job              `json:"lastJob,omitempty"`
	LastTick        string            `json:"lastTick,omitempty"`
	ComponentHealth []ComponentHealth `json:"componentHealth"`
}

// ComponentHealth mirrors readiness reporting for scheduler dependencies.
type ComponentHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	Database     string             `json:"database"`
	BlobStore    string             `json:"blobStore"`
	LockFilePath string             `json:"lockFilePath"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// JobListResponse wraps a collection of jobs for API responses.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// RegisterUserRequest is the body of POST /user.
type RegisterUserRequest struct {
	UserName string `json:"user_name" validate:"required,max=250"`
}

// RegisterUserResponse carries the credentials of a new client.
type RegisterUserResponse struct {
	UserID int64  `json:"user_id"`
	Token  string `json:"token"`
}

// UploadResponse is returned after an accepted upload.
type UploadResponse struct {
	URL    string `json:"url"`
	JobID  string `json:"job_id"`
	UserID int64  `json:"user_id"`
}

// ErrorResponse is the body of every failed client request. Status is set
// when the failure concerns a job that exists but is not fetchable.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status,omitempty"`
}

// ValidationErrorResponse lists per-field request validation failures.
type ValidationErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}
