// Package api holds the client-facing services and the transport DTOs.
//
// UserService registers clients. IngestionService checks a client's id and
// token, stores the upload and records a pending job, removing the blob again
// when the record cannot be written. RetrievalService gates downloads on
// ownership and job status and reports not-ready jobs through NotReadyError.
//
// Every failure carries one of the services sentinels so the HTTP layer can
// map it to a status code without inspecting messages. Unknown users and
// wrong tokens share the single ErrBadCredentials value.
//
// The DTOs (Job, WorkflowStatus, DaemonStatus) use camelCase JSON tags and
// RFC3339 timestamps with milliseconds.
package api
