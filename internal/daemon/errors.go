package daemon

import (
	"encoding/json"
	"errors"
	"net/http"

	"audioconv/internal/api"
	"audioconv/internal/logging"
	"audioconv/internal/services"
)

const retryAfterSeconds = "5"

// statusForError maps service error markers onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrJobFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrNotReady):
		return http.StatusLocked
	case errors.Is(err, services.ErrTransient), errors.Is(err, services.ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: message})
}

// fail renders err with its mapped status. Server-side failures are logged
// and reported; their details are not echoed to the client.
func (s *httpServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	body := api.ErrorResponse{Error: err.Error()}

	var notReady *api.NotReadyError
	if errors.As(err, &notReady) {
		body.Status = string(notReady.Status)
	}

	if status >= http.StatusInternalServerError {
		logger := logging.WithContext(r.Context(), s.logger)
		if services.IsRetryable(err) {
			w.Header().Set("Retry-After", retryAfterSeconds)
			logger.Warn("request failed with retryable error", logging.Error(err), logging.String("path", r.URL.Path))
		} else {
			logging.ErrorWithContext(logger, "request failed", "http_request_failed",
				logging.Error(err),
				logging.String("path", r.URL.Path),
			)
		}
		s.daemon.reporter.CaptureError(r.Context(), "http", err)
		if status == http.StatusInternalServerError {
			body.Error = "internal server error"
		}
	}
	writeJSON(w, status, body)
}
