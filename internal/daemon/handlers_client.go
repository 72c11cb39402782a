package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"audioconv/internal/api"
	"audioconv/internal/logging"
	"audioconv/internal/services"
)

const (
	maxJSONBodyBytes    = 64 << 10
	multipartMemory     = 32 << 20
	uploadFormField     = "audio"
	notFoundClientError = "Audio with this id and id of user not found"
)

func (s *httpServer) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	var req api.RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, api.ValidationErrorResponse{
				Error:  "validation failed",
				Fields: validationErrorsToMap(verrs),
			})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.users.RegisterUser(r.Context(), req.UserName)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.RegisterUserResponse{UserID: user.UserID, Token: user.SecretToken})
}

func (s *httpServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	token := r.URL.Query().Get("token")

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeMultipartError(w, err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, _, err := r.FormFile(uploadFormField)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("multipart field %q is required", uploadFormField))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	handle, err := s.ingest.Upload(r.Context(), userID, token, data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	logging.WithContext(services.WithJobID(r.Context(), handle.JobID), s.logger).Info(
		"recording accepted",
		logging.Int64("user_id", userID),
		logging.Int("bytes", len(data)),
	)
	writeJSON(w, http.StatusOK, api.UploadResponse{
		URL:    handle.URL(s.publicURL),
		JobID:  handle.JobID,
		UserID: handle.UserID,
	})
}

func (s *httpServer) handleFetch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	jobID := strings.TrimSpace(query.Get("id"))
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	userID, err := parseUserID(query.Get("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.retrieve.Fetch(r.Context(), jobID, userID, query.Get("token"))
	if err != nil {
		if errors.Is(err, api.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, notFoundClientError)
			return
		}
		s.fail(w, r, err)
		return
	}
	defer result.Body.Close()

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(result.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.mp3", result.Job.JobID))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, result.Body); err != nil {
		logging.WithContext(r.Context(), s.logger).Warn("result stream interrupted", logging.Error(err))
	}
}

func parseUserID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("user_id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("user_id must be a positive integer")
	}
	return id, nil
}

func writeMultipartError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "too large") {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid multipart form")
}

func validationErrorsToMap(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := jsonFieldName(fe.Field())
		switch fe.Tag() {
		case "required":
			out[field] = "is required"
		case "max":
			out[field] = "exceeds maximum length"
		default:
			out[field] = "is invalid"
		}
	}
	return out
}

func jsonFieldName(field string) string {
	switch field {
	case "UserName":
		return "user_name"
	default:
		return strings.ToLower(field)
	}
}
