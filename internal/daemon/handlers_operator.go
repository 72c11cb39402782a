package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"audioconv/internal/api"
	"audioconv/internal/queue"
)

const healthPingTimeout = 3 * time.Second

func (s *httpServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()
	if err := s.daemon.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *httpServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toAPIStatus(s.daemon.Status(r.Context())))
}

func (s *httpServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, raw := range r.URL.Query()["status"] {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", raw))
			return
		}
		statuses = append(statuses, status)
	}
	var (
		jobs []api.Job
		err  error
	)
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		userID, perr := parseUserID(raw)
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		jobs, err = s.jobs.ListForUser(r.Context(), userID, statuses...)
	} else {
		jobs, err = s.jobs.List(r.Context(), statuses...)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []api.Job{}
	}
	writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (s *httpServer) handleJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.jobs.Describe(r.Context(), jobID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, api.JobResponse{Job: *job})
}

func toAPIStatus(status Status) api.DaemonStatus {
	deps := make([]api.DependencyStatus, 0, len(status.Dependencies))
	for _, dep := range status.Dependencies {
		deps = append(deps, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Purpose,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		Database:     status.Database,
		BlobStore:    status.BlobStore,
		LockFilePath: status.LockFilePath,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: deps,
	}
}
