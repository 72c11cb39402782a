package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"audioconv/internal/api"
	"audioconv/internal/queue"
	"audioconv/internal/testsupport"
)

type client struct {
	t      *testing.T
	server *httptest.Server
}

func newClient(t *testing.T, e *env) *client {
	t.Helper()
	server := httptest.NewServer(e.daemon.Handler())
	t.Cleanup(server.Close)
	return &client{t: t, server: server}
}

func (c *client) do(req *http.Request) (*http.Response, []byte) {
	c.t.Helper()
	resp, err := c.server.Client().Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func (c *client) register(name string) (*http.Response, []byte) {
	c.t.Helper()
	payload, _ := json.Marshal(map[string]string{"user_name": name})
	req, _ := http.NewRequest(http.MethodPost, c.server.URL+"/user", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *client) mustRegister(name string) api.RegisterUserResponse {
	c.t.Helper()
	resp, body := c.register(name)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("register %q: status %d body %s", name, resp.StatusCode, body)
	}
	var out api.RegisterUserResponse
	if err := json.Unmarshal(body, &out); err != nil {
		c.t.Fatalf("decode register response: %v", err)
	}
	return out
}

func (c *client) upload(userID int64, token string, data []byte) (*http.Response, []byte) {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", "clip.wav")
	if err != nil {
		c.t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()

	query := url.Values{}
	query.Set("user_id", strconv.FormatInt(userID, 10))
	query.Set("token", token)
	req, _ := http.NewRequest(http.MethodPost, c.server.URL+"/record?"+query.Encode(), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func (c *client) mustUpload(userID int64, token string, data []byte) api.UploadResponse {
	c.t.Helper()
	resp, body := c.upload(userID, token, data)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("upload: status %d body %s", resp.StatusCode, body)
	}
	var out api.UploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		c.t.Fatalf("decode upload response: %v", err)
	}
	return out
}

func (c *client) fetch(jobID string, userID int64) (*http.Response, []byte) {
	c.t.Helper()
	query := url.Values{}
	query.Set("id", jobID)
	query.Set("user_id", strconv.FormatInt(userID, 10))
	req, _ := http.NewRequest(http.MethodGet, c.server.URL+"/record?"+query.Encode(), nil)
	return c.do(req)
}

func (c *client) get(path, bearer string) (*http.Response, []byte) {
	c.t.Helper()
	req, _ := http.NewRequest(http.MethodGet, c.server.URL+path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return c.do(req)
}

func decodeError(t *testing.T, body []byte) api.ErrorResponse {
	t.Helper()
	var out api.ErrorResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode error body %s: %v", body, err)
	}
	return out
}

func TestRegisterUploadConvertFetch(t *testing.T) {
	e := newEnv(t)
	c := newClient(t, e)

	creds := c.mustRegister("alice")
	if creds.UserID <= 0 || creds.Token == "" {
		t.Fatalf("unexpected credentials %+v", creds)
	}

	wav := testsupport.WAVBytes(t, 8000, 0.1)
	uploaded := c.mustUpload(creds.UserID, creds.Token, wav)
	if uploaded.JobID == "" || uploaded.UserID != creds.UserID {
		t.Fatalf("unexpected upload response %+v", uploaded)
	}
	wantURL := e.cfg.PublicBaseURL() + "/record?id=" + uploaded.JobID + "&user_id=" + strconv.FormatInt(creds.UserID, 10)
	if uploaded.URL != wantURL {
		t.Fatalf("unexpected url %q want %q", uploaded.URL, wantURL)
	}

	resp, body := c.fetch(uploaded.JobID, creds.UserID)
	if resp.StatusCode != http.StatusLocked {
		t.Fatalf("expected 423 before conversion, got %d body %s", resp.StatusCode, body)
	}
	notReady := decodeError(t, body)
	if notReady.Status != string(queue.StatusPending) {
		t.Fatalf("expected pending status in body, got %+v", notReady)
	}
	if notReady.Error != "Record not ready, current status=pending" {
		t.Fatalf("unexpected not-ready message %q", notReady.Error)
	}

	if _, err := e.workflow.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	resp, body = c.fetch(uploaded.JobID, creds.UserID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after conversion, got %d body %s", resp.StatusCode, body)
	}
	if got := resp.Header.Get("Content-Type"); got != "audio/mpeg" {
		t.Fatalf("unexpected content type %q", got)
	}
	wantDisposition := "attachment; filename=" + uploaded.JobID + ".mp3"
	if got := resp.Header.Get("Content-Disposition"); got != wantDisposition {
		t.Fatalf("unexpected content disposition %q", got)
	}
	if !bytes.HasPrefix(body, mp3Header) {
		t.Fatalf("expected converted body, got %q", body[:min(len(body), 16)])
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected correlation id header")
	}
}

func TestInvalidUploadIsPermanentlyUnavailable(t *testing.T) {
	e := newEnv(t)
	c := newClient(t, e)
	creds := c.mustRegister("bob")
	uploaded := c.mustUpload(creds.UserID, creds.Token, []byte("definitely not audio"))

	if _, err := e.workflow.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	resp, body := c.fetch(uploaded.JobID, creds.UserID)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for rejected input, got %d body %s", resp.StatusCode, body)
	}
	if got := decodeError(t, body).Status; got != string(queue.StatusNotValid) {
		t.Fatalf("expected not_valid status, got %q", got)
	}
}

func TestFetchWithLostResultIsServerError(t *testing.T) {
	e := newEnv(t)
	c := newClient(t, e)
	creds := c.mustRegister("grace")
	uploaded := c.mustUpload(creds.UserID, creds.Token, testsupport.WAVBytes(t, 8000, 0.05))
	if _, err := e.workflow.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if err := os.Remove(filepath.Join(e.cfg.ContainerDir(), uploaded.JobID)); err != nil {
		t.Fatalf("remove result: %v", err)
	}

	resp, body := c.fetch(uploaded.JobID, creds.UserID)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 for lost result, got %d body %s", resp.StatusCode, body)
	}
	if got := decodeError(t, body).Error; got != "internal server error" {
		t.Fatalf("server fault details must not leak, got %q", got)
	}
}

func TestRegisterRejectsDuplicateAndInvalidNames(t *testing.T) {
	c := newClient(t, newEnv(t))
	c.mustRegister("carol")

	resp, body := c.register("carol")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate name, got %d body %s", resp.StatusCode, body)
	}

	resp, body = c.register("")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty name, got %d", resp.StatusCode)
	}
	var verr api.ValidationErrorResponse
	if err := json.Unmarshal(body, &verr); err != nil {
		t.Fatalf("decode validation body: %v", err)
	}
	if verr.Fields["user_name"] != "is required" {
		t.Fatalf("unexpected field errors %+v", verr.Fields)
	}

	resp, _ = c.register(strings.Repeat("x", 251))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for long name, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, c.server.URL+"/user", strings.NewReader("{"))
	resp, _ = c.do(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", resp.StatusCode)
	}
}

func TestUploadUnauthorizedIsUniform(t *testing.T) {
	c := newClient(t, newEnv(t))
	creds := c.mustRegister("dave")
	wav := testsupport.WAVBytes(t, 8000, 0.05)

	wrongToken, wrongBody := c.upload(creds.UserID, "not-the-token", wav)
	missingUser, missingBody := c.upload(creds.UserID+1000, creds.Token, wav)
	if wrongToken.StatusCode != http.StatusUnauthorized || missingUser.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d and %d", wrongToken.StatusCode, missingUser.StatusCode)
	}
	if !bytes.Equal(wrongBody, missingBody) {
		t.Fatalf("expected identical bodies, got %s and %s", wrongBody, missingBody)
	}
}

func TestUploadRequestErrors(t *testing.T) {
	e := newEnv(t)
	e.cfg.API.MaxUploadBytes = 4 << 10
	c := newClient(t, newEnvWithStore(t, e.cfg, e.store))
	creds := c.mustRegister("erin")

	resp, _ := c.upload(creds.UserID, creds.Token, bytes.Repeat([]byte{1}, 16<<10))
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversized upload, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, c.server.URL+"/record?user_id=abc&token=x", nil)
	resp, _ = c.do(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad user_id, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPost, c.server.URL+"/record?user_id=1&token=x", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	resp, _ = c.do(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-multipart body, got %d", resp.StatusCode)
	}
}

func TestFetchScopedToOwner(t *testing.T) {
	e := newEnv(t)
	c := newClient(t, e)
	owner := c.mustRegister("frank")
	other := c.mustRegister("grace")
	uploaded := c.mustUpload(owner.UserID, owner.Token, testsupport.WAVBytes(t, 8000, 0.05))

	resp, body := c.fetch(uploaded.JobID, other.UserID)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's job, got %d", resp.StatusCode)
	}
	if got := decodeError(t, body).Error; got != "Audio with this id and id of user not found" {
		t.Fatalf("unexpected not found message %q", got)
	}

	resp, _ = c.fetch("", owner.UserID)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing id, got %d", resp.StatusCode)
	}
}

func TestOperatorRoutesRequireBearerToken(t *testing.T) {
	e := newEnv(t, testsupport.WithAPIToken("s3cret"))
	c := newClient(t, e)
	creds := c.mustRegister("heidi")
	c.mustUpload(creds.UserID, creds.Token, testsupport.WAVBytes(t, 8000, 0.05))

	if resp, _ := c.get("/api/status", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp, _ := c.get("/api/jobs", "wrong"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", resp.StatusCode)
	}

	resp, body := c.get("/api/status", "s3cret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for status, got %d body %s", resp.StatusCode, body)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Workflow.QueueStats[string(queue.StatusPending)] != 1 {
		t.Fatalf("expected one pending job in stats, got %+v", status.Workflow.QueueStats)
	}
	if len(status.Dependencies) != 1 {
		t.Fatalf("expected ffmpeg dependency entry, got %+v", status.Dependencies)
	}

	resp, body = c.get("/api/jobs?status=pending", "s3cret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for jobs, got %d", resp.StatusCode)
	}
	var list api.JobListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(list.Jobs) != 1 || list.Jobs[0].UserID != creds.UserID {
		t.Fatalf("unexpected job list %+v", list.Jobs)
	}

	resp, body = c.get("/api/jobs/"+list.Jobs[0].JobID, "s3cret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for job detail, got %d", resp.StatusCode)
	}
	var detail api.JobResponse
	if err := json.Unmarshal(body, &detail); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if detail.Job.Status != string(queue.StatusPending) {
		t.Fatalf("unexpected job detail %+v", detail.Job)
	}

	if resp, _ := c.get("/api/jobs/missing", "s3cret"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", resp.StatusCode)
	}
	if resp, _ := c.get("/api/jobs?status=bogus", "s3cret"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.StatusCode)
	}
}

func TestJobsFilterByUser(t *testing.T) {
	e := newEnv(t)
	c := newClient(t, e)
	ivan := c.mustRegister("ivan")
	judy := c.mustRegister("judy")
	c.mustUpload(ivan.UserID, ivan.Token, testsupport.WAVBytes(t, 8000, 0.05))
	judyHandle := c.mustUpload(judy.UserID, judy.Token, testsupport.WAVBytes(t, 8000, 0.05))

	resp, body := c.get("/api/jobs?user_id="+strconv.FormatInt(judy.UserID, 10), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", resp.StatusCode, body)
	}
	var list api.JobListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(list.Jobs) != 1 || list.Jobs[0].UserID != judy.UserID {
		t.Fatalf("expected judy's job only, got %+v (upload %+v)", list.Jobs, judyHandle)
	}

	if resp, _ := c.get("/api/jobs?user_id=zero", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad user_id, got %d", resp.StatusCode)
	}
}

func TestHealthzReportsStoreFailure(t *testing.T) {
	e := newEnv(t)
	c := newClient(t, e)

	if resp, _ := c.get("/healthz", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if err := e.store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	if resp, _ := c.get("/healthz", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after store close, got %d", resp.StatusCode)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	c := newClient(t, newEnv(t))
	req, _ := http.NewRequest(http.MethodGet, c.server.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	resp, _ := c.do(req)
	if got := resp.Header.Get("X-Request-ID"); got != "trace-123" {
		t.Fatalf("expected inbound request id to be echoed, got %q", got)
	}
}

func TestCORSAllowsConfiguredOrigins(t *testing.T) {
	c := newClient(t, newEnv(t, testsupport.WithCORSOrigins("https://app.example.com")))

	req, _ := http.NewRequest(http.MethodGet, c.server.URL+"/healthz", nil)
	req.Header.Set("Origin", "https://app.example.com")
	resp, _ := c.do(req)
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}

	req, _ = http.NewRequest(http.MethodGet, c.server.URL+"/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, _ = c.do(req)
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin for foreign site: %q", got)
	}
}

func TestCORSDisabledByDefault(t *testing.T) {
	c := newClient(t, newEnv(t))
	req, _ := http.NewRequest(http.MethodGet, c.server.URL+"/healthz", nil)
	req.Header.Set("Origin", "https://app.example.com")
	resp, _ := c.do(req)
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS headers without configured origins, got %q", got)
	}
}
