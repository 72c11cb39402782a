package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"audioconv/internal/config"
	"audioconv/internal/logging"
	"audioconv/internal/services"
)

func newFileLogger(t *testing.T) (string, func() string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "test.log")
	return logPath, func() string {
		data, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(data)
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("daemon starting")

	data, err := os.ReadFile(cfg.LogPath())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "daemon starting") {
		t.Fatalf("expected message in log file, got %q", data)
	}
}

func TestConsoleLoggerRendersComponentAndSubject(t *testing.T) {
	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger = logging.NewComponentLogger(logger, "scheduler")
	ctx := services.WithJobID(context.Background(), "0f8fad5b-d9cb-469f-a165-70867728950e")
	ctx = services.WithStage(ctx, "convert")
	logging.WithContext(ctx, logger).Info("conversion finished", logging.Int("bytes", 2048))
	logger.Debug("suppressed")

	content := read()
	if !strings.Contains(content, "INFO scheduler: [job 0f8fad5b convert] conversion finished") {
		t.Fatalf("unexpected console line %q", content)
	}
	if !strings.Contains(content, "bytes=2048") {
		t.Fatalf("expected attribute in %q", content)
	}
	if strings.Contains(content, "suppressed") {
		t.Fatalf("debug line should be filtered at info level: %q", content)
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no source location without development mode: %q", content)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{Format: "json", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithRequestID(context.Background(), "req-1")
	ctx = services.WithUserID(ctx, 7)
	logging.WithContext(ctx, logger).Debug("upload accepted")

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry["msg"] != "upload accepted" || entry["level"] != "debug" {
		t.Fatalf("unexpected entry %#v", entry)
	}
	if entry[logging.FieldCorrelationID] != "req-1" {
		t.Fatalf("missing correlation id: %#v", entry)
	}
	if entry[logging.FieldUserID] != float64(7) {
		t.Fatalf("missing user id: %#v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key: %#v", entry)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WarnWithContext(logger, "stale job reclaimed", "job_reclaimed", logging.Error(errors.New("heartbeat expired")))

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry[logging.FieldEventType] != "job_reclaimed" {
		t.Fatalf("unexpected event type: %#v", entry)
	}
	for _, key := range []string{logging.FieldErrorHint, logging.FieldImpact} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("expected %s default: %#v", key, entry)
		}
	}
}

func TestSilentLevelDropsEverything(t *testing.T) {
	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{Level: logging.LevelName(0), OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Error("should not appear")
	if content := read(); content != "" {
		t.Fatalf("expected silent logger, got %q", content)
	}
}

func TestLevelName(t *testing.T) {
	cases := map[int]string{0: "silent", 1: "error", 2: "warn", 3: "info", 4: "debug", 5: "debug"}
	for verbosity, want := range cases {
		if got := logging.LevelName(verbosity); got != want {
			t.Fatalf("LevelName(%d) = %q want %q", verbosity, got, want)
		}
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLoggerIsSafe(t *testing.T) {
	logging.NewNop().Error("ignored")
	logging.WarnWithContext(nil, "ignored", "noop")
	if logging.WithContext(context.Background(), nil) == nil {
		t.Fatal("expected non-nil logger")
	}
}
