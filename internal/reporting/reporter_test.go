package reporting

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"

	"audioconv/internal/config"
	"audioconv/internal/logging"
	"audioconv/internal/services"
)

type captured struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (c *captured) beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	return nil
}

func (c *captured) all() []*sentry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*sentry.Event(nil), c.events...)
}

func newCapturingReporter(t *testing.T) (*Reporter, *captured) {
	t.Helper()
	sink := &captured{}
	reporter, err := newReporter(sentry.ClientOptions{
		Dsn:        "https://public@sentry.invalid/1",
		BeforeSend: sink.beforeSend,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("newReporter: %v", err)
	}
	return reporter, sink
}

func TestNewWithoutDSNIsDisabled(t *testing.T) {
	cfg := config.Default()
	reporter, err := New(&cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if reporter.Enabled() {
		t.Fatal("expected reporter without dsn to be disabled")
	}
	reporter.CaptureError(context.Background(), "workflow", errors.New("ignored"))
	reporter.CapturePanic(context.Background(), "workflow", "ignored")
	reporter.Flush(DefaultFlushTimeout)
}

func TestNilReporterIsSafe(t *testing.T) {
	var reporter *Reporter
	if reporter.Enabled() {
		t.Fatal("nil reporter must be disabled")
	}
	reporter.CaptureError(context.Background(), "api", errors.New("ignored"))
	reporter.Flush(0)
}

func TestInvalidDSNIsConfigurationError(t *testing.T) {
	cfg := config.Default()
	cfg.Sentry.DSN = "not a dsn"
	if _, err := New(&cfg, logging.NewNop()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCaptureErrorTagsContext(t *testing.T) {
	reporter, sink := newCapturingReporter(t)

	ctx := services.WithJobID(context.Background(), "job-1")
	ctx = services.WithRequestID(ctx, "req-9")
	reporter.CaptureError(ctx, "workflow", errors.New("conversion exploded"))

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	tags := events[0].Tags
	if tags[logging.FieldComponent] != "workflow" {
		t.Fatalf("unexpected component tag: %v", tags)
	}
	if tags[logging.FieldJobID] != "job-1" || tags[logging.FieldCorrelationID] != "req-9" {
		t.Fatalf("context tags missing: %v", tags)
	}
}

func TestCapturePanicUsesFatalLevel(t *testing.T) {
	reporter, sink := newCapturingReporter(t)
	reporter.CapturePanic(context.Background(), "api", "boom")

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].Level != sentry.LevelFatal {
		t.Fatalf("expected fatal level, got %q", events[0].Level)
	}
}
