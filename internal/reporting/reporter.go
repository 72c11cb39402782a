package reporting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"audioconv/internal/config"
	"audioconv/internal/logging"
	"audioconv/internal/services"
)

// DefaultFlushTimeout bounds how long shutdown waits for queued events.
const DefaultFlushTimeout = 2 * time.Second

// Reporter captures errors and panics with job and request tags.
type Reporter struct {
	hub    *sentry.Hub
	logger *slog.Logger
}

// New builds a reporter from the [sentry] section. An empty DSN yields a
// disabled reporter.
func New(cfg *config.Config, logger *slog.Logger) (*Reporter, error) {
	logger = logging.NewComponentLogger(logger, "reporting")
	if cfg == nil || cfg.Sentry.DSN == "" {
		return &Reporter{logger: logger}, nil
	}
	return newReporter(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		Release:     cfg.Sentry.Release,
	}, logger)
}

func newReporter(opts sentry.ClientOptions, logger *slog.Logger) (*Reporter, error) {
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "reporting", "init", "sentry client", err)
	}
	logger.Info("error reporting enabled", logging.String("environment", opts.Environment))
	return &Reporter{hub: sentry.NewHub(client, sentry.NewScope()), logger: logger}, nil
}

// Enabled reports whether events leave the process.
func (r *Reporter) Enabled() bool {
	return r != nil && r.hub != nil
}

// CaptureError sends err tagged with the component plus whatever job, user
// and request ids ctx carries.
func (r *Reporter) CaptureError(ctx context.Context, component string, err error) {
	if !r.Enabled() || err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		applyTags(ctx, scope, component)
		r.hub.CaptureException(err)
	})
}

// CapturePanic sends a recovered panic value.
func (r *Reporter) CapturePanic(ctx context.Context, component string, recovered any) {
	if !r.Enabled() || recovered == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		applyTags(ctx, scope, component)
		scope.SetLevel(sentry.LevelFatal)
		if err, ok := recovered.(error); ok {
			r.hub.CaptureException(err)
			return
		}
		r.hub.CaptureException(fmt.Errorf("panic: %v", recovered))
	})
}

// Flush waits up to timeout for queued events.
func (r *Reporter) Flush(timeout time.Duration) {
	if !r.Enabled() {
		return
	}
	if !r.hub.Flush(timeout) {
		r.logger.Warn("error reporting flush timed out", logging.Duration("timeout", timeout))
	}
}

func applyTags(ctx context.Context, scope *sentry.Scope, component string) {
	if component != "" {
		scope.SetTag(logging.FieldComponent, component)
	}
	if ctx == nil {
		return
	}
	if id, ok := services.JobIDFromContext(ctx); ok {
		scope.SetTag(logging.FieldJobID, id)
	}
	if id, ok := services.UserIDFromContext(ctx); ok {
		scope.SetTag(logging.FieldUserID, fmt.Sprintf("%d", id))
	}
	if id, ok := services.RequestIDFromContext(ctx); ok {
		scope.SetTag(logging.FieldCorrelationID, id)
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		scope.SetTag(logging.FieldStage, stage)
	}
}
