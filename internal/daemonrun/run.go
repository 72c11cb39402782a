package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"audioconv/internal/blob"
	"audioconv/internal/config"
	"audioconv/internal/convert"
	"audioconv/internal/daemon"
	"audioconv/internal/logging"
	"audioconv/internal/preflight"
	"audioconv/internal/queue"
	"audioconv/internal/reporting"
	"audioconv/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level when non-empty.
	LogLevel string
}

// Run starts the audioconv daemon and blocks until ctx is cancelled or the
// process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	reporter, err := reporting.New(cfg, logger)
	if err != nil {
		return err
	}
	defer reporter.Flush(reporting.DefaultFlushTimeout)

	logPreflight(signalCtx, logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}
	defer store.Close()

	blobs, err := blob.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	managerOpts := []workflow.ManagerOption{workflow.WithReporter(reporter)}
	if cfg.Redis.Enabled {
		client, err := workflow.NewRedisClient(signalCtx, cfg)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		managerOpts = append(managerOpts, workflow.WithTickLock(workflow.NewRedisLockFromConfig(client, cfg, logger)))
	}
	manager := workflow.NewManager(cfg, store, blobs, convert.NewFromConfig(cfg, logger), logger, managerOpts...)

	d, err := daemon.New(cfg, store, blobs, manager, logger, daemon.WithReporter(reporter))
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}
	defer d.Stop()

	<-signalCtx.Done()
	logger.Info("audioconv daemon shutting down")
	return nil
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	if opts.LogLevel == "" {
		return logging.NewFromConfig(cfg)
	}
	return logging.New(logging.Options{
		Level:            opts.LogLevel,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", cfg.LogPath()},
		ErrorOutputPaths: []string{"stderr", cfg.LogPath()},
		Development:      opts.LogLevel == "debug",
	})
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "jobs may fail until the check passes"),
		)
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
