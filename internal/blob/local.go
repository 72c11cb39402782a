package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"audioconv/internal/fileutil"
	"audioconv/internal/logging"
	"audioconv/internal/services"
)

const blobFileMode = 0o644

// Local keeps each value in its own file under dir.
type Local struct {
	dir    string
	logger *slog.Logger
}

// NewLocal creates the container directory if needed.
func NewLocal(dir string, logger *slog.Logger) (*Local, error) {
	if dir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "blob", "init", "storage directory is empty", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "blob", "init", "create storage directory", err)
	}
	return &Local{dir: dir, logger: logging.NewComponentLogger(logger, "blob")}, nil
}

// Name identifies the backend and directory in logs and status output.
func (l *Local) Name() string { return "local:" + l.dir }

func (l *Local) path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(l.dir, key), nil
}

// Put creates key and fails with services.ErrConflict when it already exists.
func (l *Local) Put(_ context.Context, key string, data []byte) error {
	path, err := l.path(key)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileExclusive(path, data, blobFileMode); err != nil {
		if errors.Is(err, fileutil.ErrExists) {
			return services.Wrap(services.ErrConflict, "blob", "put", key, err)
		}
		return services.Wrap(services.ErrTransient, "blob", "put", key, err)
	}
	l.logger.Debug("blob stored", logging.String("key", key), logging.Int("bytes", len(data)))
	return nil
}

// Open implements Store.
func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := l.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "blob", "open", key, nil)
		}
		return nil, services.Wrap(services.ErrTransient, "blob", "open", key, err)
	}
	return f, nil
}

// Replace swaps the file in with a rename, so readers see the old or new value whole.
func (l *Local) Replace(_ context.Context, key string, data []byte) error {
	path, err := l.path(key)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(path, data, blobFileMode); err != nil {
		return services.Wrap(services.ErrTransient, "blob", "replace", key, err)
	}
	l.logger.Debug("blob replaced", logging.String("key", key), logging.Int("bytes", len(data)))
	return nil
}

// Delete removes key. A missing key is not an error.
func (l *Local) Delete(_ context.Context, key string) error {
	path, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return services.Wrap(services.ErrTransient, "blob", "delete", key, err)
	}
	return nil
}

// HealthCheck confirms the directory exists and accepts new files.
func (l *Local) HealthCheck(context.Context) error {
	info, err := os.Stat(l.dir)
	if err != nil {
		return services.Wrap(services.ErrTransient, "blob", "health", l.dir, err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrConfiguration, "blob", "health", fmt.Sprintf("%s is not a directory", l.dir), nil)
	}
	probe, err := os.CreateTemp(l.dir, ".probe-*")
	if err != nil {
		return services.Wrap(services.ErrTransient, "blob", "health", "directory not writable", err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return nil
}
