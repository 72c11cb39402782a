package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"audioconv/internal/config"
	"audioconv/internal/services"
)

// Store is content storage keyed by opaque single-segment keys.
type Store interface {
	// Put stores data under key. An existing key yields services.ErrConflict.
	Put(ctx context.Context, key string, data []byte) error
	// Open streams the value. A missing key yields services.ErrNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Replace atomically overwrites the value under key.
	Replace(ctx context.Context, key string, data []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// HealthCheck verifies the backend is reachable and writable.
	HealthCheck(ctx context.Context) error
	// Name identifies the backend in logs and status output.
	Name() string
}

// New builds the backend selected by cfg.Storage.Backend.
func New(cfg *config.Config, logger *slog.Logger) (Store, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "blob", "init", "config is nil", nil)
	}
	switch cfg.Storage.Backend {
	case config.StorageLocal:
		return NewLocal(cfg.ContainerDir(), logger)
	case config.StorageS3:
		return NewS3(S3Options{
			Bucket:    cfg.Storage.S3Bucket,
			Prefix:    cfg.Storage.Container,
			Region:    cfg.Storage.S3Region,
			Endpoint:  cfg.Storage.S3Endpoint,
			PathStyle: cfg.Storage.S3PathStyle,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
		}, logger)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "blob", "init",
			fmt.Sprintf("unsupported backend %q", cfg.Storage.Backend), nil)
	}
}

// Get reads the whole value stored under key.
func Get(ctx context.Context, store Store, key string) ([]byte, error) {
	rc, err := store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "blob", "read", key, err)
	}
	return data, nil
}

// ValidateKey rejects keys that are empty or would escape the namespace.
func ValidateKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return services.Wrap(services.ErrValidation, "blob", "key", "empty key", nil)
	case key == "." || key == "..":
		return services.Wrap(services.ErrValidation, "blob", "key", fmt.Sprintf("reserved key %q", key), nil)
	case strings.ContainsAny(key, "/\\\x00"):
		return services.Wrap(services.ErrValidation, "blob", "key", fmt.Sprintf("key %q must be a single segment", key), nil)
	}
	return nil
}
