package preflight

import (
	"context"

	"audioconv/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}

	// Local blob storage lives on disk; S3 is covered by the blob health check.
	if cfg.Storage.Backend == config.StorageLocal {
		results = append(results,
			CheckDirectoryAccess("Blob container", cfg.ContainerDir()),
			CheckFreeSpace("Blob storage space", cfg.Storage.Root, cfg.Storage.MinFreeMiB),
		)
	}

	results = append(results, CheckEncoder(ctx, cfg.FFmpegBinary()))

	if cfg.Redis.Enabled {
		results = append(results, CheckRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB))
	}
	return results
}

// Failed returns the subset of results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
