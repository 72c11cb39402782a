package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"audioconv/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 0); !result.Passed {
		t.Fatalf("expected zero minimum to pass, got: %s", result.Detail)
	}
	if result := CheckFreeSpace("space", dir, 1<<40); result.Passed {
		t.Fatal("expected an exabyte minimum to fail")
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 0); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckEncoder_MissingBinary(t *testing.T) {
	result := CheckEncoder(context.Background(), filepath.Join(t.TempDir(), "no-ffmpeg"))
	if result.Passed {
		t.Fatal("expected failure for missing binary")
	}
	if result.Name != "FFmpeg" {
		t.Fatalf("unexpected name %q", result.Name)
	}
}

func TestCheckRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	if result := CheckRedis(context.Background(), srv.Addr(), "", 0); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckRedis(context.Background(), "", "", 0); result.Passed {
		t.Fatal("expected failure for missing address")
	}
	addr := srv.Addr()
	srv.Close()
	if result := CheckRedis(context.Background(), addr, "", 0); result.Passed {
		t.Fatal("expected failure after server shutdown")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_LocalStorage(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Storage.Root = t.TempDir()
	cfg.Storage.MinFreeMiB = 0
	cfg.Conversion.FFmpegBinary = filepath.Join(t.TempDir(), "no-ffmpeg")
	if err := os.MkdirAll(cfg.ContainerDir(), 0o755); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), &cfg)
	// state dir + container + free space + encoder
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "FFmpeg" {
		t.Fatalf("expected only the encoder check to fail, got %+v", failed)
	}
}

func TestRunAll_IncludesRedisWhenEnabled(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Storage.Backend = config.StorageS3
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = srv.Addr()

	found := false
	for _, r := range RunAll(context.Background(), &cfg) {
		if r.Name == "Blob container" {
			t.Fatal("did not expect a local container check for s3 storage")
		}
		if r.Name == "Redis" {
			found = true
			if !r.Passed {
				t.Errorf("Redis check failed: %s", r.Detail)
			}
		}
	}
	if !found {
		t.Fatal("expected Redis check in results")
	}
}
