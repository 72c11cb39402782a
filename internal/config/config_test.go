package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"audioconv/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "audioconv")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Database.Driver != config.DriverSQLite {
		t.Fatalf("expected sqlite default driver, got %q", cfg.Database.Driver)
	}
	if cfg.Database.Path != filepath.Join(wantState, "audioconv.db") {
		t.Fatalf("unexpected sqlite path: %q", cfg.Database.Path)
	}
	if cfg.APIBind() != "0.0.0.0:8000" {
		t.Fatalf("unexpected api bind: %q", cfg.APIBind())
	}
	if cfg.ContainerDir() != filepath.Join("/tmp/storage", "attachment") {
		t.Fatalf("unexpected container dir: %q", cfg.ContainerDir())
	}
	if cfg.Scheduler.Interval != 10 {
		t.Fatalf("expected 10s scheduler interval, got %d", cfg.Scheduler.Interval)
	}
	if cfg.Logging.Level != 3 {
		t.Fatalf("expected info log level, got %d", cfg.Logging.Level)
	}
	if cfg.PublicBaseURL() != "http://localhost:8000" {
		t.Fatalf("unexpected public base url: %q", cfg.PublicBaseURL())
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	payload := map[string]any{
		"paths": map[string]any{"state_dir": filepath.Join(dir, "state")},
		"logging": map[string]any{
			"level":  4,
			"format": "JSON",
		},
		"storage": map[string]any{
			"root":      filepath.Join(dir, "blobs"),
			"container": "records",
		},
		"scheduler": map[string]any{
			"interval":           3,
			"heartbeat_interval": 5,
			"heartbeat_timeout":  60,
		},
		"api": map[string]any{"public_url": "https://audio.example.com/"},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lower-cased format, got %q", cfg.Logging.Format)
	}
	if cfg.ContainerDir() != filepath.Join(dir, "blobs", "records") {
		t.Fatalf("unexpected container dir: %q", cfg.ContainerDir())
	}
	if cfg.Scheduler.Interval != 3 {
		t.Fatalf("unexpected interval: %d", cfg.Scheduler.Interval)
	}
	if cfg.PublicBaseURL() != "https://audio.example.com" {
		t.Fatalf("unexpected public url: %q", cfg.PublicBaseURL())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	if info, err := os.Stat(cfg.ContainerDir()); err != nil || !info.IsDir() {
		t.Fatalf("expected container dir to exist: %v", err)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LOGGING_LEVEL", "1")
	t.Setenv("API_HOST", "127.0.0.1")
	t.Setenv("API_PORT", "9000")
	t.Setenv("STORAGE_PATH", filepath.Join(t.TempDir(), "store"))
	t.Setenv("STORAGE_CONTAINER_NAME", "uploads")
	t.Setenv("DB_STRING", "postgres://audio:secret@db:5432/audio?sslmode=disable")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Level != 1 {
		t.Fatalf("expected level from env, got %d", cfg.Logging.Level)
	}
	if cfg.APIBind() != "127.0.0.1:9000" {
		t.Fatalf("unexpected bind: %q", cfg.APIBind())
	}
	if cfg.Storage.Container != "uploads" {
		t.Fatalf("unexpected container: %q", cfg.Storage.Container)
	}
	driver, dsn := cfg.DatabaseDSN()
	if driver != config.DriverPostgres {
		t.Fatalf("expected DB_STRING to select postgres, got %q", driver)
	}
	if dsn != "postgres://audio:secret@db:5432/audio?sslmode=disable" {
		t.Fatalf("unexpected dsn: %q", dsn)
	}
}

func TestDatabaseDSNFromDiscreteFields(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = config.DriverPostgres
	cfg.Database.User = "audio"
	cfg.Database.Password = "it's secret"
	cfg.Database.Host = "db"
	cfg.Database.Port = 5433
	cfg.Database.Name = "records"

	driver, dsn := cfg.DatabaseDSN()
	if driver != config.DriverPostgres {
		t.Fatalf("unexpected driver %q", driver)
	}
	for _, fragment := range []string{"host=db", "port=5433", "dbname=records", "user=audio", `password='it\'s secret'`, "sslmode=disable"} {
		if !strings.Contains(dsn, fragment) {
			t.Fatalf("expected %q in dsn %q", fragment, dsn)
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"log level", func(c *config.Config) { c.Logging.Level = 6 }, "logging.level"},
		{"interval", func(c *config.Config) { c.Scheduler.Interval = 0 }, "scheduler.interval must be positive"},
		{"heartbeat", func(c *config.Config) { c.Scheduler.HeartbeatTimeout = 5 }, "scheduler.heartbeat_timeout"},
		{"backend", func(c *config.Config) { c.Storage.Backend = "ftp" }, "storage.backend"},
		{"bucket", func(c *config.Config) { c.Storage.Backend = config.StorageS3 }, "storage.s3_bucket"},
		{"container", func(c *config.Config) { c.Storage.Container = "a/b" }, "storage.container"},
		{"driver", func(c *config.Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"quality", func(c *config.Config) { c.Conversion.Quality = 12 }, "conversion.quality"},
		{"redis", func(c *config.Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis.addr"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Database.Path = "/tmp/audioconv.db"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample config should load cleanly: exists=%v err=%v", exists, err)
	}
}

func TestLoadReadsDotenvFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	dotenv := "API_PORT=9100\nSTORAGE_CONTAINER_NAME=from-file\nCORS_ORIGINS=https://app.example.com/, http://localhost:4200\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(dotenv), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("STORAGE_CONTAINER_NAME", "from-process")

	cfg, _, _, err := config.Load(filepath.Join(dir, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.Port != 9100 {
		t.Fatalf("expected port from .env, got %d", cfg.API.Port)
	}
	if cfg.Storage.Container != "from-process" {
		t.Fatalf("expected process env to win, got %q", cfg.Storage.Container)
	}
	want := []string{"https://app.example.com", "http://localhost:4200"}
	if len(cfg.API.CORSOrigins) != len(want) {
		t.Fatalf("unexpected origins: %v", cfg.API.CORSOrigins)
	}
	for i := range want {
		if cfg.API.CORSOrigins[i] != want[i] {
			t.Fatalf("origin %d: got %q want %q", i, cfg.API.CORSOrigins[i], want[i])
		}
	}
}

func TestLoadFailsOnMissingExplicitEnvFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvFileVariable, filepath.Join(t.TempDir(), "absent.env"))

	_, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "read env file") {
		t.Fatalf("expected env file error, got %v", err)
	}
}

func TestValidateRejectsBadCORSOrigin(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = "/tmp/audioconv.db"
	cfg.API.CORSOrigins = []string{"app.example.com"}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "api.cors_origins") {
		t.Fatalf("expected cors origin error, got %v", err)
	}
	cfg.API.CORSOrigins = []string{"*"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("wildcard origin should validate: %v", err)
	}
}
