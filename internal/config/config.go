package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directories owned by the daemon process.
type Paths struct {
	StateDir string `toml:"state_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	// Level follows the 0-5 verbosity scale: 0 silent, 1 error, 2 warn,
	// 3 info, 4 debug, 5 debug with source locations.
	Level  int    `toml:"level"`
	Format string `toml:"format"`
}

// Database selects and configures the job record store.
type Database struct {
	Driver              string `toml:"driver"`
	Path                string `toml:"path"`
	User                string `toml:"user"`
	Password            string `toml:"password"`
	Host                string `toml:"host"`
	Port                int    `toml:"port"`
	Name                string `toml:"name"`
	SSLMode             string `toml:"sslmode"`
	DSN                 string `toml:"dsn"`
	ConnectTimeout      int    `toml:"connect_timeout"`
	ConnectWarnInterval int    `toml:"connect_warn_interval"`
}

// API contains the HTTP bind address and request limits. CORSOrigins lists
// browser origins allowed to call the API; empty disables CORS handling.
type API struct {
	Host                string   `toml:"host"`
	Port                int      `toml:"port"`
	PublicURL           string   `toml:"public_url"`
	Token               string   `toml:"token"`
	MaxUploadBytes      int64    `toml:"max_upload_bytes"`
	RequireTokenOnFetch bool     `toml:"require_token_on_fetch"`
	CORSOrigins         []string `toml:"cors_origins"`
}

// Storage configures the blob store backend.
type Storage struct {
	Backend     string `toml:"backend"`
	Root        string `toml:"root"`
	Container   string `toml:"container"`
	MinFreeMiB  int64  `toml:"min_free_mib"`
	S3Bucket    string `toml:"s3_bucket"`
	S3Region    string `toml:"s3_region"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3PathStyle bool   `toml:"s3_path_style"`
	S3AccessKey string `toml:"s3_access_key"`
	S3SecretKey string `toml:"s3_secret_key"`
}

// Scheduler contains conversion scheduler timing, in seconds.
type Scheduler struct {
	Interval           int `toml:"interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	ConversionTimeout  int `toml:"conversion_timeout"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Conversion configures the ffmpeg transcode.
type Conversion struct {
	FFmpegBinary string `toml:"ffmpeg_binary"`
	Quality      int    `toml:"quality"`
}

// Redis configures the optional scheduler tick lock.
type Redis struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	LockKey  string `toml:"lock_key"`
	LockTTL  int    `toml:"lock_ttl"`
}

// Sentry configures error reporting. An empty DSN disables reporting.
type Sentry struct {
	DSN         string `toml:"dsn"`
	Environment string `toml:"environment"`
	Release     string `toml:"release"`
}

// Config encapsulates all configuration values for audioconv.
//
// Configuration sections by subsystem:
//   - Paths: lock, pid, log and default sqlite locations
//   - Logging: verbosity and output format
//   - Database: sqlite or postgres job record store
//   - API: HTTP bind address, public URL and upload limits
//   - Storage: local or S3 blob backend
//   - Scheduler: polling interval, conversion timeout and heartbeats
//   - Conversion: ffmpeg settings
//   - Redis: optional distributed tick lock
//   - Sentry: optional error reporting
type Config struct {
	Paths      Paths      `toml:"paths"`
	Logging    Logging    `toml:"logging"`
	Database   Database   `toml:"database"`
	API        API        `toml:"api"`
	Storage    Storage    `toml:"storage"`
	Scheduler  Scheduler  `toml:"scheduler"`
	Conversion Conversion `toml:"conversion"`
	Redis      Redis      `toml:"redis"`
	Sentry     Sentry     `toml:"sentry"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/audioconv/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("audioconv.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state directory and, for the local backend,
// the storage container directory.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir}
	if c.Storage.Backend == StorageLocal {
		dirs = append(dirs, c.ContainerDir())
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ContainerDir returns the local directory holding blobs.
func (c *Config) ContainerDir() string {
	return filepath.Join(c.Storage.Root, c.Storage.Container)
}

// APIBind returns the host:port the HTTP server listens on.
func (c *Config) APIBind() string {
	return net.JoinHostPort(c.API.Host, strconv.Itoa(c.API.Port))
}

// PublicBaseURL returns the base used when rendering retrieval URLs.
func (c *Config) PublicBaseURL() string {
	if c.API.PublicURL != "" {
		return strings.TrimRight(c.API.PublicURL, "/")
	}
	host := c.API.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.API.Port))
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "audioconv.lock")
}

// PIDPath returns the daemon pid file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "audioconv.pid")
}

// LogPath returns the daemon log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.StateDir, "audioconv.log")
}

// DatabaseDSN returns the driver name and data source for the configured
// record store. An explicit dsn wins over the discrete postgres fields.
func (c *Config) DatabaseDSN() (string, string) {
	if c.Database.Driver == DriverSQLite {
		return DriverSQLite, c.Database.Path
	}
	if c.Database.DSN != "" {
		return DriverPostgres, c.Database.DSN
	}
	parts := []string{
		"host=" + quoteDSNValue(c.Database.Host),
		"port=" + strconv.Itoa(c.Database.Port),
		"dbname=" + quoteDSNValue(c.Database.Name),
		"sslmode=" + quoteDSNValue(c.Database.SSLMode),
	}
	if c.Database.User != "" {
		parts = append(parts, "user="+quoteDSNValue(c.Database.User))
	}
	if c.Database.Password != "" {
		parts = append(parts, "password="+quoteDSNValue(c.Database.Password))
	}
	return DriverPostgres, strings.Join(parts, " ")
}

func quoteDSNValue(value string) string {
	if value == "" {
		return "''"
	}
	if !strings.ContainsAny(value, ` '\`) {
		return value
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return "'" + escaped + "'"
}

// ConnectTimeout returns the startup window for reaching the record store.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Database.ConnectTimeout) * time.Second
}

// ConnectWarnInterval returns how often an unreachable store is reported.
func (c *Config) ConnectWarnInterval() time.Duration {
	return time.Duration(c.Database.ConnectWarnInterval) * time.Second
}

// FFmpegBinary returns the ffmpeg executable used for transcoding.
func (c *Config) FFmpegBinary() string {
	if c.Conversion.FFmpegBinary == "" {
		return defaultFFmpegBinary
	}
	return c.Conversion.FFmpegBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
