package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	if err := c.applyEnv(env); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	c.normalizeAPI()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeRedis()
	c.Sentry.DSN = strings.TrimSpace(c.Sentry.DSN)
	c.Sentry.Environment = strings.TrimSpace(c.Sentry.Environment)
	c.Conversion.FFmpegBinary = strings.TrimSpace(c.Conversion.FFmpegBinary)
	if c.Conversion.FFmpegBinary == "" {
		c.Conversion.FFmpegBinary = defaultFFmpegBinary
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}

func (c *Config) normalizeDatabase() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = defaultDatabaseDriver
	}
	if c.Database.Driver == "postgresql" || c.Database.Driver == "pq" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.Driver == DriverSQLite {
		if strings.TrimSpace(c.Database.Path) == "" {
			c.Database.Path = filepath.Join(c.Paths.StateDir, defaultDatabaseFile)
		}
		var err error
		if c.Database.Path, err = expandPath(c.Database.Path); err != nil {
			return fmt.Errorf("database.path: %w", err)
		}
	}
	c.Database.Host = strings.TrimSpace(c.Database.Host)
	c.Database.Name = strings.TrimSpace(c.Database.Name)
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	c.Database.SSLMode = strings.TrimSpace(c.Database.SSLMode)
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = defaultPostgresSSLMode
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Host = strings.TrimSpace(c.API.Host)
	c.API.PublicURL = strings.TrimRight(strings.TrimSpace(c.API.PublicURL), "/")
	c.API.Token = strings.TrimSpace(c.API.Token)
	origins := c.API.CORSOrigins[:0]
	for _, origin := range c.API.CORSOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.API.CORSOrigins = origins
	if c.API.MaxUploadBytes <= 0 {
		c.API.MaxUploadBytes = defaultMaxUploadBytes
	}
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	c.Storage.Container = strings.Trim(strings.TrimSpace(c.Storage.Container), "/")
	if c.Storage.Container == "" {
		c.Storage.Container = defaultStorageContainer
	}
	if c.Storage.Backend == StorageLocal {
		if strings.TrimSpace(c.Storage.Root) == "" {
			c.Storage.Root = defaultStorageRoot
		}
		var err error
		if c.Storage.Root, err = expandPath(c.Storage.Root); err != nil {
			return fmt.Errorf("storage.root: %w", err)
		}
	}
	c.Storage.S3Bucket = strings.TrimSpace(c.Storage.S3Bucket)
	c.Storage.S3Endpoint = strings.TrimSpace(c.Storage.S3Endpoint)
	c.Storage.S3Region = strings.TrimSpace(c.Storage.S3Region)
	if c.Storage.S3Region == "" {
		c.Storage.S3Region = defaultS3Region
	}
	return nil
}

func (c *Config) normalizeRedis() {
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	c.Redis.LockKey = strings.TrimSpace(c.Redis.LockKey)
	if c.Redis.LockKey == "" {
		c.Redis.LockKey = defaultRedisLockKey
	}
	if c.Redis.LockTTL <= 0 {
		c.Redis.LockTTL = defaultRedisLockTTL
	}
}
