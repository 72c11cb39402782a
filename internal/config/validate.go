package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateConversion(); err != nil {
		return err
	}
	if err := c.validateRedis(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	if c.Logging.Level < 0 || c.Logging.Level > 5 {
		return errors.New("logging.level must be between 0 and 5")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path must be set for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			if c.Database.Host == "" {
				return errors.New("database.host must be set when database.dsn is empty")
			}
			if c.Database.Name == "" {
				return errors.New("database.name must be set when database.dsn is empty")
			}
			if c.Database.Port <= 0 || c.Database.Port > 65535 {
				return errors.New("database.port must be between 1 and 65535")
			}
		}
	default:
		return fmt.Errorf("database.driver: unsupported value %q", c.Database.Driver)
	}
	if c.Database.ConnectTimeout <= 0 {
		return errors.New("database.connect_timeout must be positive")
	}
	if c.Database.ConnectWarnInterval <= 0 {
		return errors.New("database.connect_warn_interval must be positive")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.Port < 0 || c.API.Port > 65535 {
		return errors.New("api.port must be between 0 and 65535")
	}
	if c.API.PublicURL != "" && !strings.HasPrefix(c.API.PublicURL, "http://") && !strings.HasPrefix(c.API.PublicURL, "https://") {
		return errors.New("api.public_url must start with http:// or https://")
	}
	for _, origin := range c.API.CORSOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("api.cors_origins: %q must be \"*\" or start with http:// or https://", origin)
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	if strings.ContainsAny(c.Storage.Container, `/\`) || c.Storage.Container == "." || c.Storage.Container == ".." {
		return fmt.Errorf("storage.container: %q must be a single path segment", c.Storage.Container)
	}
	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.Root == "" {
			return errors.New("storage.root must be set for the local backend")
		}
	case StorageS3:
		if c.Storage.S3Bucket == "" {
			return errors.New("storage.s3_bucket must be set for the s3 backend")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q", c.Storage.Backend)
	}
	if c.Storage.MinFreeMiB < 0 {
		return errors.New("storage.min_free_mib must be >= 0")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	values := map[string]int{
		"scheduler.interval":             c.Scheduler.Interval,
		"scheduler.error_retry_interval": c.Scheduler.ErrorRetryInterval,
		"scheduler.conversion_timeout":   c.Scheduler.ConversionTimeout,
		"scheduler.heartbeat_interval":   c.Scheduler.HeartbeatInterval,
	}
	if err := ensurePositiveMap(values); err != nil {
		return err
	}
	if c.Scheduler.HeartbeatTimeout < 0 {
		return errors.New("scheduler.heartbeat_timeout must be >= 0")
	}
	if c.Scheduler.HeartbeatTimeout > 0 && c.Scheduler.HeartbeatTimeout <= c.Scheduler.HeartbeatInterval {
		return errors.New("scheduler.heartbeat_timeout must be greater than scheduler.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateConversion() error {
	if c.Conversion.Quality < 0 || c.Conversion.Quality > 9 {
		return errors.New("conversion.quality must be between 0 and 9")
	}
	return nil
}

func (c *Config) validateRedis() error {
	if !c.Redis.Enabled {
		return nil
	}
	if c.Redis.Addr == "" {
		return errors.New("redis.addr must be set when redis.enabled is true")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
