package config

// Recognised database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Recognised blob storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

const (
	defaultStateDir                 = "~/.local/share/audioconv"
	defaultLogLevel                 = 3
	defaultLogFormat                = "console"
	defaultDatabaseDriver           = DriverSQLite
	defaultDatabaseFile             = "audioconv.db"
	defaultPostgresHost             = "localhost"
	defaultPostgresPort             = 5432
	defaultPostgresDB               = "audioconv"
	defaultPostgresSSLMode          = "disable"
	defaultConnectTimeout           = 120
	defaultConnectWarnInterval      = 60
	defaultAPIHost                  = "0.0.0.0"
	defaultAPIPort                  = 8000
	defaultMaxUploadBytes           = 64 << 20
	defaultStorageBackend           = StorageLocal
	defaultStorageRoot              = "/tmp/storage"
	defaultStorageContainer         = "attachment"
	defaultStorageMinFreeMiB        = 256
	defaultS3Region                 = "us-east-1"
	defaultSchedulerInterval        = 10
	defaultSchedulerErrorRetry      = 10
	defaultConversionTimeout        = 300
	defaultSchedulerHeartbeat       = 15
	defaultSchedulerHeartbeatExpiry = 600
	defaultFFmpegBinary             = "ffmpeg"
	defaultConversionQuality        = 2
	defaultRedisAddr                = "localhost:6379"
	defaultRedisLockKey             = "audioconv:scheduler:lock"
	defaultRedisLockTTL             = 60
	defaultSentryEnvironment        = "production"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Database: Database{
			Driver:              defaultDatabaseDriver,
			Host:                defaultPostgresHost,
			Port:                defaultPostgresPort,
			Name:                defaultPostgresDB,
			SSLMode:             defaultPostgresSSLMode,
			ConnectTimeout:      defaultConnectTimeout,
			ConnectWarnInterval: defaultConnectWarnInterval,
		},
		API: API{
			Host:           defaultAPIHost,
			Port:           defaultAPIPort,
			MaxUploadBytes: defaultMaxUploadBytes,
		},
		Storage: Storage{
			Backend:    defaultStorageBackend,
			Root:       defaultStorageRoot,
			Container:  defaultStorageContainer,
			MinFreeMiB: defaultStorageMinFreeMiB,
			S3Region:   defaultS3Region,
		},
		Scheduler: Scheduler{
			Interval:           defaultSchedulerInterval,
			ErrorRetryInterval: defaultSchedulerErrorRetry,
			ConversionTimeout:  defaultConversionTimeout,
			HeartbeatInterval:  defaultSchedulerHeartbeat,
			HeartbeatTimeout:   defaultSchedulerHeartbeatExpiry,
		},
		Conversion: Conversion{
			FFmpegBinary: defaultFFmpegBinary,
			Quality:      defaultConversionQuality,
		},
		Redis: Redis{
			Addr:    defaultRedisAddr,
			LockKey: defaultRedisLockKey,
			LockTTL: defaultRedisLockTTL,
		},
		Sentry: Sentry{
			Environment: defaultSentryEnvironment,
		},
	}
}
