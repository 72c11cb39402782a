package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFileVariable names the variable that points at an alternate dotenv file.
const EnvFileVariable = "AUDIOCONV_ENV_FILE"

const defaultEnvFile = ".env"

// environment resolves override variables. Process variables win over
// entries read from the dotenv file.
type environment struct {
	file map[string]string
}

// loadEnv reads the dotenv file named by AUDIOCONV_ENV_FILE, or .env in the
// working directory. A missing default file is not an error; a missing
// explicit file is.
func loadEnv() (environment, error) {
	path, explicit := os.LookupEnv(EnvFileVariable)
	path = strings.TrimSpace(path)
	if path == "" {
		path, explicit = defaultEnvFile, false
	}
	expanded, err := expandPath(path)
	if err != nil {
		return environment{}, fmt.Errorf("%s: %w", EnvFileVariable, err)
	}
	values, err := godotenv.Read(expanded)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return environment{}, nil
		}
		return environment{}, fmt.Errorf("read env file %s: %w", expanded, err)
	}
	return environment{file: values}, nil
}

func (e environment) lookup(key string) (string, bool) {
	if value, ok := os.LookupEnv(key); ok {
		return value, true
	}
	value, ok := e.file[key]
	return value, ok
}

func (e environment) lookupString(key string, target *string) {
	if value, ok := e.lookup(key); ok {
		*target = strings.TrimSpace(value)
	}
}

func (e environment) lookupInt(target *int, keys ...string) error {
	for _, key := range keys {
		value, ok := e.lookup(key)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", key, value)
		}
		*target = parsed
		return nil
	}
	return nil
}

func (e environment) lookupList(key string, target *[]string) {
	value, ok := e.lookup(key)
	if !ok {
		return
	}
	var items []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	*target = items
}

// applyEnv layers environment variables over file values. The variable names
// match the ones the service has always read from its .env file.
func (c *Config) applyEnv(env environment) error {
	env.lookupString("AUDIOCONV_STATE_DIR", &c.Paths.StateDir)

	if err := env.lookupInt(&c.Logging.Level, "AUDIOCONV_LOG_LEVEL", "LOGGING_LEVEL"); err != nil {
		return err
	}
	env.lookupString("AUDIOCONV_LOG_FORMAT", &c.Logging.Format)

	if _, ok := env.lookup("DB_STRING"); ok {
		if _, explicit := env.lookup("AUDIOCONV_DB_DRIVER"); !explicit {
			c.Database.Driver = DriverPostgres
		}
	}
	env.lookupString("AUDIOCONV_DB_DRIVER", &c.Database.Driver)
	env.lookupString("AUDIOCONV_DB_PATH", &c.Database.Path)
	env.lookupString("POSTGRES_USER", &c.Database.User)
	env.lookupString("POSTGRES_PASSWORD", &c.Database.Password)
	env.lookupString("POSTGRES_HOST", &c.Database.Host)
	env.lookupString("POSTGRES_DB", &c.Database.Name)
	env.lookupString("DB_STRING", &c.Database.DSN)
	if err := env.lookupInt(&c.Database.Port, "POSTGRES_PORT"); err != nil {
		return err
	}

	env.lookupString("API_HOST", &c.API.Host)
	if err := env.lookupInt(&c.API.Port, "API_PORT"); err != nil {
		return err
	}
	env.lookupString("AUDIOCONV_PUBLIC_URL", &c.API.PublicURL)
	env.lookupString("AUDIOCONV_API_TOKEN", &c.API.Token)
	env.lookupList("CORS_ORIGINS", &c.API.CORSOrigins)

	env.lookupString("AUDIOCONV_STORAGE_BACKEND", &c.Storage.Backend)
	env.lookupString("STORAGE_PATH", &c.Storage.Root)
	env.lookupString("STORAGE_CONTAINER_NAME", &c.Storage.Container)
	env.lookupString("AUDIOCONV_S3_BUCKET", &c.Storage.S3Bucket)
	env.lookupString("AUDIOCONV_S3_ENDPOINT", &c.Storage.S3Endpoint)
	env.lookupString("AWS_REGION", &c.Storage.S3Region)
	env.lookupString("AWS_ACCESS_KEY_ID", &c.Storage.S3AccessKey)
	env.lookupString("AWS_SECRET_ACCESS_KEY", &c.Storage.S3SecretKey)

	if err := env.lookupInt(&c.Scheduler.Interval, "AUDIOCONV_SCHEDULER_INTERVAL"); err != nil {
		return err
	}

	env.lookupString("REDIS_ADDR", &c.Redis.Addr)
	env.lookupString("REDIS_PASSWORD", &c.Redis.Password)
	env.lookupString("SENTRY_DSN", &c.Sentry.DSN)
	return nil
}
