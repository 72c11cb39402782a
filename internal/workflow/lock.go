package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"audioconv/internal/config"
	"audioconv/internal/logging"
	"audioconv/internal/services"
)

// TickLocker serialises scheduler ticks across daemons.
type TickLocker interface {
	// TryLock returns ok=false without error when another holder owns the lock.
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another daemon is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a SET NX PX lock with compare-and-delete release.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisLock builds a lock on key that expires after ttl.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration, logger *slog.Logger) *RedisLock {
	return &RedisLock{
		client: client,
		key:    key,
		ttl:    ttl,
		logger: logging.NewComponentLogger(logger, "scheduler-lock"),
	}
}

// TryLock implements TickLocker.
func (l *RedisLock) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, services.Wrap(services.ErrTransient, "scheduler", "acquire tick lock", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Err(); err != nil {
			l.logger.Warn("tick lock release failed; it expires on its own",
				logging.String("key", l.key),
				logging.Duration("ttl", l.ttl),
				logging.Error(err),
			)
		}
	}
	return release, true, nil
}

// NewRedisClient connects to the [redis] section and verifies the server
// answers.
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, services.Wrap(services.ErrTransient, "scheduler", "redis ping", cfg.Redis.Addr, err)
	}
	return client, nil
}

// NewRedisLockFromConfig builds the tick lock described by cfg.Redis.
func NewRedisLockFromConfig(client *redis.Client, cfg *config.Config, logger *slog.Logger) *RedisLock {
	return NewRedisLock(client, cfg.Redis.LockKey, time.Duration(cfg.Redis.LockTTL)*time.Second, logger)
}
