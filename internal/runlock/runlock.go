// Package runlock keeps two crawlers from running against the same database at once.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when another process owns the lock.
var ErrHeld = errors.New("crawl lock is held by another process")

// DefaultKey is the Redis key guarding crawl runs.
const DefaultKey = "curator:crawl:lock"

// connectionTimeout bounds the startup ping.
const connectionTimeout = 5 * time.Second

// Lease is an acquired lock.
type Lease interface {
	// Refresh pushes the expiry out by the lock TTL.
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

// Locker hands out leases.
type Locker interface {
	Acquire(ctx context.Context) (Lease, error)
}

// Config holds Redis connection and lock settings.
type Config struct {
	Address  string
	Password string
	DB       int
	Key      string
	TTL      time.Duration
}

// NewClient creates and pings a Redis client.
func NewClient(cfg Config) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Only the owner's token may delete or extend the key.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLocker implements Locker with SET NX PX.
type RedisLocker struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// NewRedisLocker wraps client. Key and TTL fall back to DefaultKey and 6h.
func NewRedisLocker(client redis.Cmdable, key string, ttl time.Duration) *RedisLocker {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &RedisLocker{client: client, key: key, ttl: ttl}
}

// Acquire takes the lock or returns ErrHeld.
func (l *RedisLocker) Acquire(ctx context.Context) (Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire crawl lock: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return &redisLease{locker: l, token: token}, nil
}

type redisLease struct {
	locker *RedisLocker
	token  string
}

func (r *redisLease) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, r.locker.client, []string{r.locker.key}, r.token, r.locker.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("refresh crawl lock: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("refresh crawl lock: %w", errLost)
	}
	return nil
}

func (r *redisLease) Release(ctx context.Context) error {
	if _, err := releaseScript.Run(ctx, r.locker.client, []string{r.locker.key}, r.token).Int(); err != nil {
		return fmt.Errorf("release crawl lock: %w", err)
	}
	return nil
}

var errLost = errors.New("lock expired or taken over")

// Noop grants every Acquire. It is used when Redis is not configured.
type Noop struct{}

// Acquire returns a lease that does nothing.
func (Noop) Acquire(context.Context) (Lease, error) { return noopLease{}, nil }

type noopLease struct{}

func (noopLease) Refresh(context.Context) error { return nil }
func (noopLease) Release(context.Context) error { return nil }
