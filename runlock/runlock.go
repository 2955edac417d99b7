// Package runlock keeps digest runs from overlapping, within one process or
// across replicas sharing a Redis instance.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"remarknews/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned by Acquire when another run holds the lock.
var ErrLocked = errors.New("a digest run is already in progress")

// DefaultKey is the Redis key guarding runs.
const DefaultKey = "remarknews:run-lock"

// Locker grants exclusive access to a run. Acquire never blocks waiting for
// the lock; it fails with ErrLocked instead.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Local is an in-process lock.
type Local struct {
	mu   sync.Mutex
	held bool
}

func NewLocal() *Local { return &Local{} }

func (l *Local) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, ErrLocked
	}
	l.held = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.held = false
			l.mu.Unlock()
		})
	}, nil
}

// release deletes the key only if it still holds our token.
var release = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a lock shared by every process using the same Redis key. The TTL
// bounds how long a crashed holder can block other runs.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedis connects to addr and verifies connectivity.
func NewRedis(addr, password, key string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	if key == "" {
		key = DefaultKey
	}
	return &Redis{client: client, key: key, ttl: ttl}, nil
}

func (r *Redis) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring %s: %w", r.key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := release.Run(ctx, r.client, []string{r.key}, token).Err(); err != nil {
				slog.Warn("failed to release run lock", "key", r.key, "error", err)
			}
		})
	}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// New returns a Redis lock when cfg names a Redis address and a local lock
// otherwise. The returned close function is never nil.
func New(cfg config.ServiceConfig, ttl time.Duration) (Locker, func() error, error) {
	if cfg.RedisAddr == "" {
		return NewLocal(), func() error { return nil }, nil
	}
	r, err := NewRedis(cfg.RedisAddr, cfg.RedisPassword, DefaultKey, ttl)
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}
