package redislock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/weddingcue-core/internal/infrastructure/config"
)

// Sentinel errors for lock operations.
var (
	// ErrDisabled indicates Redis is turned off in config.
	ErrDisabled = errors.New("redislock: disabled in configuration")

	// ErrConnectionFailed indicates the startup ping failed.
	ErrConnectionFailed = errors.New("redislock: connection failed")

	// ErrNotHeld is returned by an unlock whose lease expired or was taken over.
	ErrNotHeld = errors.New("redislock: lock not held")
)

const (
	keyPrefix   = "weddingcue:lock:"
	pingTimeout = 2 * time.Second
)

// releaseScript deletes the key only while it still holds our token, so a
// holder whose lease expired cannot release someone else's lock.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// UnlockFunc releases a held lock.
type UnlockFunc func(ctx context.Context) error

// Locker hands out short-lived named leases.
type Locker interface {
	// TryLock attempts to take key for ttl without waiting. ok is false when
	// another holder has it; unlock is nil in that case.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock UnlockFunc, ok bool, err error)
}

// RedisLocker implements Locker with SET NX PX and a compare-and-delete
// release. It is safe for concurrent use.
type RedisLocker struct {
	client *redis.Client
}

// Connect creates a client and verifies it with a short ping.
//
// Returns:
//   - *RedisLocker: Ready to lock
//   - error: ErrDisabled, or ErrConnectionFailed wrapping the ping error
func Connect(cfg config.RedisConfig) (*RedisLocker, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return New(client), nil
}

// New wraps an existing client.
func New(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// TryLock implements Locker.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, bool, error) {
	token := uuid.NewString()
	fullKey := keyPrefix + key

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redislock: acquiring %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Int()
		if err != nil {
			return fmt.Errorf("redislock: releasing %s: %w", key, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrNotHeld, key)
		}
		return nil
	}
	return unlock, true, nil
}

// HealthCheck pings Redis.
func (l *RedisLocker) HealthCheck(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redislock health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// LocalLocker implements Locker within one process. It is the fallback when
// Redis is not configured: a single instance still never overlaps its own
// sweeps of the same event.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held: make(map[string]time.Time),
		now:  time.Now,
	}
}

// TryLock implements Locker. Expired leases are taken over.
func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (UnlockFunc, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return nil, false, nil
	}
	expires := now.Add(ttl)
	l.held[key] = expires

	unlock := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key] != expires {
			return fmt.Errorf("%w: %s", ErrNotHeld, key)
		}
		delete(l.held, key)
		return nil
	}
	return unlock, true, nil
}
