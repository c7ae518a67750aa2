package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"MemeFarm/internal/ports"
)

// ErrNotHeld is returned by release when the lock expired or changed hands.
var ErrNotHeld = errors.New("lock is no longer held")

// Deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serialises stage runs across processes with SET NX PX.
type RedisLocker struct {
	client redis.UniversalClient
}

var _ ports.Locker = (*RedisLocker)(nil)

// NewRedisLocker wraps an existing client.
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

// Dial connects to addr and verifies the server answers.
func Dial(ctx context.Context, addr, password string, db int) (*RedisLocker, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisLocker(client), client, nil
}

// Acquire takes name for ttl. ok=false means another holder has it.
func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, name, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{name}, token).Int()
		if err != nil {
			return fmt.Errorf("release %s: %w", name, err)
		}
		if n == 0 {
			return fmt.Errorf("release %s: %w", name, ErrNotHeld)
		}
		return nil
	}
	return release, true, nil
}

// Noop grants every lock; used when Redis is not configured.
type Noop struct{}

var _ ports.Locker = Noop{}

// Acquire always succeeds.
func (Noop) Acquire(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
	return func(context.Context) error { return nil }, true, nil
}
