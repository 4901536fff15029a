package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-be/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNotAcquired = errors.New("lock held by another owner")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker hands out short-lived exclusive locks keyed by name.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl}
}

// Lock takes the lock for key or returns an error wrapping ErrNotAcquired. The returned
// function releases it and is safe to call more than once.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, l.busy(ctx, fullKey)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// Release even when the caller's context is already cancelled.
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, l.client, []string{fullKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			logger.FromCtx(ctx).Warn("failed to release lock",
				zap.String("key", fullKey),
				zap.Error(err),
			)
		}
	}, nil
}

// busy describes a held lock. The remaining TTL is best effort.
func (l *RedisLocker) busy(ctx context.Context, fullKey string) error {
	ttl, err := l.client.PTTL(ctx, fullKey).Result()
	if err != nil || ttl <= 0 {
		return ErrNotAcquired
	}
	return fmt.Errorf("%w: %s expires in %s", ErrNotAcquired, fullKey, ttl.Round(time.Millisecond))
}
