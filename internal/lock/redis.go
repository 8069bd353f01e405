package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"backoffice/internal/types"
)

// keyPrefix namespaces job lock keys in Redis.
const keyPrefix = "lock:"

// releaseScript deletes the lock key only when the stored token matches the
// holder's, so a slow holder cannot release a lock that expired and was
// re-acquired by another instance.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker over Redis SET NX PX with a per-acquisition
// token and a check-and-delete release script.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker creates a RedisLocker over the given client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire takes the named lock via SET NX PX. Contention returns
// acquired=false with a nil error; Redis outages return an error.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, func(context.Context) error, error) {
	redisKey := keyPrefix + key
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return false, nil, types.NewAppError(types.ErrCodeLockUnavailable,
			fmt.Sprintf("failed to acquire lock %q", key), err)
	}
	if !ok {
		return false, nil, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil && err != redis.Nil {
			return types.NewAppError(types.ErrCodeLockUnavailable,
				fmt.Sprintf("failed to release lock %q", key), err)
		}
		return nil
	}
	return true, release, nil
}

// Compile-time assertion that RedisLocker implements Locker.
var _ Locker = (*RedisLocker)(nil)
