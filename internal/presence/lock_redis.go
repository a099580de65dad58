package presence

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	id "gatewarden/pkg/domain"
	dErrors "gatewarden/pkg/domain-errors"
)

const (
	lockTTL          = 5 * time.Second
	lockRetryBackoff = 50 * time.Millisecond
)

// RedisLock serializes toggles across instances with a per-identity
// distributed lock.
type RedisLock struct {
	locker *redislock.Client
}

func NewRedisLock(client redis.UniversalClient) *RedisLock {
	return &RedisLock{locker: redislock.New(client)}
}

func (l *RedisLock) Acquire(ctx context.Context, identityID id.IdentityID) (func(), error) {
	lock, err := l.locker.Obtain(ctx, "presence:lock:"+identityID.String(), lockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(lockRetryBackoff), 40),
	})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, dErrors.New(dErrors.CodeTimeout, "could not acquire presence lock")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire presence lock")
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}, nil
}
