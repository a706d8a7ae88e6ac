package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var errLockBusy = errors.New("lock held by another owner")

// releaseScript deletes the lock only if it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCoordinator guards the allocation domain with a Redis lease shared by
// every API instance. The lease must outlive the longest critical section;
// an expired lease lets the next writer in, and the storage unique
// constraints then reject any duplicate it would produce.
//
// Shared mode waits until no exclusive lease exists and then proceeds without
// holding anything. It only serves the stale-tolerant preview.
type RedisCoordinator struct {
	client  redis.UniversalClient
	key     string
	lease   time.Duration
	timeout time.Duration
}

func NewRedisCoordinator(client redis.UniversalClient, keyPrefix string, lease, timeout time.Duration) *RedisCoordinator {
	return &RedisCoordinator{
		client:  client,
		key:     keyPrefix + "lock:" + LockName,
		lease:   lease,
		timeout: timeout,
	}
}

func (r *RedisCoordinator) WithExclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	token := uuid.NewString()
	err := r.wait(ctx, ModeExclusive, func() error {
		ok, err := r.client.SetNX(ctx, r.key, token, r.lease).Result()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errLockBusy
		}
		return nil
	})
	if err != nil {
		return err
	}

	defer func() {
		// release even when the caller's context is already done
		_ = releaseScript.Run(context.WithoutCancel(ctx), r.client, []string{r.key}, token).Err()
	}()

	return fn(ctx)
}

func (r *RedisCoordinator) WithShared(ctx context.Context, fn func(ctx context.Context) error) error {
	err := r.wait(ctx, ModeShared, func() error {
		n, err := r.client.Exists(ctx, r.key).Result()
		if err != nil {
			return backoff.Permanent(err)
		}
		if n > 0 {
			return errLockBusy
		}
		return nil
	})
	if err != nil {
		return err
	}
	return fn(ctx)
}

func (r *RedisCoordinator) wait(ctx context.Context, mode LockMode, attempt func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	b.MaxElapsedTime = r.timeout

	start := time.Now()
	err := backoff.Retry(attempt, backoff.WithContext(b, ctx))
	waited := time.Since(start)
	observeLockWait(mode, "redis", waited)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errLockBusy):
		return &LockTimeoutError{Lock: LockName, Mode: mode, Waited: waited}
	case ctx.Err() != nil:
		return fmt.Errorf("waiting for %s lock: %w", mode, ctx.Err())
	default:
		return fmt.Errorf("redis %s lock: %w", mode, err)
	}
}
