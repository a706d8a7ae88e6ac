package allocation

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutexCoordinator_ExclusiveTimesOut(t *testing.T) {
	lock := NewMutexCoordinator(50 * time.Millisecond)
	holding := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = lock.WithExclusive(context.Background(), func(ctx context.Context) error {
			close(holding)
			<-done
			return nil
		})
	}()
	<-holding
	defer close(done)

	called := false
	err := lock.WithExclusive(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	var timeout *LockTimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, ModeExclusive, timeout.Mode)
	assert.GreaterOrEqual(t, timeout.Waited, 50*time.Millisecond)
	assert.False(t, called)

	err = lock.WithShared(context.Background(), func(ctx context.Context) error { return nil })
	assert.True(t, IsLockTimeout(err))
}

func TestMutexCoordinator_SharedHoldersOverlap(t *testing.T) {
	lock := NewMutexCoordinator(time.Second)
	var inside atomic.Int32
	both := make(chan struct{})

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errs <- lock.WithShared(context.Background(), func(ctx context.Context) error {
				if inside.Add(1) == 2 {
					close(both)
				}
				select {
				case <-both:
					return nil
				case <-time.After(time.Second):
					return errors.New("shared holders did not overlap")
				}
			})
		}()
	}
	assert.NoError(t, <-errs)
	assert.NoError(t, <-errs)
}

func TestMutexCoordinator_ReleasesOnErrorAndPanic(t *testing.T) {
	lock := NewMutexCoordinator(100 * time.Millisecond)
	boom := errors.New("boom")

	err := lock.WithExclusive(context.Background(), func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		_ = lock.WithExclusive(context.Background(), func(ctx context.Context) error { panic("kaboom") })
	})

	err = lock.WithExclusive(context.Background(), func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestMutexCoordinator_CallerContextEnds(t *testing.T) {
	lock := NewMutexCoordinator(time.Minute)
	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = lock.WithExclusive(context.Background(), func(ctx context.Context) error {
			close(holding)
			<-done
			return nil
		})
	}()
	<-holding
	defer close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := lock.WithExclusive(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsLockTimeout(err))
}

func TestAdvisoryKeyIsStable(t *testing.T) {
	assert.Equal(t, AdvisoryKey(LockName), AdvisoryKey(LockName))
	assert.NotEqual(t, AdvisoryKey(LockName), AdvisoryKey("other-lock"))
}

func TestRedisCoordinator(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	prefix := "ams-test:" + time.Now().Format("150405.000000") + ":"
	lock := NewRedisCoordinator(client, prefix, 5*time.Second, 100*time.Millisecond)
	other := NewRedisCoordinator(client, prefix, 5*time.Second, 100*time.Millisecond)

	err = lock.WithExclusive(context.Background(), func(ctx context.Context) error {
		inner := other.WithExclusive(ctx, func(context.Context) error { return nil })
		assert.True(t, IsLockTimeout(inner))
		shared := other.WithShared(ctx, func(context.Context) error { return nil })
		assert.True(t, IsLockTimeout(shared))
		return nil
	})
	require.NoError(t, err)

	n, err := client.Exists(context.Background(), prefix+"lock:"+LockName).Result()
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.NoError(t, other.WithExclusive(context.Background(), func(context.Context) error { return nil }))
}
