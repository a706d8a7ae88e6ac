package allocation

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
)

// LockName identifies the allocation lock in every backend
const LockName = "serial-allocation"

// LockMode is the mode a section holds the allocation lock in
type LockMode string

const (
	ModeExclusive LockMode = "exclusive"
	ModeShared    LockMode = "shared"
)

// LockCoordinator serializes access to the allocation domain. Exclusive
// holders are totally ordered; shared holders run concurrently with each
// other but never with an exclusive holder. The lock is released when fn
// returns or panics. Waiting longer than the coordinator's timeout yields a
// LockTimeoutError.
type LockCoordinator interface {
	WithExclusive(ctx context.Context, fn func(ctx context.Context) error) error
	WithShared(ctx context.Context, fn func(ctx context.Context) error) error
}

// maxSharedHolders bounds concurrent shared holders of a MutexCoordinator
const maxSharedHolders int64 = 1 << 16

// MutexCoordinator is an in-process reader/writer lock. Waiters are served in
// arrival order, so a queued writer is not starved by later readers.
type MutexCoordinator struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewMutexCoordinator returns a coordinator whose waits are bounded by timeout;
// zero waits until the caller's context ends.
func NewMutexCoordinator(timeout time.Duration) *MutexCoordinator {
	return &MutexCoordinator{
		sem:     semaphore.NewWeighted(maxSharedHolders),
		timeout: timeout,
	}
}

func (m *MutexCoordinator) WithExclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.with(ctx, ModeExclusive, maxSharedHolders, fn)
}

func (m *MutexCoordinator) WithShared(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.with(ctx, ModeShared, 1, fn)
}

func (m *MutexCoordinator) with(ctx context.Context, mode LockMode, weight int64, fn func(ctx context.Context) error) error {
	start := time.Now()
	acquireCtx, cancel := ctx, context.CancelFunc(func() {})
	if m.timeout > 0 {
		acquireCtx, cancel = context.WithTimeout(ctx, m.timeout)
	}
	err := m.sem.Acquire(acquireCtx, weight)
	cancel()
	waited := time.Since(start)
	observeLockWait(mode, "memory", waited)

	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("waiting for %s lock: %w", mode, ctx.Err())
		}
		return &LockTimeoutError{Lock: LockName, Mode: mode, Waited: waited}
	}
	defer m.sem.Release(weight)

	return fn(ctx)
}
