package allocation

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/amirphl/ams-registry/repository"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// lock_not_available, raised when lock_timeout expires
const pgLockNotAvailable = "55P03"

// PostgresAdvisoryCoordinator holds a transaction-scoped advisory lock. It
// opens the transaction itself and hands it to fn through the context, so the
// lock is released exactly when the work commits or rolls back. The
// transaction must run at READ COMMITTED: each statement after the lock then
// sees every write committed by earlier holders.
type PostgresAdvisoryCoordinator struct {
	db      *gorm.DB
	key     int64
	timeout time.Duration
}

func NewPostgresAdvisoryCoordinator(db *gorm.DB, timeout time.Duration) *PostgresAdvisoryCoordinator {
	return &PostgresAdvisoryCoordinator{db: db, key: AdvisoryKey(LockName), timeout: timeout}
}

// AdvisoryKey maps a lock name onto the bigint advisory lock space
func AdvisoryKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

func (p *PostgresAdvisoryCoordinator) WithExclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	return p.with(ctx, ModeExclusive, "SELECT pg_advisory_xact_lock(?)", fn)
}

func (p *PostgresAdvisoryCoordinator) WithShared(ctx context.Context, fn func(ctx context.Context) error) error {
	return p.with(ctx, ModeShared, "SELECT pg_advisory_xact_lock_shared(?)", fn)
}

func (p *PostgresAdvisoryCoordinator) with(ctx context.Context, mode LockMode, stmt string, fn func(ctx context.Context) error) error {
	return repository.WithTransaction(ctx, p.db, func(txCtx context.Context) error {
		tx := repository.TxFromContext(txCtx)

		if p.timeout > 0 {
			if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", p.timeout.Milliseconds())).Error; err != nil {
				return fmt.Errorf("failed to set lock timeout: %w", err)
			}
		}

		start := time.Now()
		err := tx.Exec(stmt, p.key).Error
		waited := time.Since(start)
		observeLockWait(mode, "postgres", waited)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
				return &LockTimeoutError{Lock: LockName, Mode: mode, Waited: waited}
			}
			return fmt.Errorf("failed to acquire %s advisory lock: %w", mode, err)
		}

		return fn(txCtx)
	})
}
