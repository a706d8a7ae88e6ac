package allocation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/ams-registry/models"
	"github.com/amirphl/ams-registry/repository"
	"github.com/amirphl/ams-registry/utils"
	"gorm.io/gorm"
)

// Registration carries the client fields written together with a serial
type Registration struct {
	FirstName      string
	LastName       string
	RegisteredByID uint
	CategoryID     uint
}

// Usage counts serials per state
type Usage struct {
	Active   int64 `json:"active"`
	Retired  int64 `json:"retired"`
	Reserved int64 `json:"reserved"`
	Free     int64 `json:"free"`
}

// Engine is the single entry point for every change to the allocation domain
type Engine struct {
	db     *gorm.DB
	lock   LockCoordinator
	policy RangePolicy
	ttl    time.Duration
	now    func() time.Time
	logger *log.Logger

	clients  repository.ClientRepository
	retired  repository.RetiredSerialRepository
	reserved repository.ReservedSerialRepository

	allocator    *Allocator
	reservations *ReservationManager
	retirement   *RetirementRecorder
}

// Option customizes an Engine
type Option func(*Engine)

func WithRangePolicy(policy RangePolicy) Option {
	return func(e *Engine) { e.policy = policy }
}

// WithClock replaces the wall clock used to stamp holds and retirements
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine wires the allocator, reservation manager and retirement recorder
// behind lock.
func NewEngine(
	db *gorm.DB,
	clients repository.ClientRepository,
	retired repository.RetiredSerialRepository,
	reserved repository.ReservedSerialRepository,
	lock LockCoordinator,
	opts ...Option,
) (*Engine, error) {
	e := &Engine{
		db:       db,
		lock:     lock,
		policy:   DefaultRangePolicy(),
		ttl:      ReservationTTL,
		now:      utils.UTCNow,
		logger:   log.Default(),
		clients:  clients,
		retired:  retired,
		reserved: reserved,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.policy.Validate(); err != nil {
		return nil, err
	}

	sets := StateSets{Active: clients, Retired: retired, Reserved: reserved}
	e.allocator = NewAllocator(e.policy, sets)
	e.reservations = NewReservationManager(e.policy, e.ttl, e.allocator, reserved)
	e.retirement = NewRetirementRecorder(clients, retired)
	return e, nil
}

// Policy returns the range the engine issues from
func (e *Engine) Policy() RangePolicy {
	return e.policy
}

// exclusive runs fn under the exclusive lock inside one transaction. The
// transaction commits before the lock is released.
func (e *Engine) exclusive(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := e.lock.WithExclusive(ctx, func(lockCtx context.Context) error {
		return repository.WithTransaction(lockCtx, e.db, fn)
	})
	observeOperation(op, err)
	return err
}

// AllocateSerial picks the next free serial and inserts the client holding it
// in the same transaction.
func (e *Engine) AllocateSerial(ctx context.Context, reg Registration) (*models.Client, error) {
	var client *models.Client
	err := e.exclusive(ctx, "allocate", func(ctx context.Context) error {
		serial, err := e.allocator.NextAvailable(ctx)
		if err != nil {
			return err
		}
		state, err := e.allocator.StateOf(ctx, serial)
		if err != nil {
			return err
		}
		if state != StateFree {
			return &ConflictError{Serial: serial, State: state}
		}

		client, err = e.insertClient(ctx, serial, reg)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Printf("allocation: assigned serial=%s client_id=%d registered_by=%d", e.policy.Format(client.SerialNumber), client.ID, reg.RegisteredByID)
	return client, nil
}

// ReserveSerial places a hold on a serial for reservedBy's registration form.
// Calling it again while that hold is live returns the same hold.
func (e *Engine) ReserveSerial(ctx context.Context, reservedBy uint) (Reservation, error) {
	var res Reservation
	err := e.exclusive(ctx, "reserve", func(ctx context.Context) error {
		var err error
		res, err = e.reservations.reserve(ctx, reservedBy, e.now())
		return err
	})
	if err != nil {
		return Reservation{}, err
	}

	if !res.Reused {
		e.logger.Printf("allocation: reserved serial=%s reserved_by=%d expires_at=%s", e.policy.Format(res.Serial), reservedBy, res.ExpiresAt.Format(time.RFC3339))
	}
	return res, nil
}

// RedeemSerial turns the hold on serial into a client. token must be the one
// issued by ReserveSerial.
func (e *Engine) RedeemSerial(ctx context.Context, serial int64, token string, reg Registration) (*models.Client, error) {
	var client *models.Client
	err := e.exclusive(ctx, "redeem", func(ctx context.Context) error {
		if err := e.reservations.claim(ctx, serial, token, e.now()); err != nil {
			return err
		}
		var err error
		client, err = e.insertClient(ctx, serial, reg)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Printf("allocation: redeemed serial=%s client_id=%d registered_by=%d", e.policy.Format(serial), client.ID, reg.RegisteredByID)
	return client, nil
}

// ReleaseReservation drops the hold on serial early
func (e *Engine) ReleaseReservation(ctx context.Context, serial int64, token string) error {
	return e.exclusive(ctx, "release", func(ctx context.Context) error {
		return e.reservations.release(ctx, serial, token)
	})
}

// RetireSerial deletes the client and records its serial as retired
func (e *Engine) RetireSerial(ctx context.Context, clientID uint, reason *string) (*models.RetiredSerial, error) {
	var record *models.RetiredSerial
	err := e.exclusive(ctx, "retire", func(ctx context.Context) error {
		var err error
		record, err = e.retirement.retire(ctx, clientID, reason, e.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Printf("allocation: retired serial=%s client_id=%d", e.policy.Format(record.SerialNumber), clientID)
	return record, nil
}

// ExpireStale removes holds that lapsed before now and returns how many
func (e *Engine) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	var removed int64
	err := e.exclusive(ctx, "expire", func(ctx context.Context) error {
		var err error
		removed, err = e.reservations.expireStale(ctx, now)
		return err
	})
	if err != nil {
		return 0, err
	}
	reservationsExpiredTotal.Add(float64(removed))
	return removed, nil
}

// PreviewNext reports the serial the next allocation would likely receive.
// It writes nothing, so a concurrent writer may take the serial first.
func (e *Engine) PreviewNext(ctx context.Context) (int64, error) {
	var serial int64
	err := e.lock.WithShared(ctx, func(ctx context.Context) error {
		var err error
		serial, err = e.allocator.NextAvailable(ctx)
		return err
	})
	observeOperation("preview", err)
	return serial, err
}

// ListActive returns active serials in ascending order. Listing takes no lock.
func (e *Engine) ListActive(ctx context.Context) ([]int64, error) {
	return e.clients.Serials(ctx)
}

// ListRetired returns retired serials in ascending order
func (e *Engine) ListRetired(ctx context.Context) ([]int64, error) {
	return e.retired.Serials(ctx)
}

// ListReserved returns reserved serials in ascending order, including lapsed
// holds the sweep has not removed yet
func (e *Engine) ListReserved(ctx context.Context) ([]int64, error) {
	return e.reserved.Serials(ctx)
}

// Usage counts serials per state and publishes the counts as gauges
func (e *Engine) Usage(ctx context.Context) (Usage, error) {
	var u Usage
	var err error
	if u.Active, err = e.clients.Count(ctx, models.ClientFilter{}); err != nil {
		return Usage{}, err
	}
	if u.Retired, err = e.retired.Count(ctx, models.RetiredSerialFilter{}); err != nil {
		return Usage{}, err
	}
	if u.Reserved, err = e.reserved.Count(ctx, models.ReservedSerialFilter{}); err != nil {
		return Usage{}, err
	}
	u.Free = max(e.policy.Size()-u.Active-u.Retired-u.Reserved, 0)

	serialsInState.WithLabelValues(string(StateActive)).Set(float64(u.Active))
	serialsInState.WithLabelValues(string(StateRetired)).Set(float64(u.Retired))
	serialsInState.WithLabelValues(string(StateReserved)).Set(float64(u.Reserved))
	serialsInState.WithLabelValues(string(StateFree)).Set(float64(u.Free))
	return u, nil
}

func (e *Engine) insertClient(ctx context.Context, serial int64, reg Registration) (*models.Client, error) {
	now := e.now()
	client := &models.Client{
		FirstName:      reg.FirstName,
		LastName:       reg.LastName,
		SerialNumber:   serial,
		RegisteredByID: reg.RegisteredByID,
		CategoryID:     reg.CategoryID,
		AssignedAt:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.clients.Save(ctx, client); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, &ConflictError{Serial: serial, State: StateActive}
		}
		return nil, fmt.Errorf("failed to insert client for serial %d: %w", serial, err)
	}
	return client, nil
}
