package allocation

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/amirphl/ams-registry/models"
	"github.com/amirphl/ams-registry/repository"
	"github.com/google/uuid"
)

// Reservation is a pending hold on a serial
type Reservation struct {
	Serial     int64
	Token      string
	ReservedBy uint
	ReservedAt time.Time
	ExpiresAt  time.Time
	// Reused is set when the caller's own live hold was handed back instead of a new one
	Reused bool
}

func newReservation(r *models.ReservedSerial, ttl time.Duration, reused bool) Reservation {
	res := Reservation{
		Serial:     r.SerialNumber,
		Token:      r.Token,
		ReservedAt: r.ReservedAt,
		ExpiresAt:  r.ExpiresAt(ttl),
		Reused:     reused,
	}
	if r.ReservedByID != nil {
		res.ReservedBy = *r.ReservedByID
	}
	return res
}

// ReservationManager creates, redeems, releases and expires holds. Every
// method expects the exclusive lock and a transaction in ctx.
type ReservationManager struct {
	policy    RangePolicy
	ttl       time.Duration
	allocator *Allocator
	reserved  repository.ReservedSerialRepository
}

func NewReservationManager(policy RangePolicy, ttl time.Duration, allocator *Allocator, reserved repository.ReservedSerialRepository) *ReservationManager {
	return &ReservationManager{policy: policy, ttl: ttl, allocator: allocator, reserved: reserved}
}

// reserve hands back reservedBy's own live hold if one exists, otherwise
// allocates a fresh serial and persists a hold with a new random token.
// A hold is never returned to anyone but the operator who placed it.
func (m *ReservationManager) reserve(ctx context.Context, reservedBy uint, now time.Time) (Reservation, error) {
	if reservedBy == 0 {
		return Reservation{}, ErrReservationOwnerRequired
	}

	live, err := m.reserved.LiveHeldBy(ctx, reservedBy, now.Add(-m.ttl))
	if err != nil {
		return Reservation{}, err
	}
	if live != nil {
		return newReservation(live, m.ttl, true), nil
	}

	serial, err := m.allocator.NextAvailable(ctx)
	if err != nil {
		return Reservation{}, err
	}

	held := &models.ReservedSerial{
		SerialNumber: serial,
		Token:        uuid.NewString(),
		ReservedByID: &reservedBy,
		ReservedAt:   now,
	}
	if err := m.reserved.Save(ctx, held); err != nil {
		if repository.IsUniqueViolation(err) {
			return Reservation{}, &ConflictError{Serial: serial, State: StateReserved}
		}
		return Reservation{}, fmt.Errorf("failed to persist reservation %d: %w", serial, err)
	}
	return newReservation(held, m.ttl, false), nil
}

// claim validates that serial is held by token and consumes the hold.
// Active and retired serials conflict before the hold is looked at.
func (m *ReservationManager) claim(ctx context.Context, serial int64, token string, now time.Time) error {
	if !m.policy.Contains(serial) {
		return &OutOfRangeError{Serial: serial, Min: m.policy.Min, Max: m.policy.Max}
	}

	state, err := m.allocator.StateOf(ctx, serial)
	if err != nil {
		return err
	}
	if state == StateActive || state == StateRetired {
		return &ConflictError{Serial: serial, State: state}
	}

	held, err := m.verify(ctx, serial, token)
	if err != nil {
		return err
	}
	if now.After(held.ExpiresAt(m.ttl)) {
		return fmt.Errorf("serial %d hold lapsed at %s: %w", serial, held.ExpiresAt(m.ttl).Format(time.RFC3339), ErrReservationExpired)
	}

	if _, err := m.reserved.DeleteBySerial(ctx, serial); err != nil {
		return err
	}
	return nil
}

// release drops a hold before it expires
func (m *ReservationManager) release(ctx context.Context, serial int64, token string) error {
	if _, err := m.verify(ctx, serial, token); err != nil {
		return err
	}
	_, err := m.reserved.DeleteBySerial(ctx, serial)
	return err
}

func (m *ReservationManager) verify(ctx context.Context, serial int64, token string) (*models.ReservedSerial, error) {
	held, err := m.reserved.BySerial(ctx, serial)
	if err != nil {
		return nil, err
	}
	if held == nil {
		return nil, fmt.Errorf("serial %d: %w", serial, ErrReservationNotFound)
	}
	if subtle.ConstantTimeCompare([]byte(held.Token), []byte(token)) != 1 {
		return nil, fmt.Errorf("serial %d: %w", serial, ErrReservationTokenMismatch)
	}
	return held, nil
}

// expireStale removes every hold that lapsed before now
func (m *ReservationManager) expireStale(ctx context.Context, now time.Time) (int64, error) {
	return m.reserved.DeleteReservedBefore(ctx, now.Add(-m.ttl))
}
