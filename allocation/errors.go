package allocation

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrExhausted                = errors.New("serial range exhausted")
	ErrConflict                 = errors.New("serial already in use")
	ErrNotFound                 = errors.New("client not found")
	ErrLockTimeout              = errors.New("timed out waiting for allocation lock")
	ErrOutOfRange               = errors.New("serial out of range")
	ErrReservationNotFound      = errors.New("reservation not found")
	ErrReservationTokenMismatch = errors.New("reservation token mismatch")
	ErrReservationExpired       = errors.New("reservation expired")
	ErrReservationOwnerRequired = errors.New("reservation requires an operator")
)

// ExhaustedError is returned when no serial in the range is free
type ExhaustedError struct {
	Min int64
	Max int64
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("serial range [%d, %d] exhausted", e.Min, e.Max)
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// ConflictError is returned when a specific serial is already held
type ConflictError struct {
	Serial int64
	State  SerialState
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("serial %d is already %s", e.Serial, e.State)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// NotFoundError is returned when retiring a client that does not exist
type NotFoundError struct {
	ClientID uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("client %d has no active serial", e.ClientID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// LockTimeoutError is returned when the allocation lock was not acquired in
// time. Callers may retry.
type LockTimeoutError struct {
	Lock   string
	Mode   LockMode
	Waited time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s lock %q", e.Waited.Round(time.Millisecond), e.Mode, e.Lock)
}

func (e *LockTimeoutError) Is(target error) bool {
	return target == ErrLockTimeout
}

// OutOfRangeError is returned when a caller names a serial outside the range
type OutOfRangeError struct {
	Serial int64
	Min    int64
	Max    int64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("serial %d is outside [%d, %d]", e.Serial, e.Min, e.Max)
}

func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

func IsExhausted(err error) bool {
	return errors.Is(err, ErrExhausted)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsLockTimeout(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

func IsOutOfRange(err error) bool {
	return errors.Is(err, ErrOutOfRange)
}
