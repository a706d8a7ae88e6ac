package allocation

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrors(t *testing.T) {
	exhausted := fmt.Errorf("allocate: %w", &ExhaustedError{Min: 5000, Max: 99999})
	assert.True(t, IsExhausted(exhausted))
	assert.Contains(t, exhausted.Error(), "[5000, 99999]")
	var ee *ExhaustedError
	assert.True(t, errors.As(exhausted, &ee))

	conflict := &ConflictError{Serial: 5002, State: StateRetired}
	assert.True(t, IsConflict(conflict))
	assert.False(t, IsExhausted(conflict))
	assert.Equal(t, "serial 5002 is already retired", conflict.Error())

	assert.True(t, IsNotFound(&NotFoundError{ClientID: 7}))
	assert.True(t, IsOutOfRange(&OutOfRangeError{Serial: 4999, Min: 5000, Max: 99999}))

	timeout := &LockTimeoutError{Lock: LockName, Mode: ModeExclusive, Waited: 1500 * time.Millisecond}
	assert.True(t, IsLockTimeout(timeout))
	assert.Contains(t, timeout.Error(), "1.5s")
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", resultLabel(nil))
	assert.Equal(t, "exhausted", resultLabel(&ExhaustedError{}))
	assert.Equal(t, "conflict", resultLabel(&ConflictError{}))
	assert.Equal(t, "lock_timeout", resultLabel(&LockTimeoutError{}))
	assert.Equal(t, "token_mismatch", resultLabel(fmt.Errorf("x: %w", ErrReservationTokenMismatch)))
	assert.Equal(t, "error", resultLabel(errors.New("boom")))
}
