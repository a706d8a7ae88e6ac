package allocation

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Allocation engine operations partitioned by operation and outcome
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serial_operations_total",
			Help: "Total number of serial allocation engine operations",
		},
		[]string{"op", "result"},
	)

	// Time spent waiting for the allocation lock
	lockWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serial_lock_wait_seconds",
			Help:    "Time spent waiting to acquire the allocation lock",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"mode", "backend"},
	)

	reservationsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "serial_reservations_expired_total",
			Help: "Total number of reservations removed by the expiry sweep",
		},
	)

	// Serials per state as of the last Usage call
	serialsInState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "serials_in_state",
			Help: "Number of serials currently in each state",
		},
		[]string{"state"},
	)
)

func observeLockWait(mode LockMode, backend string, waited time.Duration) {
	lockWaitSeconds.WithLabelValues(string(mode), backend).Observe(waited.Seconds())
}

func observeOperation(op string, err error) {
	operationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrReservationNotFound):
		return "not_found"
	case errors.Is(err, ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrReservationTokenMismatch):
		return "token_mismatch"
	case errors.Is(err, ErrReservationExpired):
		return "expired"
	default:
		return "error"
	}
}
