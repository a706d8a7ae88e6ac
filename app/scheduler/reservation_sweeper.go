// Package scheduler runs periodic maintenance jobs against the serial registry
package scheduler

import (
	"context"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/amirphl/ams-registry/utils"
)

// StaleExpirer removes reservations that lapsed before now
type StaleExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// ReservationSweeper periodically drops expired serial holds so their serials
// become allocatable again
type ReservationSweeper struct {
	expirer  StaleExpirer
	logger   *log.Logger
	interval time.Duration
	timeout  time.Duration
	clock    func() time.Time

	runs    atomic.Int64
	removed atomic.Int64
}

func NewReservationSweeper(expirer StaleExpirer, logger *log.Logger, interval time.Duration) *ReservationSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = log.New(os.Stdout, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
	}

	return &ReservationSweeper{
		expirer:  expirer,
		logger:   logger,
		interval: interval,
		timeout:  interval,
		clock:    utils.UTCNow,
	}
}

// Start launches the sweep loop in a background goroutine and returns a stop function.
// The returned function blocks until the loop has exited.
func (s *ReservationSweeper) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *ReservationSweeper) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.runs.Add(1)
	removed, err := s.expirer.ExpireStale(runCtx, s.clock())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Printf("scheduler: reservation sweep failed: %v", err)
		return
	}
	if removed > 0 {
		s.removed.Add(removed)
		s.logger.Printf("scheduler: released %d expired reservations", removed)
	}
}

// Stats reports how many sweeps ran and how many holds they released in total
func (s *ReservationSweeper) Stats() (runs, removed int64) {
	return s.runs.Load(), s.removed.Load()
}
