package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpirer struct {
	mu      sync.Mutex
	calls   []time.Time
	results []int64
	err     error
}

func (f *fakeExpirer) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	if f.err != nil {
		return 0, f.err
	}
	if len(f.results) == 0 {
		return 0, nil
	}
	n := f.results[0]
	f.results = f.results[1:]
	return n, nil
}

func (f *fakeExpirer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestReservationSweeperRunsImmediatelyAndOnTick(t *testing.T) {
	expirer := &fakeExpirer{results: []int64{2, 0, 1}}
	var buf bytes.Buffer
	sweeper := NewReservationSweeper(expirer, log.New(&buf, "", 0), 10*time.Millisecond)

	stop := sweeper.Start(context.Background())
	require.Eventually(t, func() bool { return expirer.callCount() >= 3 }, time.Second, 5*time.Millisecond)
	stop()

	runs, removed := sweeper.Stats()
	assert.GreaterOrEqual(t, runs, int64(3))
	assert.Equal(t, int64(3), removed)
	assert.Contains(t, buf.String(), "released 2 expired reservations")
}

func TestReservationSweeperUsesClock(t *testing.T) {
	expirer := &fakeExpirer{}
	sweeper := NewReservationSweeper(expirer, log.New(&bytes.Buffer{}, "", 0), time.Hour)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sweeper.clock = func() time.Time { return fixed }

	sweeper.runOnce(context.Background())

	require.Len(t, expirer.calls, 1)
	assert.Equal(t, fixed, expirer.calls[0])
}

func TestReservationSweeperLogsFailures(t *testing.T) {
	expirer := &fakeExpirer{err: errors.New("lock busy")}
	var buf bytes.Buffer
	sweeper := NewReservationSweeper(expirer, log.New(&buf, "", 0), time.Hour)

	sweeper.runOnce(context.Background())

	assert.Contains(t, buf.String(), "reservation sweep failed: lock busy")
	_, removed := sweeper.Stats()
	assert.Zero(t, removed)
}

func TestReservationSweeperStopsWithParentContext(t *testing.T) {
	expirer := &fakeExpirer{}
	sweeper := NewReservationSweeper(expirer, log.New(&bytes.Buffer{}, "", 0), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	stop := sweeper.Start(ctx)
	require.Eventually(t, func() bool { return expirer.callCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	finished := make(chan struct{})
	go func() {
		stop()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestNewReservationSweeperDefaults(t *testing.T) {
	sweeper := NewReservationSweeper(&fakeExpirer{}, nil, 0)
	assert.Equal(t, time.Minute, sweeper.interval)
	assert.NotNil(t, sweeper.logger)
}
