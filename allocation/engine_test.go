package allocation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/ams-registry/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_AllocateSerial(t *testing.T) {
	ctx := context.Background()

	t.Run("first allocation starts at the range minimum", func(t *testing.T) {
		env := setupEngine(t)
		client, err := env.engine.AllocateSerial(ctx, env.registration())
		require.NoError(t, err)
		assert.Equal(t, MinSerial, client.SerialNumber)
		assert.Equal(t, env.user.ID, client.RegisteredByID)
		assert.Equal(t, env.clock.Now(), client.AssignedAt)
	})

	t.Run("monotonic while there are no holes", func(t *testing.T) {
		env := setupEngine(t)
		var got []int64
		for i := 0; i < 5; i++ {
			client, err := env.engine.AllocateSerial(ctx, env.registration())
			require.NoError(t, err)
			got = append(got, client.SerialNumber)
		}
		assert.Equal(t, serialRange(5000, 5004), got)
	})

	t.Run("fills holes below the highest serial", func(t *testing.T) {
		env := setupEngine(t)
		env.seedActive(t, 5000, 5001, 5003)

		client, err := env.engine.AllocateSerial(ctx, env.registration())
		require.NoError(t, err)
		assert.Equal(t, int64(5002), client.SerialNumber)

		client, err = env.engine.AllocateSerial(ctx, env.registration())
		require.NoError(t, err)
		assert.Equal(t, int64(5004), client.SerialNumber)
	})

	t.Run("skips retired and reserved serials", func(t *testing.T) {
		env := setupEngine(t)
		_, err := env.fx.CreateTestRetired(5000, 99)
		require.NoError(t, err)
		_, err = env.fx.CreateTestReservation(5001, &env.user.ID, env.clock.Now())
		require.NoError(t, err)

		client, err := env.engine.AllocateSerial(ctx, env.registration())
		require.NoError(t, err)
		assert.Equal(t, int64(5002), client.SerialNumber)
	})

	t.Run("high water policy appends above the maximum", func(t *testing.T) {
		env := setupEngine(t, WithRangePolicy(RangePolicy{Min: MinSerial, Max: MaxSerial, Fill: FillHighWater}))
		env.seedActive(t, 5000, 5001, 5003)

		client, err := env.engine.AllocateSerial(ctx, env.registration())
		require.NoError(t, err)
		assert.Equal(t, int64(5004), client.SerialNumber)
	})

	t.Run("high water policy scans for holes at the top of the range", func(t *testing.T) {
		env := setupEngine(t, WithRangePolicy(RangePolicy{Min: MinSerial, Max: MaxSerial, Fill: FillHighWater}))
		env.seedActive(t, 5000, 99999)

		client, err := env.engine.AllocateSerial(ctx, env.registration())
		require.NoError(t, err)
		assert.Equal(t, int64(5001), client.SerialNumber)
	})

	t.Run("failed insert leaves no serial behind", func(t *testing.T) {
		env := setupEngine(t)
		reg := env.registration()
		reg.CategoryID = 424242

		_, err := env.engine.AllocateSerial(ctx, reg)
		require.Error(t, err)

		active, err := env.engine.ListActive(ctx)
		require.NoError(t, err)
		assert.Empty(t, active)
	})
}

func TestEngine_Exhaustion(t *testing.T) {
	ctx := context.Background()

	t.Run("small range", func(t *testing.T) {
		env := setupEngine(t, WithRangePolicy(RangePolicy{Min: 5000, Max: 5002, Fill: FillLowestFree}))
		for i := 0; i < 3; i++ {
			_, err := env.engine.AllocateSerial(ctx, env.registration())
			require.NoError(t, err)
		}

		_, err := env.engine.AllocateSerial(ctx, env.registration())
		require.Error(t, err)
		var exhausted *ExhaustedError
		require.True(t, errors.As(err, &exhausted))
		assert.Equal(t, int64(5000), exhausted.Min)
		assert.Equal(t, int64(5002), exhausted.Max)

		_, err = env.engine.ReserveSerial(ctx, env.user.ID)
		assert.True(t, IsExhausted(err))
	})

	t.Run("full production range", func(t *testing.T) {
		if testing.Short() {
			t.Skip("fills 95000 rows")
		}
		env := setupEngine(t)
		require.NoError(t, env.fx.FillClients(MinSerial, MaxSerial, env.user.ID, env.category.ID))

		_, err := env.engine.AllocateSerial(ctx, env.registration())
		assert.True(t, IsExhausted(err))

		preview, err := env.engine.PreviewNext(ctx)
		assert.True(t, IsExhausted(err))
		assert.Zero(t, preview)

		usage, err := env.engine.Usage(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(95000), usage.Active)
		assert.Zero(t, usage.Free)
	})

	t.Run("retiring does not free capacity", func(t *testing.T) {
		env := setupEngine(t, WithRangePolicy(RangePolicy{Min: 5000, Max: 5001, Fill: FillLowestFree}))
		first, err := env.engine.AllocateSerial(ctx, env.registration())
		require.NoError(t, err)
		_, err = env.engine.AllocateSerial(ctx, env.registration())
		require.NoError(t, err)

		_, err = env.engine.RetireSerial(ctx, first.ID, nil)
		require.NoError(t, err)

		_, err = env.engine.AllocateSerial(ctx, env.registration())
		assert.True(t, IsExhausted(err))
	})
}

func TestEngine_ConcurrentAllocations(t *testing.T) {
	ctx := context.Background()
	env := setupEngine(t)

	const workers = 100
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		serials []int64
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client, err := env.engine.AllocateSerial(ctx, env.registration())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			serials = append(serials, client.SerialNumber)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	slices.Sort(serials)
	assert.Equal(t, serialRange(5000, 5000+workers-1), serials)

	active, err := env.engine.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, serials, active)
}

func TestEngine_ConcurrentReservesByOneOperator(t *testing.T) {
	ctx := context.Background()
	env := setupEngine(t)

	var wg sync.WaitGroup
	results := make(chan Reservation, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.engine.ReserveSerial(ctx, env.user.ID)
			if assert.NoError(t, err) {
				results <- res
			}
		}()
	}
	wg.Wait()
	close(results)

	fresh := 0
	tokens := map[string]struct{}{}
	for res := range results {
		assert.Equal(t, MinSerial, res.Serial)
		assert.Equal(t, env.user.ID, res.ReservedBy)
		tokens[res.Token] = struct{}{}
		if !res.Reused {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.Len(t, tokens, 1)

	reserved, err := env.engine.ListReserved(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{MinSerial}, reserved)
}

func TestEngine_HoldsAreNotSharedBetweenOperators(t *testing.T) {
	ctx := context.Background()

	t.Run("second operator gets its own serial and token", func(t *testing.T) {
		env := setupEngine(t)
		other, err := env.fx.CreateTestUser("")
		require.NoError(t, err)

		mine, err := env.engine.ReserveSerial(ctx, env.user.ID)
		require.NoError(t, err)
		theirs, err := env.engine.ReserveSerial(ctx, other.ID)
		require.NoError(t, err)

		assert.False(t, theirs.Reused)
		assert.Equal(t, MinSerial, mine.Serial)
		assert.Equal(t, MinSerial+1, theirs.Serial)
		assert.NotEqual(t, mine.Token, theirs.Token)
		assert.Equal(t, other.ID, theirs.ReservedBy)

		// the other operator's token does not open this hold
		_, err = env.engine.RedeemSerial(ctx, mine.Serial, theirs.Token, env.registration())
		assert.ErrorIs(t, err, ErrReservationTokenMismatch)

		client, err := env.engine.RedeemSerial(ctx, mine.Serial, mine.Token, env.registration())
		require.NoError(t, err)
		assert.Equal(t, mine.Serial, client.SerialNumber)

		again, err := env.engine.ReserveSerial(ctx, other.ID)
		require.NoError(t, err)
		assert.True(t, again.Reused)
		assert.Equal(t, theirs.Token, again.Token)
	})

	t.Run("concurrent operators each get a distinct hold", func(t *testing.T) {
		env := setupEngine(t)
		const operators = 5
		ids := make([]uint, operators)
		for i := range ids {
			u, err := env.fx.CreateTestUser(fmt.Sprintf("clerk_%d", i))
			require.NoError(t, err)
			ids[i] = u.ID
		}

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			serials []int64
			tokens  = map[string]struct{}{}
		)
		for _, id := range ids {
			wg.Add(1)
			go func(id uint) {
				defer wg.Done()
				res, err := env.engine.ReserveSerial(ctx, id)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				serials = append(serials, res.Serial)
				tokens[res.Token] = struct{}{}
			}(id)
		}
		wg.Wait()

		slices.Sort(serials)
		assert.Equal(t, serialRange(MinSerial, MinSerial+operators-1), serials)
		assert.Len(t, tokens, operators)
	})

	t.Run("operator is required", func(t *testing.T) {
		env := setupEngine(t)
		_, err := env.engine.ReserveSerial(ctx, 0)
		assert.ErrorIs(t, err, ErrReservationOwnerRequired)
	})
}

func TestEngine_Reservations(t *testing.T) {
	ctx := context.Background()

	t.Run("reserve then redeem", func(t *testing.T) {
		env := setupEngine(t)

		res, err := env.engine.ReserveSerial(ctx, env.user.ID)
		require.NoError(t, err)
		assert.Equal(t, MinSerial, res.Serial)
		assert.NotEmpty(t, res.Token)
		assert.False(t, res.Reused)
		assert.Equal(t, env.clock.Now().Add(ReservationTTL), res.ExpiresAt)

		again, err := env.engine.ReserveSerial(ctx, env.user.ID)
		require.NoError(t, err)
		assert.True(t, again.Reused)
		assert.Equal(t, res.Serial, again.Serial)
		assert.Equal(t, res.Token, again.Token)

		allocated, err := env.engine.AllocateSerial(ctx, env.registration())
		require.NoError(t, err)
		assert.Equal(t, int64(5001), allocated.SerialNumber)

		client, err := env.engine.RedeemSerial(ctx, res.Serial, res.Token, env.registration())
		require.NoError(t, err)
		assert.Equal(t, res.Serial, client.SerialNumber)

		reserved, err := env.engine.ListReserved(ctx)
		require.NoError(t, err)
		assert.Empty(t, reserved)

		active, err := env.engine.ListActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{5000, 5001}, active)
	})

	t.Run("wrong token is rejected and the hold survives", func(t *testing.T) {
		env := setupEngine(t)
		res, err := env.engine.ReserveSerial(ctx, env.user.ID)
		require.NoError(t, err)

		_, err = env.engine.RedeemSerial(ctx, res.Serial, "not-the-token", env.registration())
		assert.ErrorIs(t, err, ErrReservationTokenMismatch)

		reserved, err := env.engine.ListReserved(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{res.Serial}, reserved)
	})

	t.Run("unreserved serial cannot be redeemed", func(t *testing.T) {
		env := setupEngine(t)
		_, err := env.engine.RedeemSerial(ctx, 5007, "anything", env.registration())
		assert.ErrorIs(t, err, ErrReservationNotFound)
	})

	t.Run("out of range serial", func(t *testing.T) {
		env := setupEngine(t)
		_, err := env.engine.RedeemSerial(ctx, 100000, "anything", env.registration())
		var oor *OutOfRangeError
		require.True(t, errors.As(err, &oor))
		assert.Equal(t, int64(100000), oor.Serial)
	})

	t.Run("active serial conflicts without touching state", func(t *testing.T) {
		env := setupEngine(t)
		env.seedActive(t, 5000)

		_, err := env.engine.RedeemSerial(ctx, 5000, "anything", env.registration())
		var conflict *ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, int64(5000), conflict.Serial)
		assert.Equal(t, StateActive, conflict.State)

		count, err := env.clients.Count(ctx, filterAll())
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("retired serial conflicts", func(t *testing.T) {
		env := setupEngine(t)
		_, err := env.fx.CreateTestRetired(5003, 1)
		require.NoError(t, err)

		_, err = env.engine.RedeemSerial(ctx, 5003, "anything", env.registration())
		var conflict *ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, StateRetired, conflict.State)
	})

	t.Run("lapsed hold cannot be redeemed", func(t *testing.T) {
		env := setupEngine(t)
		res, err := env.engine.ReserveSerial(ctx, env.user.ID)
		require.NoError(t, err)

		env.clock.Advance(ReservationTTL + time.Minute)
		_, err = env.engine.RedeemSerial(ctx, res.Serial, res.Token, env.registration())
		assert.ErrorIs(t, err, ErrReservationExpired)
	})

	t.Run("failed redeem keeps the hold", func(t *testing.T) {
		env := setupEngine(t)
		res, err := env.engine.ReserveSerial(ctx, env.user.ID)
		require.NoError(t, err)

		reg := env.registration()
		reg.RegisteredByID = 987654
		_, err = env.engine.RedeemSerial(ctx, res.Serial, res.Token, reg)
		require.Error(t, err)

		reserved, err := env.engine.ListReserved(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{res.Serial}, reserved)
		active, err := env.engine.ListActive(ctx)
		require.NoError(t, err)
		assert.Empty(t, active)
	})

	t.Run("release frees the serial", func(t *testing.T) {
		env := setupEngine(t)
		res, err := env.engine.ReserveSerial(ctx, env.user.ID)
		require.NoError(t, err)

		err = env.engine.ReleaseReservation(ctx, res.Serial, "wrong")
		assert.ErrorIs(t, err, ErrReservationTokenMismatch)

		require.NoError(t, env.engine.ReleaseReservation(ctx, res.Serial, res.Token))

		client, err := env.engine.AllocateSerial(ctx, env.registration())
		require.NoError(t, err)
		assert.Equal(t, res.Serial, client.SerialNumber)
	})
}

func TestEngine_ExpireStale(t *testing.T) {
	ctx := context.Background()
	env := setupEngine(t)
	t0 := env.clock.Now()

	res, err := env.engine.ReserveSerial(ctx, env.user.ID)
	require.NoError(t, err)

	removed, err := env.engine.ExpireStale(ctx, t0.Add(59*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = env.engine.ExpireStale(ctx, t0.Add(61*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	reserved, err := env.engine.ListReserved(ctx)
	require.NoError(t, err)
	assert.Empty(t, reserved)

	client, err := env.engine.AllocateSerial(ctx, env.registration())
	require.NoError(t, err)
	assert.Equal(t, res.Serial, client.SerialNumber)
}

func TestEngine_LapsedHoldIsNotReused(t *testing.T) {
	ctx := context.Background()
	env := setupEngine(t)

	first, err := env.engine.ReserveSerial(ctx, env.user.ID)
	require.NoError(t, err)

	env.clock.Advance(2 * ReservationTTL)
	second, err := env.engine.ReserveSerial(ctx, env.user.ID)
	require.NoError(t, err)
	assert.False(t, second.Reused)
	assert.NotEqual(t, first.Serial, second.Serial)
	assert.NotEqual(t, first.Token, second.Token)
}

func TestEngine_RetireSerial(t *testing.T) {
	ctx := context.Background()
	env := setupEngine(t)

	_, err := env.engine.RetireSerial(ctx, 31337, nil)
	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, uint(31337), notFound.ClientID)

	first, err := env.engine.AllocateSerial(ctx, env.registration())
	require.NoError(t, err)
	second, err := env.engine.AllocateSerial(ctx, env.registration())
	require.NoError(t, err)

	record, err := env.engine.RetireSerial(ctx, first.ID, utils.ToPtr("duplicate registration"))
	require.NoError(t, err)
	assert.Equal(t, first.SerialNumber, record.SerialNumber)
	assert.Equal(t, first.ID, record.OriginalClientID)
	require.NotNil(t, record.Reason)
	assert.Equal(t, "duplicate registration", *record.Reason)

	active, err := env.engine.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{second.SerialNumber}, active)

	retired, err := env.engine.ListRetired(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{first.SerialNumber}, retired)

	next, err := env.engine.AllocateSerial(ctx, env.registration())
	require.NoError(t, err)
	assert.Equal(t, int64(5002), next.SerialNumber)

	_, err = env.engine.RetireSerial(ctx, first.ID, nil)
	assert.True(t, IsNotFound(err))

	usage, err := env.engine.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, Usage{Active: 2, Retired: 1, Reserved: 0, Free: 95000 - 3}, usage)
}

func TestEngine_PreviewNext(t *testing.T) {
	ctx := context.Background()
	env := setupEngine(t)
	env.seedActive(t, 5000, 5002)

	preview, err := env.engine.PreviewNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5001), preview)

	again, err := env.engine.PreviewNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, preview, again)

	client, err := env.engine.AllocateSerial(ctx, env.registration())
	require.NoError(t, err)
	assert.Equal(t, preview, client.SerialNumber)
}

func TestEngine_SetsStayDisjoint(t *testing.T) {
	ctx := context.Background()
	env := setupEngine(t)

	for i := 0; i < 6; i++ {
		_, err := env.engine.AllocateSerial(ctx, env.registration())
		require.NoError(t, err)
	}
	_, err := env.engine.ReserveSerial(ctx, env.user.ID)
	require.NoError(t, err)
	active, err := env.engine.ListActive(ctx)
	require.NoError(t, err)
	for _, id := range []int{0, 2} {
		client, err := env.clients.BySerial(ctx, active[id])
		require.NoError(t, err)
		_, err = env.engine.RetireSerial(ctx, client.ID, nil)
		require.NoError(t, err)
	}

	seen := map[int64]SerialState{}
	for state, list := range map[SerialState]func(context.Context) ([]int64, error){
		StateActive:   env.engine.ListActive,
		StateRetired:  env.engine.ListRetired,
		StateReserved: env.engine.ListReserved,
	} {
		serials, err := list(ctx)
		require.NoError(t, err)
		for _, s := range serials {
			prev, dup := seen[s]
			assert.False(t, dup, "serial %d is both %s and %s", s, prev, state)
			assert.True(t, env.engine.Policy().Contains(s))
			seen[s] = state
		}
	}
	assert.Len(t, seen, 7)
}
