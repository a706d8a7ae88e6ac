package allocation

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySet is an in-memory serial set that records how it was read
type memorySet struct {
	serials []int64
	listed  int
	counted int
}

func newMemorySet(serials ...int64) *memorySet {
	s := slices.Clone(serials)
	slices.Sort(s)
	return &memorySet{serials: slices.Compact(s)}
}

func (m *memorySet) MaxSerial(ctx context.Context) (int64, bool, error) {
	if len(m.serials) == 0 {
		return 0, false, nil
	}
	return m.serials[len(m.serials)-1], true, nil
}

func (m *memorySet) Serials(ctx context.Context) ([]int64, error) {
	m.listed++
	return slices.Clone(m.serials), nil
}

func (m *memorySet) HasSerial(ctx context.Context, serial int64) (bool, error) {
	_, ok := slices.BinarySearch(m.serials, serial)
	return ok, nil
}

func (m *memorySet) CountSerials(ctx context.Context, from, to int64) (int64, error) {
	m.counted++
	lo, _ := slices.BinarySearch(m.serials, from)
	hi, _ := slices.BinarySearch(m.serials, to+1)
	return int64(hi - lo), nil
}

func serialRange(from, to int64) []int64 {
	out := make([]int64, 0, to-from+1)
	for s := from; s <= to; s++ {
		out = append(out, s)
	}
	return out
}

func without(serials []int64, drop ...int64) []int64 {
	return slices.DeleteFunc(slices.Clone(serials), func(s int64) bool {
		return slices.Contains(drop, s)
	})
}

type memorySets struct {
	active, retired, reserved *memorySet
}

func (m memorySets) stateSets() StateSets {
	return StateSets{Active: m.active, Retired: m.retired, Reserved: m.reserved}
}

func (m memorySets) listed() int {
	return m.active.listed + m.retired.listed + m.reserved.listed
}

func (m memorySets) counted() int {
	return m.active.counted + m.retired.counted + m.reserved.counted
}

func TestAllocator_NextAvailable(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		policy   RangePolicy
		active   []int64
		retired  []int64
		reserved []int64
		want     int64
	}{
		{"empty", DefaultRangePolicy(), nil, nil, nil, 5000},
		{"dense prefix", DefaultRangePolicy(), []int64{5000, 5001, 5002}, nil, nil, 5003},
		{"hole", DefaultRangePolicy(), []int64{5000, 5001, 5003}, nil, nil, 5002},
		{"hole at start", DefaultRangePolicy(), []int64{5001, 5002}, nil, nil, 5000},
		{"ignores values below min", DefaultRangePolicy(), []int64{10, 4999, 5000}, nil, nil, 5001},
		{"only top free", RangePolicy{Min: 5000, Max: 5002, Fill: FillLowestFree}, []int64{5000, 5001}, nil, nil, 5002},
		{"retired and reserved count as used", DefaultRangePolicy(), []int64{5000}, []int64{5001}, []int64{5002}, 5003},
		{"hole between sets", DefaultRangePolicy(), []int64{5000, 5003}, []int64{5001}, []int64{5004}, 5002},
		{"deep hole", DefaultRangePolicy(), without(serialRange(5000, 60000), 43210), nil, []int64{60001}, 43210},
		{"high water skips holes", RangePolicy{Min: 5000, Max: 5020, Fill: FillHighWater}, []int64{5000, 5002}, nil, nil, 5003},
		{"high water fills holes at the top", RangePolicy{Min: 5000, Max: 5009, Fill: FillHighWater}, without(serialRange(5000, 5009), 5004), nil, nil, 5004},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sets := memorySets{newMemorySet(tt.active...), newMemorySet(tt.retired...), newMemorySet(tt.reserved...)}
			got, err := NewAllocator(tt.policy, sets.stateSets()).NextAvailable(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Zero(t, sets.listed(), "allocation must not list whole sets")
		})
	}
}

func TestAllocator_DenseRangeUsesOneCount(t *testing.T) {
	ctx := context.Background()
	sets := memorySets{
		active:   newMemorySet(serialRange(5000, 94999)...),
		retired:  newMemorySet(serialRange(95000, 95999)...),
		reserved: newMemorySet(96000),
	}

	got, err := NewAllocator(DefaultRangePolicy(), sets.stateSets()).NextAvailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(96001), got)
	assert.Zero(t, sets.listed())
	// one CountSerials per set
	assert.Equal(t, 3, sets.counted())
}

func TestAllocator_HoleSearchIsLogarithmic(t *testing.T) {
	ctx := context.Background()
	sets := memorySets{
		active:   newMemorySet(without(serialRange(5000, 99998), 5001)...),
		retired:  newMemorySet(),
		reserved: newMemorySet(99999),
	}

	got, err := NewAllocator(DefaultRangePolicy(), sets.stateSets()).NextAvailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5001), got)
	assert.Zero(t, sets.listed())
	// 95000 serials need at most 17 halvings plus the whole-range check
	assert.LessOrEqual(t, sets.counted(), 3*18)
}

func TestAllocator_Exhausted(t *testing.T) {
	ctx := context.Background()

	for _, fill := range []FillPolicy{FillLowestFree, FillHighWater} {
		t.Run(string(fill), func(t *testing.T) {
			policy := RangePolicy{Min: 5000, Max: 5009, Fill: fill}
			sets := memorySets{
				active:   newMemorySet(serialRange(5000, 5005)...),
				retired:  newMemorySet(5006, 5007),
				reserved: newMemorySet(5008, 5009),
			}

			_, err := NewAllocator(policy, sets.stateSets()).NextAvailable(ctx)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrExhausted))

			var exhausted *ExhaustedError
			require.True(t, errors.As(err, &exhausted))
			assert.Equal(t, int64(5000), exhausted.Min)
			assert.Equal(t, int64(5009), exhausted.Max)
			assert.Zero(t, sets.listed())
		})
	}
}

func TestAllocator_IsTaken(t *testing.T) {
	ctx := context.Background()
	sets := memorySets{newMemorySet(5000), newMemorySet(5001), newMemorySet(5002)}
	allocator := NewAllocator(DefaultRangePolicy(), sets.stateSets())

	for serial, want := range map[int64]SerialState{
		5000: StateActive,
		5001: StateRetired,
		5002: StateReserved,
		5003: StateFree,
	} {
		state, err := allocator.StateOf(ctx, serial)
		require.NoError(t, err)
		assert.Equal(t, want, state, "serial %d", serial)

		taken, err := allocator.IsTaken(ctx, serial)
		require.NoError(t, err)
		assert.Equal(t, want != StateFree, taken, "serial %d", serial)
	}
}
