package allocation

import (
	"context"
)

// Allocator picks the next free serial. Its methods read persisted state and
// must run inside the exclusive section, in the same transaction as the write
// that consumes the result.
type Allocator struct {
	policy RangePolicy
	sets   StateSets
}

func NewAllocator(policy RangePolicy, sets StateSets) *Allocator {
	return &Allocator{policy: policy, sets: sets}
}

// NextAvailable returns a serial that is in no set, or an ExhaustedError.
// It issues only aggregate queries, so the cost does not grow with the
// number of occupied serials.
func (a *Allocator) NextAvailable(ctx context.Context) (int64, error) {
	highest, ok, err := a.sets.Highest(ctx)
	if err != nil {
		return 0, err
	}
	if !ok || highest < a.policy.Min {
		highest = a.policy.Min - 1
	}
	if highest > a.policy.Max {
		highest = a.policy.Max
	}

	if a.policy.Fill == FillHighWater && highest < a.policy.Max {
		return highest + 1, nil
	}

	serial, ok, err := a.lowestFree(ctx, highest)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &ExhaustedError{Min: a.policy.Min, Max: a.policy.Max}
	}
	return serial, nil
}

// lowestFree binary-searches [Min, highest] for the first serial whose prefix
// is not fully occupied. That serial is free: its own prefix would be full
// otherwise. A full prefix means the answer is highest+1.
func (a *Allocator) lowestFree(ctx context.Context, highest int64) (int64, bool, error) {
	if highest < a.policy.Min {
		return a.policy.Min, true, nil
	}

	full, err := a.prefixFull(ctx, highest)
	if err != nil {
		return 0, false, err
	}
	if full {
		if highest >= a.policy.Max {
			return 0, false, nil
		}
		return highest + 1, true, nil
	}

	lo, hi := a.policy.Min, highest
	for lo < hi {
		mid := lo + (hi-lo)/2
		full, err := a.prefixFull(ctx, mid)
		if err != nil {
			return 0, false, err
		}
		if full {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, true, nil
}

// prefixFull reports whether every serial in [Min, upto] is occupied
func (a *Allocator) prefixFull(ctx context.Context, upto int64) (bool, error) {
	n, err := a.sets.CountBetween(ctx, a.policy.Min, upto)
	if err != nil {
		return false, err
	}
	return n >= upto-a.policy.Min+1, nil
}

// StateOf returns which set holds serial
func (a *Allocator) StateOf(ctx context.Context, serial int64) (SerialState, error) {
	return a.sets.StateOf(ctx, serial)
}

// IsTaken reports whether serial is active, retired or reserved
func (a *Allocator) IsTaken(ctx context.Context, serial int64) (bool, error) {
	state, err := a.StateOf(ctx, serial)
	if err != nil {
		return false, err
	}
	return state != StateFree, nil
}
