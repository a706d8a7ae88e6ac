package allocation

import (
	"context"

	"github.com/amirphl/ams-registry/repository"
)

// SerialState names the set a serial belongs to
type SerialState string

const (
	StateFree     SerialState = "free"
	StateActive   SerialState = "active"
	StateRetired  SerialState = "retired"
	StateReserved SerialState = "reserved"
)

// StateSets reads the three disjoint sets of occupied serials
type StateSets struct {
	Active   repository.SerialSet
	Retired  repository.SerialSet
	Reserved repository.SerialSet
}

type namedSet struct {
	state SerialState
	set   repository.SerialSet
}

func (s StateSets) all() []namedSet {
	return []namedSet{
		{StateActive, s.Active},
		{StateRetired, s.Retired},
		{StateReserved, s.Reserved},
	}
}

// Highest returns the largest serial in any set; ok is false when all are empty
func (s StateSets) Highest(ctx context.Context) (int64, bool, error) {
	var (
		highest int64
		found   bool
	)
	for _, ns := range s.all() {
		max, ok, err := ns.set.MaxSerial(ctx)
		if err != nil {
			return 0, false, err
		}
		if ok && (!found || max > highest) {
			highest, found = max, true
		}
	}
	return highest, found, nil
}

// CountBetween returns how many occupied serials lie in [from, to]. The sets
// are disjoint, so the per-set counts add up.
func (s StateSets) CountBetween(ctx context.Context, from, to int64) (int64, error) {
	var total int64
	for _, ns := range s.all() {
		n, err := ns.set.CountSerials(ctx, from, to)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// StateOf returns which set holds serial, or StateFree
func (s StateSets) StateOf(ctx context.Context, serial int64) (SerialState, error) {
	for _, ns := range s.all() {
		ok, err := ns.set.HasSerial(ctx, serial)
		if err != nil {
			return "", err
		}
		if ok {
			return ns.state, nil
		}
	}
	return StateFree, nil
}
