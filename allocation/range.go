package allocation

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MinSerial is the lowest serial ever issued
	MinSerial int64 = 5000
	// MaxSerial is the highest serial ever issued
	MaxSerial int64 = 99999
	// SerialDigits is the display width of a serial
	SerialDigits = 5
	// ReservationTTL is how long an unredeemed hold stays valid
	ReservationTTL = time.Hour
)

// FillPolicy selects how the next free serial is chosen
type FillPolicy string

const (
	// FillLowestFree issues the lowest free serial, so holes left by
	// expired holds are filled before the range grows
	FillLowestFree FillPolicy = "lowest_free"
	// FillHighWater issues max(used)+1 and only scans for holes once the
	// top of the range is reached
	FillHighWater FillPolicy = "high_water"
)

// ParseFillPolicy converts a configuration value into a FillPolicy
func ParseFillPolicy(s string) (FillPolicy, error) {
	switch FillPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FillLowestFree:
		return FillLowestFree, nil
	case FillHighWater:
		return FillHighWater, nil
	default:
		return "", fmt.Errorf("unknown fill policy %q", s)
	}
}

// RangePolicy describes the issuable range
type RangePolicy struct {
	Min  int64
	Max  int64
	Fill FillPolicy
}

// DefaultRangePolicy returns the production range [5000, 99999]
func DefaultRangePolicy() RangePolicy {
	return RangePolicy{Min: MinSerial, Max: MaxSerial, Fill: FillLowestFree}
}

// Validate checks that the range is non-empty and fits the display width
func (p RangePolicy) Validate() error {
	if p.Min <= 0 || p.Max < p.Min {
		return fmt.Errorf("invalid serial range [%d, %d]", p.Min, p.Max)
	}
	if len(fmt.Sprint(p.Max)) > SerialDigits {
		return fmt.Errorf("serial range max %d exceeds %d digits", p.Max, SerialDigits)
	}
	if _, err := ParseFillPolicy(string(p.Fill)); err != nil {
		return err
	}
	return nil
}

// Contains reports whether serial is inside the range
func (p RangePolicy) Contains(serial int64) bool {
	return serial >= p.Min && serial <= p.Max
}

// Size returns the number of issuable serials
func (p RangePolicy) Size() int64 {
	return p.Max - p.Min + 1
}

// Format renders serial zero-padded to the display width
func (p RangePolicy) Format(serial int64) string {
	return fmt.Sprintf("%0*d", SerialDigits, serial)
}
