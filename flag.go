package entityassist

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// =====================================
// Lifecycle Flag
// =====================================

// ActiveFlag is the lifecycle state of a row. Flags are totally ordered by
// declaration; range queries select every flag at or above a threshold.
type ActiveFlag int8

const (
	FlagUnknown ActiveFlag = iota
	FlagDeleted
	FlagHidden
	FlagArchived
	FlagActive
	FlagCurrent
	FlagHighlighted
	FlagPermanent

	flagCount = int(FlagPermanent) + 1
)

var flagNames = [flagCount]string{
	"Unknown",
	"Deleted",
	"Hidden",
	"Archived",
	"Active",
	"Current",
	"Highlighted",
	"Permanent",
}

// AllFlags lists every flag in declaration order.
func AllFlags() []ActiveFlag {
	out := make([]ActiveFlag, flagCount)
	for i := range out {
		out[i] = ActiveFlag(i)
	}
	return out
}

func (f ActiveFlag) String() string {
	if f < 0 || int(f) >= flagCount {
		return fmt.Sprintf("ActiveFlag(%d)", int8(f))
	}
	return flagNames[f]
}

// ParseActiveFlag maps a symbolic name back to its flag, ignoring case.
func ParseActiveFlag(name string) (ActiveFlag, error) {
	for i, n := range flagNames {
		if strings.EqualFold(n, name) {
			return ActiveFlag(i), nil
		}
	}
	return FlagUnknown, NewError(ErrorTypeInvalidArgument, fmt.Sprintf("unknown active flag %q", name))
}

// Value stores the flag by name.
func (f ActiveFlag) Value() (driver.Value, error) {
	return f.String(), nil
}

// Scan accepts the stored name or, for legacy columns, the ordinal.
func (f *ActiveFlag) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*f = FlagUnknown
		return nil
	case string:
		parsed, err := ParseActiveFlag(v)
		if err != nil {
			return err
		}
		*f = parsed
		return nil
	case []byte:
		return f.Scan(string(v))
	case int64:
		if v < 0 || v >= int64(flagCount) {
			return NewError(ErrorTypeInvalidArgument, fmt.Sprintf("active flag ordinal %d out of range", v))
		}
		*f = ActiveFlag(v)
		return nil
	default:
		return NewError(ErrorTypeInvalidArgument, fmt.Sprintf("cannot scan %T into ActiveFlag", src))
	}
}

// FlagSet is an immutable set of flags.
type FlagSet uint16

// RangeAndUp returns every flag whose declaration index is at or above threshold.
func RangeAndUp(threshold ActiveFlag) FlagSet {
	var s FlagSet
	for i := int(threshold); i < flagCount; i++ {
		s |= 1 << uint(i)
	}
	return s
}

// RangeOnly returns exactly the listed flags.
func RangeOnly(flags ...ActiveFlag) FlagSet {
	var s FlagSet
	for _, f := range flags {
		s |= 1 << uint(f)
	}
	return s
}

// Precomputed ranges used by the builder filters.
var (
	PermanentRange   = RangeOnly(FlagPermanent)
	HighlightedAndUp = RangeAndUp(FlagHighlighted)
	ActiveRange      = RangeOnly(FlagActive, FlagCurrent)
	ActiveAndUp      = RangeAndUp(FlagActive)
	VisibleRange     = RangeOnly(FlagArchived)
	VisibleAndUp     = RangeAndUp(FlagArchived)
	RemovedRange     = RangeOnly(FlagDeleted, FlagHidden)
	RemovedAndUp     = RangeAndUp(FlagDeleted)
)

// Contains reports whether f is in the set.
func (s FlagSet) Contains(f ActiveFlag) bool {
	if f < 0 || int(f) >= flagCount {
		return false
	}
	return s&(1<<uint(f)) != 0
}

// Flags lists the members in declaration order.
func (s FlagSet) Flags() []ActiveFlag {
	var out []ActiveFlag
	for i := 0; i < flagCount; i++ {
		if s.Contains(ActiveFlag(i)) {
			out = append(out, ActiveFlag(i))
		}
	}
	return out
}

// Values lists the stored names of the members, for IN filters.
func (s FlagSet) Values() []any {
	flags := s.Flags()
	out := make([]any, len(flags))
	for i, f := range flags {
		out[i] = f.String()
	}
	return out
}

func (s FlagSet) String() string {
	flags := s.Flags()
	names := make([]string, len(flags))
	for i, f := range flags {
		names[i] = f.String()
	}
	return "{" + strings.Join(names, ", ") + "}"
}
