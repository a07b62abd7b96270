package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MonthKey identifies a ledger partition. Month is the zero-based month
// index (January is 0), matching the "YYYY-M" keys used by the persistence
// layer. Two keys are equal iff year and month index match, so the struct
// is safe to use directly as a map key.
type MonthKey struct {
	Year  int
	Month int
}

// MonthKeyOf derives the partition a timestamp belongs to.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: int(t.Month()) - 1}
}

// String renders the storage key, e.g. "2025-0" for January 2025.
func (k MonthKey) String() string {
	return strconv.Itoa(k.Year) + "-" + strconv.Itoa(k.Month)
}

// ParseMonthKey reverses String. It rejects month indexes outside 0..11.
func ParseMonthKey(s string) (MonthKey, error) {
	year, month, ok := strings.Cut(s, "-")
	if !ok {
		return MonthKey{}, fmt.Errorf("malformed month key %q", s)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return MonthKey{}, fmt.Errorf("malformed month key %q: %w", s, err)
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return MonthKey{}, fmt.Errorf("malformed month key %q: %w", s, err)
	}
	k := MonthKey{Year: y, Month: m}
	if err := k.Validate(); err != nil {
		return MonthKey{}, err
	}
	return k, nil
}

func (k MonthKey) Validate() error {
	if k.Month < 0 || k.Month > 11 {
		return errors.New("month index out of range")
	}
	if k.Year < 1 {
		return errors.New("year out of range")
	}
	return nil
}

// Date returns midnight UTC on the given day of the month, the default
// OccurredAt for entries created while this month is selected.
func (k MonthKey) Date(day int) time.Time {
	return time.Date(k.Year, time.Month(k.Month+1), day, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether a timestamp falls inside this partition.
func (k MonthKey) Contains(t time.Time) bool {
	return MonthKeyOf(t) == k
}
