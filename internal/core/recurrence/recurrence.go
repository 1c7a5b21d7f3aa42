// Package recurrence answers membership questions about an obligation's
// active months: how many it needs, which are the defaults, whether a set is
// valid, and whether the obligation is due at a date or within a month range.
package recurrence

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/cadence/internal/core/period"
)

// ErrInvalidMonths matches every ValidationError via errors.Is.
var ErrInvalidMonths = errors.New("invalid active months")

// ValidationError reports why an active-month set was rejected. Fields holds
// the criterio field errors, one per violation.
type ValidationError struct {
	Periodicity period.Periodicity
	Months      []int
	Fields      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid active months %v for %s: %v", e.Months, e.Periodicity, e.Fields)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrInvalidMonths, e.Fields}
}

// RequiredMonthCount returns how many active months p requires. Unknown
// periodicities require 0, which no month set can satisfy.
func RequiredMonthCount(p period.Periodicity) int {
	switch p {
	case period.Monthly:
		return 12
	case period.Quarterly:
		return 4
	case period.BiAnnually:
		return 2
	case period.Annually:
		return 1
	}
	return 0
}

// DefaultMonths returns the active months a new item of periodicity p starts
// with: the full year, the first month of each quarter, January and July, or
// January alone.
func DefaultMonths(p period.Periodicity) []int {
	switch p {
	case period.Monthly:
		return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	case period.Quarterly:
		return []int{1, 4, 7, 10}
	case period.BiAnnually:
		return []int{1, 7}
	case period.Annually:
		return []int{1}
	}
	return nil
}

// Validate reports whether months is a duplicate-free set of exactly
// RequiredMonthCount(p) months in [1,12]. For monthly items this means the
// whole year.
func Validate(p period.Periodicity, months []int) bool {
	return Check(p, months) == nil
}

// Check is Validate returning a *ValidationError describing each violation.
// The input is never modified.
func Check(p period.Periodicity, months []int) error {
	var errs criterio.FieldErrorsBuilder

	if !p.Valid() {
		errs = errs.Append("periodicity", fmt.Errorf("unknown periodicity %q", string(p)))
		return &ValidationError{Periodicity: p, Months: slices.Clone(months), Fields: errs.ToError()}
	}

	seen := make(map[int]bool, len(months))
	for i, m := range months {
		field := fmt.Sprintf("active_months[%d]", i)
		if m < 1 || m > 12 {
			errs = errs.Append(field, fmt.Errorf("month %d is outside 1-12", m))
			continue
		}
		if seen[m] {
			errs = errs.Append(field, fmt.Errorf("month %d is listed more than once", m))
			continue
		}
		seen[m] = true
	}

	if required := RequiredMonthCount(p); len(months) != required {
		errs = errs.Append("active_months", fmt.Errorf("%s requires exactly %d months, got %d", p, required, len(months)))
	}

	if err := errs.ToError(); err != nil {
		return &ValidationError{Periodicity: p, Months: slices.Clone(months), Fields: err}
	}
	return nil
}

// Normalize returns a sorted copy of months.
func Normalize(months []int) []int {
	out := slices.Clone(months)
	slices.Sort(out)
	return out
}

// IsDue reports whether an item is due at now. Monthly items always are;
// others are due when now's month is active. overrideAlwaysVisible short-cuts
// to true for viewers that oversee every item.
func IsDue(p period.Periodicity, months []int, now time.Time, overrideAlwaysVisible bool) bool {
	if overrideAlwaysVisible || p == period.Monthly {
		return true
	}
	return slices.Contains(months, int(now.Month()))
}

// Overlaps reports whether any active month falls within the inclusive range
// from startMonth/startYear to endMonth/endYear. Membership ignores the year:
// an item active in March matches March of any year the range spans. An empty
// or inverted range matches nothing, except for monthly items which always
// overlap.
func Overlaps(p period.Periodicity, months []int, startMonth, startYear, endMonth, endYear int) bool {
	if p == period.Monthly {
		return true
	}
	if !validMonth(startMonth) || !validMonth(endMonth) {
		return false
	}

	span := (endYear-startYear)*12 + (endMonth - startMonth) + 1
	if span <= 0 {
		return false
	}

	// Past twelve months every calendar month has been enumerated.
	span = min(span, 12)

	inRange := make(map[int]bool, span)
	m := startMonth
	for range span {
		inRange[m] = true
		m++
		if m > 12 {
			m = 1
		}
	}

	for _, active := range months {
		if inRange[active] {
			return true
		}
	}
	return false
}

func validMonth(m int) bool {
	return m >= 1 && m <= 12
}
