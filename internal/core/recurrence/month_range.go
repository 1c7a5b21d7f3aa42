package recurrence

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/cadence/internal/core/period"
)

// Month is a calendar month of a specific year.
type Month struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

func (m Month) String() string {
	return fmt.Sprintf("%02d/%d", m.Month, m.Year)
}

// ParseMonth parses "MM/YYYY" (a single-digit month is accepted).
func ParseMonth(s string) (Month, error) {
	monthStr, yearStr, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Month{}, fmt.Errorf("month %q: expected MM/YYYY", s)
	}

	month, err := strconv.Atoi(monthStr)
	if err != nil || !validMonth(month) {
		return Month{}, fmt.Errorf("month %q: month must be 1-12", s)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 1 {
		return Month{}, fmt.Errorf("month %q: invalid year", s)
	}

	return Month{Month: month, Year: year}, nil
}

// MonthRange is an inclusive span of calendar months.
type MonthRange struct {
	Start Month `json:"start"`
	End   Month `json:"end"`
}

// Validate checks that both ends are real months and that Start is not after End.
func (r MonthRange) Validate() error {
	var errs criterio.FieldErrorsBuilder
	if !validMonth(r.Start.Month) {
		errs = errs.Append("start.month", fmt.Errorf("month %d is outside 1-12", r.Start.Month))
	}
	if !validMonth(r.End.Month) {
		errs = errs.Append("end.month", fmt.Errorf("month %d is outside 1-12", r.End.Month))
	}
	if r.Start.Year*12+r.Start.Month > r.End.Year*12+r.End.Month {
		errs = errs.Append("end", fmt.Errorf("%s is before start %s", r.End, r.Start))
	}
	return errs.ToError()
}

// OverlapsRange is Overlaps over a MonthRange.
func OverlapsRange(p period.Periodicity, months []int, r MonthRange) bool {
	return Overlaps(p, months, r.Start.Month, r.Start.Year, r.End.Month, r.End.Year)
}
