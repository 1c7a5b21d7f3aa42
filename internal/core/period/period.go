// Package period maps a recurrence granularity and a calendar date onto the
// canonical key of the period that date falls in.
package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Periodicity is the recurrence granularity of an obligation.
type Periodicity string

const (
	Monthly    Periodicity = "monthly"
	Quarterly  Periodicity = "quarterly"
	BiAnnually Periodicity = "bi-annually"
	Annually   Periodicity = "annually"
)

var (
	// ErrUnknownPeriodicity is returned when parsing a periodicity outside the closed set.
	ErrUnknownPeriodicity = errors.New("unknown periodicity")
	// ErrInvalidKey is returned when a string does not follow any period key format.
	ErrInvalidKey = errors.New("invalid period key")
	// ErrMixedPeriodicity is returned when comparing keys of different periodicities.
	ErrMixedPeriodicity = errors.New("period keys have different periodicities")
)

// All returns every periodicity in ascending granularity.
func All() []Periodicity {
	return []Periodicity{Monthly, Quarterly, BiAnnually, Annually}
}

// Valid reports whether p is one of the known periodicities.
func (p Periodicity) Valid() bool {
	switch p {
	case Monthly, Quarterly, BiAnnually, Annually:
		return true
	}
	return false
}

func (p Periodicity) String() string { return string(p) }

// ParsePeriodicity converts a string into a Periodicity.
func ParsePeriodicity(s string) (Periodicity, error) {
	p := Periodicity(strings.TrimSpace(strings.ToLower(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriodicity, s)
	}
	return p, nil
}

// Key identifies one instance of a periodicity's cycle:
//
//	monthly      YYYY-MM
//	quarterly    YYYY-Q{1..4}
//	bi-annually  YYYY-H{1|2}
//	annually     YYYY
//
// Keys order correctly only against keys of the same periodicity.
type Key string

func (k Key) String() string { return string(k) }

// CurrentKey returns the key of the period containing now. The calendar fields
// are read in now's own location; callers wanting a specific zone convert first.
//
// CurrentKey panics if p is not a known periodicity.
func CurrentKey(p Periodicity, now time.Time) Key {
	year, month := now.Year(), int(now.Month())

	switch p {
	case Monthly:
		return Key(fmt.Sprintf("%04d-%02d", year, month))
	case Quarterly:
		return Key(fmt.Sprintf("%04d-Q%d", year, (month+2)/3))
	case BiAnnually:
		half := 1
		if month > 6 {
			half = 2
		}
		return Key(fmt.Sprintf("%04d-H%d", year, half))
	case Annually:
		return Key(fmt.Sprintf("%04d", year))
	}

	panic(fmt.Sprintf("period: unknown periodicity %q", string(p)))
}

// Parts is the decoded form of a Key. Index is the month (1-12), quarter (1-4)
// or half (1-2) depending on the periodicity, and 0 for annual keys.
type Parts struct {
	Periodicity Periodicity
	Year        int
	Index       int
}

// Parts decodes the key.
func (k Key) Parts() (Parts, error) {
	s := string(k)

	yearStr, rest, hasSuffix := strings.Cut(s, "-")
	year, err := parseYear(yearStr)
	if err != nil {
		return Parts{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}

	if !hasSuffix {
		return Parts{Periodicity: Annually, Year: year}, nil
	}

	switch {
	case len(rest) == 2 && rest[0] == 'Q':
		q, ok := digitIn(rest[1], 1, 4)
		if !ok {
			return Parts{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
		}
		return Parts{Periodicity: Quarterly, Year: year, Index: q}, nil
	case len(rest) == 2 && rest[0] == 'H':
		h, ok := digitIn(rest[1], 1, 2)
		if !ok {
			return Parts{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
		}
		return Parts{Periodicity: BiAnnually, Year: year, Index: h}, nil
	case len(rest) == 2:
		m, err := strconv.Atoi(rest)
		if err != nil || m < 1 || m > 12 || rest[0] == '+' || rest[0] == '-' {
			return Parts{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
		}
		return Parts{Periodicity: Monthly, Year: year, Index: m}, nil
	}

	return Parts{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
}

// Periodicity returns the periodicity encoded in the key.
func (k Key) Periodicity() (Periodicity, error) {
	parts, err := k.Parts()
	if err != nil {
		return "", err
	}
	return parts.Periodicity, nil
}

// ParseKey validates s against the key formats and returns it as a Key.
func ParseKey(s string) (Key, error) {
	k := Key(s)
	if _, err := k.Parts(); err != nil {
		return "", err
	}
	return k, nil
}

// Compare orders two keys of the same periodicity, returning -1, 0 or +1.
func Compare(a, b Key) (int, error) {
	pa, err := a.Parts()
	if err != nil {
		return 0, err
	}
	pb, err := b.Parts()
	if err != nil {
		return 0, err
	}
	if pa.Periodicity != pb.Periodicity {
		return 0, fmt.Errorf("%w: %s (%s) vs %s (%s)", ErrMixedPeriodicity, a, pa.Periodicity, b, pb.Periodicity)
	}

	switch {
	case pa.Year != pb.Year:
		return sign(pa.Year - pb.Year), nil
	default:
		return sign(pa.Index - pb.Index), nil
	}
}

func parseYear(s string) (int, error) {
	if s == "" {
		return 0, ErrInvalidKey
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrInvalidKey
		}
	}
	return strconv.Atoi(s)
}

func digitIn(b byte, lo, hi int) (int, bool) {
	if b < '0' || b > '9' {
		return 0, false
	}
	d := int(b - '0')
	return d, d >= lo && d <= hi
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
