package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestCurrentKey(t *testing.T) {
	tests := []struct {
		name string
		p    Periodicity
		now  time.Time
		want Key
	}{
		{"monthly mid march", Monthly, date(2024, time.March, 15), "2024-03"},
		{"quarterly mid march", Quarterly, date(2024, time.March, 15), "2024-Q1"},
		{"bi-annually mid march", BiAnnually, date(2024, time.March, 15), "2024-H1"},
		{"annually mid march", Annually, date(2024, time.March, 15), "2024"},
		{"monthly december", Monthly, date(2023, time.December, 31), "2023-12"},
		{"quarterly april", Quarterly, date(2024, time.April, 1), "2024-Q2"},
		{"quarterly september", Quarterly, date(2024, time.September, 30), "2024-Q3"},
		{"quarterly october", Quarterly, date(2024, time.October, 1), "2024-Q4"},
		{"bi-annually june", BiAnnually, date(2024, time.June, 30), "2024-H1"},
		{"bi-annually july", BiAnnually, date(2024, time.July, 1), "2024-H2"},
		{"monthly pads year", Monthly, date(999, time.March, 1), "0999-03"},
		{"quarterly pads year", Quarterly, date(45, time.November, 1), "0045-Q4"},
		{"bi-annually pads year", BiAnnually, date(7, time.February, 1), "0007-H1"},
		{"annually pads year", Annually, date(999, time.June, 1), "0999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentKey(tt.p, tt.now))
		})
	}
}

func TestCurrentKey_UsesLocationOfTime(t *testing.T) {
	// 2024-03-31 23:30 in UTC is already April in UTC+2.
	utc := time.Date(2024, time.March, 31, 23, 30, 0, 0, time.UTC)
	east := utc.In(time.FixedZone("UTC+2", 2*60*60))

	assert.Equal(t, Key("2024-Q1"), CurrentKey(Quarterly, utc))
	assert.Equal(t, Key("2024-Q2"), CurrentKey(Quarterly, east))
}

func TestCurrentKey_PanicsOnUnknownPeriodicity(t *testing.T) {
	assert.Panics(t, func() { CurrentKey(Periodicity("weekly"), date(2024, time.January, 1)) })
}

func TestParsePeriodicity(t *testing.T) {
	for _, p := range All() {
		got, err := ParsePeriodicity(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	got, err := ParsePeriodicity(" Quarterly ")
	require.NoError(t, err)
	assert.Equal(t, Quarterly, got)

	_, err = ParsePeriodicity("weekly")
	assert.ErrorIs(t, err, ErrUnknownPeriodicity)
}

func TestKeyParts(t *testing.T) {
	tests := []struct {
		key  Key
		want Parts
	}{
		{"2024-03", Parts{Periodicity: Monthly, Year: 2024, Index: 3}},
		{"2024-12", Parts{Periodicity: Monthly, Year: 2024, Index: 12}},
		{"2024-Q4", Parts{Periodicity: Quarterly, Year: 2024, Index: 4}},
		{"2024-H2", Parts{Periodicity: BiAnnually, Year: 2024, Index: 2}},
		{"2024", Parts{Periodicity: Annually, Year: 2024}},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			got, err := tt.key.Parts()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKey_Invalid(t *testing.T) {
	invalid := []string{"", "abc", "2024-", "2024-13", "2024-00", "2024-Q0", "2024-Q5", "2024-H3", "2024-3", "2024-W01", "-2024", "2024-+1", "20x4"}

	for _, s := range invalid {
		t.Run(s, func(t *testing.T) {
			_, err := ParseKey(s)
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b Key
		want int
	}{
		{"2024-01", "2024-02", -1},
		{"2024-12", "2024-02", 1},
		{"2023-12", "2024-01", -1},
		{"2024-Q2", "2024-Q2", 0},
		{"2025-H1", "2024-H2", 1},
		{"2024", "2025", -1},
	}

	for _, tt := range tests {
		got, err := Compare(tt.a, tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "Compare(%s, %s)", tt.a, tt.b)
	}
}

func TestCompare_MixedPeriodicity(t *testing.T) {
	_, err := Compare("2024-Q1", "2024-03")
	require.ErrorIs(t, err, ErrMixedPeriodicity)

	_, err = Compare("2024", "2024-H1")
	require.ErrorIs(t, err, ErrMixedPeriodicity)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "March 2024", Label("2024-03"))
	assert.Equal(t, "Q2 2024", Label("2024-Q2"))
	assert.Equal(t, "H1 2024", Label("2024-H1"))
	assert.Equal(t, "2024", Label("2024"))
	assert.Equal(t, "not-a-key", Label("not-a-key"))
}
