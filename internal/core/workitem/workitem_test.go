package workitem

import (
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cadence/internal/core/period"
	"github.com/colonyops/cadence/internal/core/recurrence"
)

func TestNew(t *testing.T) {
	item := New("VAT return", "u-1", period.Quarterly)
	assert.Equal(t, []int{1, 4, 7, 10}, item.ActiveMonths)
	assert.Equal(t, StatusTodo, item.Status)
	require.NoError(t, item.Validate())
}

func TestValidate(t *testing.T) {
	t.Run("invalid months", func(t *testing.T) {
		item := New("Payroll", "u-1", period.Quarterly)
		item.ActiveMonths = []int{1, 4, 7}

		err := item.Validate()
		require.ErrorIs(t, err, recurrence.ErrInvalidMonths)
	})

	t.Run("missing fields", func(t *testing.T) {
		item := New("", "", period.Annually)
		item.Status = "archived"

		var fieldErrs criterio.FieldErrors
		require.ErrorAs(t, item.Validate(), &fieldErrs)
		assert.Len(t, fieldErrs, 3)
	})
}

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses() {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("archived")
	assert.Error(t, err)
}

func TestItemHelpers(t *testing.T) {
	item := New("Annual accounts", "u-1", period.Annually)
	march := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, period.Key("2024"), item.CurrentPeriod(march))
	assert.False(t, item.IsDue(march, false))
	assert.True(t, item.IsDue(march, true))
	assert.True(t, item.OverlapsMonthRange(11, 2023, 2, 2024))
}

func TestPointer(t *testing.T) {
	var zero Pointer
	assert.False(t, zero.IsSet())
	assert.True(t, zero.Equal(Unset()))
	assert.Equal(t, "unset", zero.String())

	p := Recorded("2024-Q1")
	key, ok := p.Key()
	assert.True(t, ok)
	assert.Equal(t, period.Key("2024-Q1"), key)
	assert.Equal(t, "2024-Q1", p.String())
	assert.False(t, p.Equal(Unset()))
	assert.True(t, p.Equal(Recorded("2024-Q1")))
}
