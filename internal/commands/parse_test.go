package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cadence/internal/core/actor"
	"github.com/colonyops/cadence/internal/core/config"
	"github.com/colonyops/cadence/internal/core/recurrence"
)

func TestParseMonths(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"", nil, false},
		{"  ", nil, false},
		{"1,4,7,10", []int{1, 4, 7, 10}, false},
		{" 3, 9 ", []int{3, 9}, false},
		{"1,,4", nil, true},
		{"jan", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseMonths(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRange(t *testing.T) {
	_, ok, err := parseRange("", "")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = parseRange("01/2024", "")
	require.Error(t, err)

	r, ok, err := parseRange("11/2023", "02/2024")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, recurrence.Month{Month: 11, Year: 2023}, r.Start)
	assert.Equal(t, recurrence.Month{Month: 2, Year: 2024}, r.End)

	_, _, err = parseRange("03/2024", "02/2024")
	require.Error(t, err)
}

func TestResolveActor(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Actor = actor.Actor{ID: "lead", SeesAllPeriods: true}
	flags := &Flags{Config: &cfg}

	assert.Equal(t, cfg.Actor, resolveActor(flags))

	flags.ActorID = "lead"
	assert.Equal(t, cfg.Actor, resolveActor(flags))

	flags.ActorID = "u-2"
	assert.Equal(t, actor.Actor{ID: "u-2"}, resolveActor(flags), "override does not inherit oversight")
}
