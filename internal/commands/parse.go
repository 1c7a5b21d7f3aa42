package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/colonyops/cadence/internal/core/actor"
	"github.com/colonyops/cadence/internal/core/recurrence"
)

// parseMonths parses a comma separated month list such as "1,4,7,10". An
// empty string yields nil so callers fall back to the periodicity defaults.
func parseMonths(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	months := make([]int, 0, len(parts))
	for _, p := range parts {
		m, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid month %q", p)
		}
		months = append(months, m)
	}
	return months, nil
}

// parseRange builds a month range from --from and --to. Both or neither must
// be set; ok is false when neither is.
func parseRange(from, to string) (r recurrence.MonthRange, ok bool, err error) {
	if from == "" && to == "" {
		return recurrence.MonthRange{}, false, nil
	}
	if from == "" || to == "" {
		return recurrence.MonthRange{}, false, fmt.Errorf("--from and --to must be used together")
	}

	if r.Start, err = recurrence.ParseMonth(from); err != nil {
		return r, false, err
	}
	if r.End, err = recurrence.ParseMonth(to); err != nil {
		return r, false, err
	}
	if err := r.Validate(); err != nil {
		return r, false, err
	}
	return r, true, nil
}

// resolveActor applies the --actor override to the configured actor.
func resolveActor(flags *Flags) actor.Actor {
	a := flags.Config.Actor
	if flags.ActorID != "" && flags.ActorID != a.ID {
		a = actor.Actor{ID: flags.ActorID}
	}
	return a
}
