// Package transition decides when entering a new period resets an item's
// status, and applies that reset exactly once per item and period.
package transition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/cadence/internal/core/history"
	"github.com/colonyops/cadence/internal/core/period"
	"github.com/colonyops/cadence/internal/core/workitem"
	"github.com/colonyops/cadence/pkg/clock"
)

// Action is what a transition check decided for an item.
type Action int

const (
	// ActionNone means the pointer already equals the current period.
	ActionNone Action = iota
	// ActionInitialize means the item was never evaluated; the pointer is
	// recorded without resetting anything.
	ActionInitialize
	// ActionReset means a new period began since the last evaluation.
	ActionReset
)

func (a Action) String() string {
	switch a {
	case ActionInitialize:
		return "initialize"
	case ActionReset:
		return "reset"
	default:
		return "none"
	}
}

// Decide applies the transition rule to the last recorded pointer and the
// current period key.
func Decide(last workitem.Pointer, current period.Key) Action {
	key, ok := last.Key()
	switch {
	case !ok:
		return ActionInitialize
	case key == current:
		return ActionNone
	default:
		return ActionReset
	}
}

// Reset is everything a Committer needs to apply one automatic reset.
type Reset struct {
	ItemID   string
	Previous workitem.Pointer
	Current  period.Key
	Record   history.Record
	At       time.Time
}

// Committer persists a reset: the history record, the item's status going
// back to todo and the pointer moving from Previous to Current. When another
// evaluator already applied the same reset it returns history.ErrConflict or
// workitem.ErrStalePointer.
type Committer interface {
	CommitReset(ctx context.Context, r Reset) error
}

// Outcome describes what Evaluate did for one item.
type Outcome struct {
	ItemID   string
	Action   Action
	Previous workitem.Pointer
	Current  period.Key
	// Raced is set when a concurrent evaluation applied the action first.
	Raced  bool
	Record *history.Record
}

// Detector runs the transition check for single items.
type Detector struct {
	pointers  workitem.PointerStore
	committer Committer
	clock     clock.Clock
	log       zerolog.Logger
}

// NewDetector creates a new Detector.
func NewDetector(pointers workitem.PointerStore, committer Committer, clk clock.Clock, log zerolog.Logger) *Detector {
	return &Detector{
		pointers:  pointers,
		committer: committer,
		clock:     clk,
		log:       log.With().Str("component", "transition").Logger(),
	}
}

// Evaluate checks one item against the current period. Repeated calls within
// the same period reset the item at most once, and the very first evaluation
// of an item only records its pointer.
func (d *Detector) Evaluate(ctx context.Context, item workitem.Item) (Outcome, error) {
	now := d.clock.Now()
	current := period.CurrentKey(item.Periodicity, now)

	last, err := d.pointers.Pointer(ctx, item.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("read period pointer: %w", err)
	}

	out := Outcome{
		ItemID:   item.ID,
		Action:   Decide(last, current),
		Previous: last,
		Current:  current,
	}

	switch out.Action {
	case ActionNone:
		return out, nil

	case ActionInitialize:
		err := d.pointers.SwapPointer(ctx, item.ID, last, current)
		if errors.Is(err, workitem.ErrStalePointer) {
			out.Raced = true
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("initialize period pointer: %w", err)
		}
		d.log.Debug().Str("item_id", item.ID).Str("period", string(current)).Msg("period pointer initialized")
		return out, nil

	default:
		rec := history.AutomaticReset(item.ID, item.Status, now, current)
		rec.ID = history.NewID()

		err := d.committer.CommitReset(ctx, Reset{
			ItemID:   item.ID,
			Previous: last,
			Current:  current,
			Record:   rec,
			At:       now,
		})
		if isRace(err) {
			d.log.Debug().Str("item_id", item.ID).Str("period", string(current)).Msg("reset already applied concurrently")
			out.Raced = true
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("commit reset: %w", err)
		}

		d.log.Info().
			Str("item_id", item.ID).
			Str("from", last.String()).
			Str("to", string(current)).
			Str("old_status", string(item.Status)).
			Msg("item status reset for new period")
		out.Record = &rec
		return out, nil
	}
}

func isRace(err error) bool {
	return errors.Is(err, history.ErrConflict) || errors.Is(err, workitem.ErrStalePointer)
}
