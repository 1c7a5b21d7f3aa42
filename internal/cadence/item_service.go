package cadence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/cadence/internal/core/actor"
	"github.com/colonyops/cadence/internal/core/history"
	"github.com/colonyops/cadence/internal/core/period"
	"github.com/colonyops/cadence/internal/core/recurrence"
	"github.com/colonyops/cadence/internal/core/transition"
	"github.com/colonyops/cadence/internal/core/workitem"
	"github.com/colonyops/cadence/pkg/clock"
	"github.com/colonyops/cadence/pkg/randid"
)

// ErrNoActor is returned when an operation that must be attributed has no
// actor.
var ErrNoActor = errors.New("no actor for manual change")

// ItemService wraps workitem.Store with validation and history bookkeeping.
type ItemService struct {
	items    workitem.Store
	pointers workitem.PointerStore
	ledger   *history.Ledger
	changes  history.ChangeCommitter
	clock    clock.Clock
	log      zerolog.Logger
}

// NewItemService creates a new ItemService. changes commits manual status
// changes; nil falls back to a transition.SequentialCommitter over items and
// ledger.
func NewItemService(items workitem.Store, pointers workitem.PointerStore, ledger *history.Ledger, changes history.ChangeCommitter, clk clock.Clock, log zerolog.Logger) *ItemService {
	if changes == nil {
		changes = transition.NewSequentialCommitter(items, pointers, ledger)
	}
	return &ItemService{
		items:    items,
		pointers: pointers,
		ledger:   ledger,
		changes:  changes,
		clock:    clk,
		log:      log.With().Str("component", "item-service").Logger(),
	}
}

// Create validates and stores a new item. A missing ID is generated, nil
// active months take the periodicity's defaults and an empty status is todo.
func (s *ItemService) Create(ctx context.Context, item workitem.Item) (workitem.Item, error) {
	if item.ID == "" {
		item.ID = randid.Generate(8)
	}
	if item.ActiveMonths == nil {
		item.ActiveMonths = recurrence.DefaultMonths(item.Periodicity)
	}
	if item.Status == "" {
		item.Status = workitem.StatusTodo
	}
	item.ActiveMonths = recurrence.Normalize(item.ActiveMonths)

	now := s.clock.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	if err := item.Validate(); err != nil {
		return workitem.Item{}, fmt.Errorf("create item: %w", err)
	}
	if err := s.items.Create(ctx, item); err != nil {
		return workitem.Item{}, fmt.Errorf("create item %s: %w", item.ID, err)
	}

	s.log.Info().Str("item_id", item.ID).Str("periodicity", string(item.Periodicity)).Msg("item created")
	return item, nil
}

// Get returns a single item.
func (s *ItemService) Get(ctx context.Context, id string) (workitem.Item, error) {
	return s.items.Get(ctx, id)
}

// List returns items matching filter.
func (s *ItemService) List(ctx context.Context, filter workitem.ListFilter) ([]workitem.Item, error) {
	return s.items.List(ctx, filter)
}

// SetStatus changes an item's status on behalf of a and records the change
// against the item's current period. Setting the status it already has
// writes nothing and returns a nil record.
func (s *ItemService) SetStatus(ctx context.Context, a actor.Actor, id string, status workitem.Status) (*history.Record, error) {
	if a.ID == "" {
		return nil, ErrNoActor
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("set status: invalid status %q", status)
	}

	item, err := s.items.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	if item.Status == status {
		return nil, nil
	}

	now := s.clock.Now()
	rec, err := s.ledger.Prepare(history.ManualChange(id, a.ID, item.Status, status, now, item.CurrentPeriod(now)))
	if err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	if err := s.changes.CommitChange(ctx, rec); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}

	s.log.Info().Ctx(ctx).
		Str("item_id", id).
		Str("from", string(item.Status)).
		Str("to", string(status)).
		Msg("item status changed")
	return &rec, nil
}

// UpdateSchedule replaces an item's periodicity and active months. nil months
// take the periodicity's defaults. When the periodicity changes, an existing
// period pointer is moved to the new periodicity's current key so the change
// itself is not mistaken for a period transition.
func (s *ItemService) UpdateSchedule(ctx context.Context, id string, p period.Periodicity, months []int) (workitem.Item, error) {
	item, err := s.items.Get(ctx, id)
	if err != nil {
		return workitem.Item{}, fmt.Errorf("update schedule: %w", err)
	}

	if months == nil {
		months = recurrence.DefaultMonths(p)
	}
	changed := item.Periodicity != p
	item.Periodicity = p
	item.ActiveMonths = recurrence.Normalize(months)

	now := s.clock.Now()
	item.UpdatedAt = now

	if err := item.Validate(); err != nil {
		return workitem.Item{}, fmt.Errorf("update schedule: %w", err)
	}
	if err := s.items.Save(ctx, item); err != nil {
		return workitem.Item{}, fmt.Errorf("update schedule: %w", err)
	}

	if changed {
		if err := s.reanchor(ctx, item, now); err != nil {
			return workitem.Item{}, err
		}
	}
	return item, nil
}

func (s *ItemService) reanchor(ctx context.Context, item workitem.Item, now time.Time) error {
	prev, err := s.pointers.Pointer(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("read period pointer: %w", err)
	}
	if !prev.IsSet() {
		return nil
	}

	err = s.pointers.SwapPointer(ctx, item.ID, prev, item.CurrentPeriod(now))
	if errors.Is(err, workitem.ErrStalePointer) {
		// A concurrent evaluation moved it; the next one sees the new periodicity.
		s.log.Debug().Str("item_id", item.ID).Msg("period pointer moved during schedule change")
		return nil
	}
	if err != nil {
		return fmt.Errorf("re-anchor period pointer: %w", err)
	}
	return nil
}

// Visible returns a's items that are due now. Actors that see all periods get
// every assigned item.
func (s *ItemService) Visible(ctx context.Context, a actor.Actor) ([]workitem.Item, error) {
	items, err := s.items.ListForActor(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list visible items: %w", err)
	}

	now := s.clock.Now()
	visible := make([]workitem.Item, 0, len(items))
	for _, item := range items {
		if item.IsDue(now, a.SeesAllPeriods) {
			visible = append(visible, item)
		}
	}
	return visible, nil
}

// InRange keeps the items with an active month inside r.
func (s *ItemService) InRange(items []workitem.Item, r recurrence.MonthRange) []workitem.Item {
	out := make([]workitem.Item, 0, len(items))
	for _, item := range items {
		if recurrence.OverlapsRange(item.Periodicity, item.ActiveMonths, r) {
			out = append(out, item)
		}
	}
	return out
}

// CurrentStatus returns the item's status for the period it is in now.
func (s *ItemService) CurrentStatus(ctx context.Context, item workitem.Item) (workitem.Status, error) {
	return s.ledger.CurrentStatus(ctx, item, s.clock.Now())
}

// Now is the service clock's current time.
func (s *ItemService) Now() time.Time {
	return s.clock.Now()
}
