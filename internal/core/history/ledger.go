package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/cadence/internal/core/period"
	"github.com/colonyops/cadence/internal/core/workitem"
)

// Ledger wraps a Store with record validation and period-scoped lookups.
type Ledger struct {
	store Store
	log   zerolog.Logger
}

// NewLedger creates a new Ledger.
func NewLedger(store Store, log zerolog.Logger) *Ledger {
	return &Ledger{
		store: store,
		log:   log.With().Str("component", "history").Logger(),
	}
}

// Prepare assigns an ID when empty and validates rec without storing it.
func (l *Ledger) Prepare(rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = NewID()
	}
	if err := rec.Validate(); err != nil {
		return Record{}, fmt.Errorf("invalid history record: %w", err)
	}
	return rec, nil
}

// Append validates and stores a record, assigning an ID when empty. A
// duplicate automatic reset returns ErrConflict.
func (l *Ledger) Append(ctx context.Context, rec Record) (Record, error) {
	rec, err := l.Prepare(rec)
	if err != nil {
		return Record{}, err
	}

	if err := l.store.Append(ctx, rec); err != nil {
		if errors.Is(err, ErrConflict) {
			l.log.Debug().
				Str("item_id", rec.ItemID).
				Str("period", string(rec.PeriodKey)).
				Msg("automatic reset already recorded")
			return Record{}, err
		}
		return Record{}, fmt.Errorf("append history record: %w", err)
	}

	return rec, nil
}

// QueryByItem returns every record of an item, newest first.
func (l *Ledger) QueryByItem(ctx context.Context, itemID string) ([]Record, error) {
	return l.Query(ctx, Filter{ItemIDs: []string{itemID}, Sort: DefaultSort})
}

// Query returns records matching the filter.
func (l *Ledger) Query(ctx context.Context, filter Filter) ([]Record, error) {
	if filter.Sort.Field == "" {
		filter.Sort = DefaultSort
	}
	records, err := l.store.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return records, nil
}

// Latest returns the newest record for the item in the period.
func (l *Ledger) Latest(ctx context.Context, itemID string, key period.Key) (Record, error) {
	return l.store.LatestForPeriod(ctx, itemID, key)
}

// LatestStatusForPeriod returns the status set by the newest record for the
// item in the period, or ErrNotFound.
func (l *Ledger) LatestStatusForPeriod(ctx context.Context, itemID string, key period.Key) (workitem.Status, error) {
	rec, err := l.store.LatestForPeriod(ctx, itemID, key)
	if err != nil {
		return "", err
	}
	return rec.NewStatus, nil
}

// CurrentStatus returns the item's status for the period containing now,
// falling back to the persisted status when the period has no record yet.
func (l *Ledger) CurrentStatus(ctx context.Context, item workitem.Item, now time.Time) (workitem.Status, error) {
	status, err := l.LatestStatusForPeriod(ctx, item.ID, item.CurrentPeriod(now))
	switch {
	case errors.Is(err, ErrNotFound):
		if item.Status == "" {
			return workitem.StatusTodo, nil
		}
		return item.Status, nil
	case err != nil:
		return "", fmt.Errorf("current status: %w", err)
	}
	return status, nil
}
