package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/colonyops/cadence/internal/core/history"
	"github.com/colonyops/cadence/internal/core/period"
)

type resetKey struct {
	itemID string
	period period.Key
}

// History implements history.Store.
type History struct {
	mu      sync.RWMutex
	records []history.Record
	resets  map[resetKey]bool
}

var _ history.Store = (*History)(nil)

// NewHistory creates an empty history store.
func NewHistory() *History {
	return &History{resets: make(map[resetKey]bool)}
}

func (s *History) Append(_ context.Context, rec history.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Automatic {
		key := resetKey{itemID: rec.ItemID, period: rec.PeriodKey}
		if s.resets[key] {
			return history.ErrConflict
		}
		s.resets[key] = true
	}

	s.records = append(s.records, cloneRecord(rec))
	return nil
}

func (s *History) Query(_ context.Context, filter history.Filter) ([]history.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]history.Record, 0)
	for _, rec := range s.records {
		if matches(rec, filter) {
			out = append(out, cloneRecord(rec))
		}
	}

	slices.SortStableFunc(out, func(a, b history.Record) int {
		c := compareBy(a, b, filter.Sort.Field)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if filter.Sort.Desc {
			return -c
		}
		return c
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *History) LatestForPeriod(ctx context.Context, itemID string, key period.Key) (history.Record, error) {
	records, err := s.Query(ctx, history.Filter{
		ItemIDs:   []string{itemID},
		PeriodKey: key,
		Limit:     1,
		Sort:      history.DefaultSort,
	})
	if err != nil {
		return history.Record{}, err
	}
	if len(records) == 0 {
		return history.Record{}, history.ErrNotFound
	}
	return records[0], nil
}

func matches(rec history.Record, f history.Filter) bool {
	if len(f.ItemIDs) > 0 && !slices.Contains(f.ItemIDs, rec.ItemID) {
		return false
	}
	if f.ActorID != "" && (rec.ActorID == nil || *rec.ActorID != f.ActorID) {
		return false
	}
	if f.PeriodKey != "" && rec.PeriodKey != f.PeriodKey {
		return false
	}
	switch f.Origin {
	case history.OriginAutomatic:
		if !rec.Automatic {
			return false
		}
	case history.OriginManual:
		if rec.Automatic {
			return false
		}
	}
	if !f.Since.IsZero() && rec.ChangedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !rec.ChangedAt.Before(f.Until) {
		return false
	}
	return true
}

func compareBy(a, b history.Record, field history.SortField) int {
	switch field {
	case history.SortItemID:
		return cmp.Compare(a.ItemID, b.ItemID)
	case history.SortActorID:
		return cmp.Compare(deref(a.ActorID), deref(b.ActorID))
	default:
		return a.ChangedAt.Compare(b.ChangedAt)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneRecord(rec history.Record) history.Record {
	if rec.ActorID != nil {
		v := *rec.ActorID
		rec.ActorID = &v
	}
	if rec.OldStatus != nil {
		v := *rec.OldStatus
		rec.OldStatus = &v
	}
	return rec
}
