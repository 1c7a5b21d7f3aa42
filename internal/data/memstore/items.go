// Package memstore provides in-memory implementations of the item, pointer and
// history stores. They are safe for concurrent use.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/colonyops/cadence/internal/core/period"
	"github.com/colonyops/cadence/internal/core/workitem"
)

// Items implements workitem.Store and workitem.PointerStore.
type Items struct {
	mu       sync.Mutex
	items    map[string]workitem.Item
	pointers map[string]period.Key
}

var (
	_ workitem.Store        = (*Items)(nil)
	_ workitem.PointerStore = (*Items)(nil)
)

// NewItems creates an empty item store.
func NewItems() *Items {
	return &Items{
		items:    make(map[string]workitem.Item),
		pointers: make(map[string]period.Key),
	}
}

func (s *Items) List(_ context.Context, filter workitem.ListFilter) ([]workitem.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]workitem.Item, 0, len(s.items))
	for _, item := range s.items {
		if filter.AssigneeID != "" && item.AssigneeID != filter.AssigneeID {
			continue
		}
		if filter.Periodicity != "" && item.Periodicity != filter.Periodicity {
			continue
		}
		out = append(out, cloneItem(item))
	}

	slices.SortFunc(out, func(a, b workitem.Item) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Items) ListForActor(ctx context.Context, actorID string) ([]workitem.Item, error) {
	return s.List(ctx, workitem.ListFilter{AssigneeID: actorID})
}

func (s *Items) Get(_ context.Context, id string) (workitem.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return workitem.Item{}, workitem.ErrNotFound
	}
	return cloneItem(item), nil
}

func (s *Items) Create(_ context.Context, item workitem.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; ok {
		return workitem.ErrDuplicate
	}
	s.items[item.ID] = cloneItem(item)
	return nil
}

func (s *Items) Save(_ context.Context, item workitem.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[item.ID] = cloneItem(item)
	return nil
}

func (s *Items) UpdateStatus(_ context.Context, id string, status workitem.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return workitem.ErrNotFound
	}
	item.Status = status
	item.UpdatedAt = at
	s.items[id] = item
	return nil
}

func (s *Items) Pointer(_ context.Context, itemID string) (workitem.Pointer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.pointers[itemID]
	if !ok {
		return workitem.Unset(), nil
	}
	return workitem.Recorded(key), nil
}

func (s *Items) SwapPointer(_ context.Context, itemID string, prev workitem.Pointer, next period.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := workitem.Unset()
	if key, ok := s.pointers[itemID]; ok {
		current = workitem.Recorded(key)
	}
	if !current.Equal(prev) {
		return workitem.ErrStalePointer
	}
	s.pointers[itemID] = next
	return nil
}

func cloneItem(item workitem.Item) workitem.Item {
	item.ActiveMonths = slices.Clone(item.ActiveMonths)
	return item
}
