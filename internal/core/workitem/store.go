package workitem

import (
	"context"
	"errors"
	"time"

	"github.com/colonyops/cadence/internal/core/period"
)

var (
	// ErrNotFound is returned when an item does not exist.
	ErrNotFound = errors.New("work item not found")
	// ErrDuplicate is returned by Create when the ID is already taken.
	ErrDuplicate = errors.New("work item already exists")
	// ErrStalePointer is returned by SwapPointer when the stored pointer no
	// longer matches the expected previous value.
	ErrStalePointer = errors.New("period pointer changed concurrently")
)

// ListFilter controls which items are returned by List.
type ListFilter struct {
	AssigneeID  string             // empty means all assignees
	Periodicity period.Periodicity // empty means all periodicities
}

// Store defines the interface for item persistence.
type Store interface {
	// List returns items matching the filter, ordered by created_at DESC.
	List(ctx context.Context, filter ListFilter) ([]Item, error)

	// ListForActor returns the items assigned to actorID.
	ListForActor(ctx context.Context, actorID string) ([]Item, error)

	// Get returns a single item by ID.
	// Returns ErrNotFound if the item does not exist.
	Get(ctx context.Context, id string) (Item, error)

	// Create inserts a new item.
	// Returns ErrDuplicate if an item with the same ID exists.
	Create(ctx context.Context, item Item) error

	// Save creates or replaces an item.
	Save(ctx context.Context, item Item) error

	// UpdateStatus changes only the status and updated_at of an item.
	// Returns ErrNotFound if the item does not exist.
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error
}

// PointerStore persists the per-item period pointer.
type PointerStore interface {
	// Pointer returns the item's pointer, Unset if none was ever recorded.
	Pointer(ctx context.Context, itemID string) (Pointer, error)

	// SwapPointer sets the pointer to next only if it currently equals prev.
	// Returns ErrStalePointer otherwise.
	SwapPointer(ctx context.Context, itemID string, prev Pointer, next period.Key) error
}
