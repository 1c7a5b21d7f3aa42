package history

import (
	"context"
	"time"

	"github.com/colonyops/cadence/internal/core/period"
)

// SortField selects the column Query orders by.
type SortField string

const (
	SortChangedAt SortField = "changed_at"
	SortItemID    SortField = "item_id"
	SortActorID   SortField = "actor_id"
)

// Sort is an ordering over one field. The zero value sorts by changed_at
// ascending; DefaultSort is newest first.
type Sort struct {
	Field SortField
	Desc  bool
}

// DefaultSort orders records newest first.
var DefaultSort = Sort{Field: SortChangedAt, Desc: true}

// Origin restricts a query to automatic resets or manual changes.
type Origin int

const (
	OriginAny Origin = iota
	OriginAutomatic
	OriginManual
)

// Filter selects records. Zero-valued fields do not filter.
type Filter struct {
	ItemIDs   []string
	ActorID   string
	PeriodKey period.Key
	Origin    Origin
	Since     time.Time // inclusive
	Until     time.Time // exclusive
	Limit     int
	Sort      Sort
}

// ChangeCommitter persists a manual status change together with its record.
// Either both are written or neither is.
type ChangeCommitter interface {
	CommitChange(ctx context.Context, rec Record) error
}

// Store defines the interface for history persistence. There is deliberately
// no update or delete.
type Store interface {
	// Append inserts a record. Returns ErrConflict if the record is an
	// automatic reset and one already exists for the same item and period.
	Append(ctx context.Context, rec Record) error

	// Query returns records matching the filter. Records with equal sort
	// values are ordered by ID in the same direction.
	Query(ctx context.Context, filter Filter) ([]Record, error)

	// LatestForPeriod returns the newest record for the item in the period.
	// Returns ErrNotFound if there is none.
	LatestForPeriod(ctx context.Context, itemID string, key period.Key) (Record, error)
}
