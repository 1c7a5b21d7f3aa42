// Package history is the append-only audit trail of item status changes.
// Records are never updated or deleted.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hay-kot/criterio"

	"github.com/colonyops/cadence/internal/core/period"
	"github.com/colonyops/cadence/internal/core/workitem"
)

var (
	// ErrNotFound is returned when no record matches a lookup.
	ErrNotFound = errors.New("history record not found")
	// ErrConflict is returned when an automatic reset was already recorded
	// for the same item and period.
	ErrConflict = errors.New("automatic reset already recorded for period")
)

// Record is one status transition. ActorID is nil for automatic resets and
// OldStatus is nil when the item had no prior status.
type Record struct {
	ID        string           `json:"id"`
	ItemID    string           `json:"item_id"`
	ActorID   *string          `json:"actor_id"`
	OldStatus *workitem.Status `json:"old_status"`
	NewStatus workitem.Status  `json:"new_status"`
	ChangedAt time.Time        `json:"changed_at"`
	PeriodKey period.Key       `json:"period_key"`
	Automatic bool             `json:"automatic"`
}

// NewID returns a time-ordered record identifier.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// AutomaticReset builds the record written when a new period resets an item.
func AutomaticReset(itemID string, old workitem.Status, at time.Time, key period.Key) Record {
	return Record{
		ItemID:    itemID,
		OldStatus: statusPtr(old),
		NewStatus: workitem.StatusTodo,
		ChangedAt: at,
		PeriodKey: key,
		Automatic: true,
	}
}

// ManualChange builds the record written when an actor changes an item's status.
func ManualChange(itemID, actorID string, old, next workitem.Status, at time.Time, key period.Key) Record {
	return Record{
		ItemID:    itemID,
		ActorID:   &actorID,
		OldStatus: statusPtr(old),
		NewStatus: next,
		ChangedAt: at,
		PeriodKey: key,
	}
}

// Validate checks that a record is well formed before it is appended.
func (r Record) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if r.ItemID == "" {
		errs = errs.Append("item_id", fmt.Errorf("is required"))
	}
	if !r.NewStatus.IsValid() {
		errs = errs.Append("new_status", fmt.Errorf("invalid status %q", r.NewStatus))
	}
	if r.OldStatus != nil && !r.OldStatus.IsValid() {
		errs = errs.Append("old_status", fmt.Errorf("invalid status %q", *r.OldStatus))
	}
	if r.ChangedAt.IsZero() {
		errs = errs.Append("changed_at", fmt.Errorf("is required"))
	}
	if _, err := r.PeriodKey.Parts(); err != nil {
		errs = errs.Append("period_key", err)
	}
	if r.Automatic {
		if r.ActorID != nil {
			errs = errs.Append("actor_id", fmt.Errorf("must be empty for automatic resets"))
		}
		if r.NewStatus != workitem.StatusTodo {
			errs = errs.Append("new_status", fmt.Errorf("automatic resets must set %q", workitem.StatusTodo))
		}
	} else if r.ActorID == nil || *r.ActorID == "" {
		errs = errs.Append("actor_id", fmt.Errorf("is required for manual changes"))
	}

	return errs.ToError()
}

func statusPtr(s workitem.Status) *workitem.Status {
	if s == "" {
		return nil
	}
	return &s
}
