// Package workitem defines the recurring obligation domain model.
package workitem

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/cadence/internal/core/period"
	"github.com/colonyops/cadence/internal/core/recurrence"
)

// Status represents the progress of an item within its current period.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
	StatusWaiting    Status = "waiting"
	StatusBlocked    Status = "blocked"
)

// Statuses returns every valid status.
func Statuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusDone, StatusWaiting, StatusBlocked}
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return slices.Contains(Statuses(), s)
}

// ParseStatus converts a string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if !st.IsValid() {
		return "", fmt.Errorf("invalid status %q: must be one of todo, in-progress, done, waiting, blocked", s)
	}
	return st, nil
}

// Item is a recurring obligation assigned to one actor.
type Item struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	AssigneeID   string             `json:"assignee_id"`
	Periodicity  period.Periodicity `json:"periodicity"`
	ActiveMonths []int              `json:"active_months"`
	Status       Status             `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// New returns an item with the default active months for p and status todo.
func New(name, assigneeID string, p period.Periodicity) Item {
	return Item{
		Name:         name,
		AssigneeID:   assigneeID,
		Periodicity:  p,
		ActiveMonths: recurrence.DefaultMonths(p),
		Status:       StatusTodo,
	}
}

// Validate checks the item before it is persisted. An invalid active-month set
// surfaces as a *recurrence.ValidationError.
func (i Item) Validate() error {
	if err := recurrence.Check(i.Periodicity, i.ActiveMonths); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		criterio.Run("name", i.Name, required),
		criterio.Run("assignee_id", i.AssigneeID, required),
		criterio.Run("status", i.Status, validStatus),
	)
}

// CurrentPeriod returns the key of the item's period containing now.
func (i Item) CurrentPeriod(now time.Time) period.Key {
	return period.CurrentKey(i.Periodicity, now)
}

// IsDue reports whether the item is due at now.
func (i Item) IsDue(now time.Time, overrideAlwaysVisible bool) bool {
	return recurrence.IsDue(i.Periodicity, i.ActiveMonths, now, overrideAlwaysVisible)
}

// OverlapsMonthRange reports whether any of the item's active months falls in
// the inclusive range.
func (i Item) OverlapsMonthRange(startMonth, startYear, endMonth, endYear int) bool {
	return recurrence.Overlaps(i.Periodicity, i.ActiveMonths, startMonth, startYear, endMonth, endYear)
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("is required")
	}
	return nil
}

func validStatus(s Status) error {
	if !s.IsValid() {
		return fmt.Errorf("invalid status %q", s)
	}
	return nil
}
