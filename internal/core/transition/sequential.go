package transition

import (
	"context"
	"errors"
	"fmt"

	"github.com/colonyops/cadence/internal/core/history"
	"github.com/colonyops/cadence/internal/core/workitem"
)

// SequentialCommitter applies a reset as three separate writes for stores that
// cannot share a transaction. The history append goes first, so its
// (item, period) uniqueness decides which evaluator owns the reset.
type SequentialCommitter struct {
	items    workitem.Store
	pointers workitem.PointerStore
	ledger   *history.Ledger
}

var (
	_ Committer               = (*SequentialCommitter)(nil)
	_ history.ChangeCommitter = (*SequentialCommitter)(nil)
)

// NewSequentialCommitter creates a new SequentialCommitter.
func NewSequentialCommitter(items workitem.Store, pointers workitem.PointerStore, ledger *history.Ledger) *SequentialCommitter {
	return &SequentialCommitter{items: items, pointers: pointers, ledger: ledger}
}

// CommitReset appends the reset record, sets the item to todo and advances the
// pointer. If the record already exists, an earlier attempt got as far as the
// append: the status is still reset when no manual change followed it, and
// the pointer is advanced, but history.ErrConflict is returned.
func (c *SequentialCommitter) CommitReset(ctx context.Context, r Reset) error {
	_, err := c.ledger.Append(ctx, r.Record)
	conflict := errors.Is(err, history.ErrConflict)
	if err != nil && !conflict {
		return err
	}

	resetStatus := true
	if conflict {
		latest, err := c.ledger.Latest(ctx, r.ItemID, r.Current)
		if err != nil {
			return fmt.Errorf("read latest record after conflict: %w", err)
		}
		resetStatus = latest.Automatic
	}

	if resetStatus {
		if err := c.items.UpdateStatus(ctx, r.ItemID, workitem.StatusTodo, r.At); err != nil {
			return fmt.Errorf("reset item status: %w", err)
		}
	}

	if err := c.advance(ctx, r); err != nil {
		return err
	}

	if conflict {
		return history.ErrConflict
	}
	return nil
}

// advance moves the pointer to r.Current. A pointer some other evaluator
// already moved to r.Current counts as advanced.
func (c *SequentialCommitter) advance(ctx context.Context, r Reset) error {
	err := c.pointers.SwapPointer(ctx, r.ItemID, r.Previous, r.Current)
	if errors.Is(err, workitem.ErrStalePointer) {
		ptr, perr := c.pointers.Pointer(ctx, r.ItemID)
		if perr == nil && ptr.Equal(workitem.Recorded(r.Current)) {
			return nil
		}
	}
	if err != nil {
		return fmt.Errorf("advance period pointer: %w", err)
	}
	return nil
}

// CommitChange sets the item's status and then appends rec. When the append
// fails the previous status is restored.
func (c *SequentialCommitter) CommitChange(ctx context.Context, rec history.Record) error {
	if err := c.items.UpdateStatus(ctx, rec.ItemID, rec.NewStatus, rec.ChangedAt); err != nil {
		return fmt.Errorf("update item status: %w", err)
	}

	_, err := c.ledger.Append(ctx, rec)
	if err == nil {
		return nil
	}
	if rec.OldStatus != nil {
		if rerr := c.items.UpdateStatus(ctx, rec.ItemID, *rec.OldStatus, rec.ChangedAt); rerr != nil {
			return errors.Join(err, fmt.Errorf("restore item status: %w", rerr))
		}
	}
	return err
}
