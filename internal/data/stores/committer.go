package stores

import (
	"context"
	"database/sql"

	"github.com/colonyops/cadence/internal/core/history"
	"github.com/colonyops/cadence/internal/core/transition"
	"github.com/colonyops/cadence/internal/core/workitem"
	"github.com/colonyops/cadence/internal/data/db"
)

// TxCommitter applies resets and manual status changes in a single
// transaction. For a reset the pointer swap, history insert and status update
// either all happen or none do.
type TxCommitter struct {
	db *db.DB
}

var (
	_ transition.Committer    = (*TxCommitter)(nil)
	_ history.ChangeCommitter = (*TxCommitter)(nil)
)

// NewTxCommitter creates a new transactional committer.
func NewTxCommitter(db *db.DB) *TxCommitter {
	return &TxCommitter{db: db}
}

// CommitReset returns workitem.ErrStalePointer when another evaluator moved
// the pointer first and history.ErrConflict when the reset row already
// exists. Nothing is written in either case.
func (c *TxCommitter) CommitReset(ctx context.Context, r transition.Reset) error {
	return c.db.WithTx(ctx, func(tx *sql.Tx) error {
		// The pointer swap takes the write lock first, so a losing evaluator
		// stops before touching history.
		if err := swapPointer(ctx, tx, c.db.Rebind, r.ItemID, r.Previous, r.Current, r.At); err != nil {
			return err
		}
		if err := appendRecord(ctx, tx, c.db.Rebind, r.Record); err != nil {
			return err
		}
		return updateStatus(ctx, tx, c.db.Rebind, r.ItemID, workitem.StatusTodo, r.At)
	})
}

// CommitChange inserts rec and sets the item's status to rec.NewStatus.
func (c *TxCommitter) CommitChange(ctx context.Context, rec history.Record) error {
	return c.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := appendRecord(ctx, tx, c.db.Rebind, rec); err != nil {
			return err
		}
		return updateStatus(ctx, tx, c.db.Rebind, rec.ItemID, rec.NewStatus, rec.ChangedAt)
	})
}
