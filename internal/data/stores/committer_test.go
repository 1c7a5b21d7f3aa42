package stores

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cadence/internal/core/history"
	"github.com/colonyops/cadence/internal/core/period"
	"github.com/colonyops/cadence/internal/core/transition"
	"github.com/colonyops/cadence/internal/core/workitem"
	"github.com/colonyops/cadence/pkg/clock"
)

func TestTxCommitter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.April, 2, 8, 0, 0, 0, time.UTC)

	setup := func(t *testing.T) (*ItemStore, *HistoryStore, *TxCommitter) {
		t.Helper()
		database := openTestDB(t)
		items := NewItemStore(database, clock.Real{})

		item := testItem("item-1", period.Quarterly, now.Add(-30*24*time.Hour))
		item.Status = workitem.StatusDone
		require.NoError(t, items.Save(ctx, item))
		require.NoError(t, items.SwapPointer(ctx, "item-1", workitem.Unset(), "2024-Q1"))

		return items, NewHistoryStore(database), NewTxCommitter(database)
	}

	reset := func() transition.Reset {
		rec := history.AutomaticReset("item-1", workitem.StatusDone, now, "2024-Q2")
		rec.ID = history.NewID()
		return transition.Reset{
			ItemID:   "item-1",
			Previous: workitem.Recorded("2024-Q1"),
			Current:  "2024-Q2",
			Record:   rec,
			At:       now,
		}
	}

	t.Run("applies all writes", func(t *testing.T) {
		items, hist, committer := setup(t)

		require.NoError(t, committer.CommitReset(ctx, reset()))

		got, err := items.Get(ctx, "item-1")
		require.NoError(t, err)
		assert.Equal(t, workitem.StatusTodo, got.Status)

		ptr, err := items.Pointer(ctx, "item-1")
		require.NoError(t, err)
		assert.Equal(t, workitem.Recorded("2024-Q2"), ptr)

		records, err := hist.Query(ctx, history.Filter{ItemIDs: []string{"item-1"}})
		require.NoError(t, err)
		assert.Len(t, records, 1)

		var updatedAt int64
		require.NoError(t, items.db.Conn().QueryRowContext(ctx,
			"SELECT updated_at FROM period_pointers WHERE item_id = ?", "item-1").Scan(&updatedAt))
		assert.Equal(t, now.UnixNano(), updatedAt, "pointer is stamped with the reset time")
	})

	t.Run("stale pointer writes nothing", func(t *testing.T) {
		items, hist, committer := setup(t)
		require.NoError(t, committer.CommitReset(ctx, reset()))

		assert.ErrorIs(t, committer.CommitReset(ctx, reset()), workitem.ErrStalePointer)

		records, err := hist.Query(ctx, history.Filter{ItemIDs: []string{"item-1"}})
		require.NoError(t, err)
		assert.Len(t, records, 1)

		ptr, err := items.Pointer(ctx, "item-1")
		require.NoError(t, err)
		assert.Equal(t, workitem.Recorded("2024-Q2"), ptr)
	})

	t.Run("existing record rolls back pointer", func(t *testing.T) {
		items, hist, committer := setup(t)

		r := reset()
		existing := r.Record
		existing.ID = history.NewID()
		require.NoError(t, hist.Append(ctx, existing))

		assert.ErrorIs(t, committer.CommitReset(ctx, r), history.ErrConflict)

		ptr, err := items.Pointer(ctx, "item-1")
		require.NoError(t, err)
		assert.Equal(t, workitem.Recorded("2024-Q1"), ptr, "pointer swap must roll back with the failed insert")

		got, err := items.Get(ctx, "item-1")
		require.NoError(t, err)
		assert.Equal(t, workitem.StatusDone, got.Status)
	})
}

func TestTxCommitter_CommitChange(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.May, 20, 9, 30, 0, 0, time.UTC)

	database := openTestDB(t)
	items := NewItemStore(database, clock.Real{})
	hist := NewHistoryStore(database)
	committer := NewTxCommitter(database)
	require.NoError(t, items.Create(ctx, testItem("item-1", period.Monthly, now.Add(-time.Hour))))

	t.Run("writes status and record together", func(t *testing.T) {
		rec := history.ManualChange("item-1", "u-1", workitem.StatusTodo, workitem.StatusDone, now, "2024-05")
		rec.ID = history.NewID()
		require.NoError(t, committer.CommitChange(ctx, rec))

		got, err := items.Get(ctx, "item-1")
		require.NoError(t, err)
		assert.Equal(t, workitem.StatusDone, got.Status)

		records, err := hist.Query(ctx, history.Filter{ItemIDs: []string{"item-1"}})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, rec.ID, records[0].ID)
	})

	t.Run("failed record leaves status untouched", func(t *testing.T) {
		first := history.ManualChange("item-1", "u-1", workitem.StatusDone, workitem.StatusBlocked, now.Add(time.Minute), "2024-05")
		first.ID = history.NewID()
		require.NoError(t, hist.Append(ctx, first))

		clash := history.ManualChange("item-1", "u-2", workitem.StatusDone, workitem.StatusWaiting, now.Add(2*time.Minute), "2024-05")
		clash.ID = first.ID
		require.Error(t, committer.CommitChange(ctx, clash))

		got, err := items.Get(ctx, "item-1")
		require.NoError(t, err)
		assert.Equal(t, workitem.StatusDone, got.Status)
	})

	t.Run("missing item writes no record", func(t *testing.T) {
		rec := history.ManualChange("ghost", "u-1", workitem.StatusTodo, workitem.StatusDone, now, "2024-05")
		rec.ID = history.NewID()
		require.ErrorIs(t, committer.CommitChange(ctx, rec), workitem.ErrNotFound)

		records, err := hist.Query(ctx, history.Filter{ItemIDs: []string{"ghost"}})
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestTxCommitter_ConcurrentDetectors(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.July, 1, 0, 0, 1, 0, time.UTC)

	database := openTestDB(t)
	items := NewItemStore(database, clock.Real{})
	hist := NewHistoryStore(database)

	item := testItem("item-1", period.BiAnnually, now.Add(-200*24*time.Hour))
	item.Status = workitem.StatusDone
	require.NoError(t, items.Save(ctx, item))
	require.NoError(t, items.SwapPointer(ctx, "item-1", workitem.Unset(), "2024-H1"))

	detector := transition.NewDetector(items, NewTxCommitter(database), clock.NewManual(now), zerolog.Nop())

	const callers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		resets int
		errs   []error
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := detector.Evaluate(ctx, item)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if out.Action == transition.ActionReset && !out.Raced {
				resets++
			}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, 1, resets)

	records, err := hist.Query(ctx, history.Filter{ItemIDs: []string{"item-1"}, PeriodKey: "2024-H2"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
