package stores

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cadence/internal/core/history"
	"github.com/colonyops/cadence/internal/core/workitem"
	"github.com/colonyops/cadence/internal/data/db"
)

func seedHistory(t *testing.T, store *HistoryStore, base time.Time) {
	t.Helper()
	ctx := context.Background()

	records := []history.Record{
		history.AutomaticReset("item-1", workitem.StatusDone, base, "2024-Q1"),
		history.ManualChange("item-1", "u-1", workitem.StatusTodo, workitem.StatusInProgress, base.Add(time.Hour), "2024-Q1"),
		history.ManualChange("item-2", "u-2", workitem.StatusTodo, workitem.StatusDone, base.Add(2*time.Hour), "2024-03"),
		history.AutomaticReset("item-1", workitem.StatusInProgress, base.Add(90*24*time.Hour), "2024-Q2"),
	}
	for i, rec := range records {
		rec.ID = []string{"h-1", "h-2", "h-3", "h-4"}[i]
		require.NoError(t, store.Append(ctx, rec))
	}
}

func TestHistoryStore_Append(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore(openTestDB(t))
	at := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)

	rec := history.AutomaticReset("item-1", workitem.StatusDone, at, "2024-Q2")
	rec.ID = history.NewID()
	require.NoError(t, store.Append(ctx, rec))

	dup := history.AutomaticReset("item-1", workitem.StatusDone, at, "2024-Q2")
	dup.ID = history.NewID()
	assert.ErrorIs(t, store.Append(ctx, dup), history.ErrConflict)

	got, err := store.LatestForPeriod(ctx, "item-1", "2024-Q2")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Nil(t, got.ActorID)
	require.NotNil(t, got.OldStatus)
	assert.Equal(t, workitem.StatusDone, *got.OldStatus)
	assert.True(t, got.Automatic)
	assert.True(t, at.Equal(got.ChangedAt))

	_, err = store.LatestForPeriod(ctx, "item-1", "2024-Q3")
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestHistoryStore_Query(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	store := NewHistoryStore(openTestDB(t))
	seedHistory(t, store, base)

	ids := func(records []history.Record) []string {
		out := make([]string, len(records))
		for i, r := range records {
			out[i] = r.ID
		}
		return out
	}

	tests := []struct {
		name   string
		filter history.Filter
		want   []string
	}{
		{"all ascending", history.Filter{}, []string{"h-1", "h-2", "h-3", "h-4"}},
		{"default sort", history.Filter{Sort: history.DefaultSort}, []string{"h-4", "h-3", "h-2", "h-1"}},
		{"by item", history.Filter{ItemIDs: []string{"item-2"}}, []string{"h-3"}},
		{"by several items", history.Filter{ItemIDs: []string{"item-1", "item-2"}, Limit: 2}, []string{"h-1", "h-2"}},
		{"by actor", history.Filter{ActorID: "u-1"}, []string{"h-2"}},
		{"by period", history.Filter{PeriodKey: "2024-Q1"}, []string{"h-1", "h-2"}},
		{"automatic only", history.Filter{Origin: history.OriginAutomatic}, []string{"h-1", "h-4"}},
		{"manual only", history.Filter{Origin: history.OriginManual}, []string{"h-2", "h-3"}},
		{"since inclusive", history.Filter{Since: base.Add(time.Hour)}, []string{"h-2", "h-3", "h-4"}},
		{"until exclusive", history.Filter{Until: base.Add(time.Hour)}, []string{"h-1"}},
		{"sort by actor", history.Filter{Sort: history.Sort{Field: history.SortActorID}}, []string{"h-1", "h-4", "h-2", "h-3"}},
		{"sort by item desc", history.Filter{Sort: history.Sort{Field: history.SortItemID, Desc: true}}, []string{"h-3", "h-4", "h-2", "h-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestHistoryStore_PostgresConflict(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	store := NewHistoryStore(db.Wrap(conn, db.DriverPostgres))
	rec := history.AutomaticReset("item-1", workitem.StatusDone, time.Unix(0, 1), "2024-Q2")
	rec.ID = "h-1"

	mock.ExpectExec(`INSERT INTO status_history .* VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8\)`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err = store.Append(context.Background(), rec)
	assert.ErrorIs(t, err, history.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildHistoryQuery(t *testing.T) {
	q, args := buildHistoryQuery(history.Filter{
		ItemIDs: []string{"a", "b"},
		Origin:  history.OriginManual,
		Limit:   5,
		Sort:    history.Sort{Field: "bogus", Desc: true},
	})
	assert.Equal(t,
		"SELECT "+historyColumns+" FROM status_history WHERE item_id IN (?, ?) AND automatic = 0 ORDER BY changed_at DESC, id DESC LIMIT ?",
		q)
	assert.Equal(t, []any{"a", "b", 5}, args)
}
