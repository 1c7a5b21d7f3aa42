package cadence

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cadence/internal/core/history"
	"github.com/colonyops/cadence/internal/core/period"
	"github.com/colonyops/cadence/internal/core/storeerr"
	"github.com/colonyops/cadence/internal/core/transition"
	"github.com/colonyops/cadence/internal/core/workitem"
	"github.com/colonyops/cadence/internal/data/memstore"
	"github.com/colonyops/cadence/pkg/clock"
)

// faultyPointers fails or panics for chosen item IDs.
type faultyPointers struct {
	*memstore.Items
	fail  map[string]error
	panic map[string]bool
}

func (p *faultyPointers) Pointer(ctx context.Context, id string) (workitem.Pointer, error) {
	if p.panic[id] {
		panic("pointer store exploded")
	}
	if err := p.fail[id]; err != nil {
		return workitem.Pointer{}, err
	}
	return p.Items.Pointer(ctx, id)
}

type orchFixture struct {
	items   *memstore.Items
	ledger  *history.Ledger
	clock   *clock.Manual
	metrics *Metrics
	reg     *prometheus.Registry
	orch    *Orchestrator
}

func newOrchFixture(t *testing.T, now time.Time, pointers func(*memstore.Items) workitem.PointerStore) *orchFixture {
	t.Helper()

	f := &orchFixture{
		items:  memstore.NewItems(),
		ledger: history.NewLedger(memstore.NewHistory(), zerolog.Nop()),
		clock:  clock.NewManual(now),
		reg:    prometheus.NewRegistry(),
	}
	f.metrics = MustNewMetrics(f.reg)

	var ps workitem.PointerStore = f.items
	if pointers != nil {
		ps = pointers(f.items)
	}
	committer := transition.NewSequentialCommitter(f.items, ps, f.ledger)
	detector := transition.NewDetector(ps, committer, f.clock, zerolog.Nop())
	f.orch = NewOrchestrator(f.items, detector, f.clock, 3, f.metrics, zerolog.Nop())
	return f
}

func (f *orchFixture) add(t *testing.T, id, assignee string, p period.Periodicity, status workitem.Status) workitem.Item {
	t.Helper()
	item := workitem.New("Item "+id, assignee, p)
	item.ID = id
	item.Status = status
	require.NoError(t, f.items.Save(context.Background(), item))
	return item
}

func TestOrchestrator_InitializeThenReset(t *testing.T) {
	ctx := context.Background()
	f := newOrchFixture(t, time.Date(2024, time.March, 30, 12, 0, 0, 0, time.UTC), nil)

	for i := range 5 {
		f.add(t, fmt.Sprintf("q-%d", i), "u-1", period.Quarterly, workitem.StatusDone)
	}
	f.add(t, "a-0", "u-1", period.Annually, workitem.StatusDone)

	first, err := f.orch.RunAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, first.Evaluated)
	assert.Equal(t, 6, first.Initialized)
	assert.Zero(t, first.Reset)
	assert.NotEmpty(t, first.RunID)

	f.clock.Set(time.Date(2024, time.April, 1, 0, 0, 1, 0, time.UTC))

	second, err := f.orch.RunAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, second.Reset)
	assert.Equal(t, 1, second.Unchanged, "annual item stays in 2024")
	assert.Zero(t, second.Failed)

	third, err := f.orch.RunAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, third.Unchanged, "a second pass in the same period changes nothing")

	for i := range 5 {
		got, err := f.items.Get(ctx, fmt.Sprintf("q-%d", i))
		require.NoError(t, err)
		assert.Equal(t, workitem.StatusTodo, got.Status)
	}
	annual, err := f.items.Get(ctx, "a-0")
	require.NoError(t, err)
	assert.Equal(t, workitem.StatusDone, annual.Status)

	automatic, err := f.ledger.Query(ctx, history.Filter{Origin: history.OriginAutomatic})
	require.NoError(t, err)
	assert.Len(t, automatic, 5)

	assert.InDelta(t, 5, testutil.ToFloat64(f.metrics.outcomes.WithLabelValues("reset")), 0)
	assert.InDelta(t, 6, testutil.ToFloat64(f.metrics.outcomes.WithLabelValues("initialized")), 0)
	assert.Positive(t, testutil.ToFloat64(f.metrics.lastRun))
}

func TestOrchestrator_FailuresAreIsolated(t *testing.T) {
	ctx := context.Background()
	busy := storeerr.Wrap("read pointer", errors.New("database is locked"))

	f := newOrchFixture(t, time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC), func(items *memstore.Items) workitem.PointerStore {
		return &faultyPointers{
			Items: items,
			fail:  map[string]error{"m-busy": busy, "m-broken": errors.New("corrupt row")},
			panic: map[string]bool{"m-panic": true},
		}
	})

	var batch []workitem.Item
	for _, id := range []string{"m-ok-1", "m-busy", "m-panic", "m-broken", "m-ok-2"} {
		batch = append(batch, f.add(t, id, "u-1", period.Monthly, workitem.StatusInProgress))
	}

	summary := f.orch.Run(ctx, batch)
	assert.Equal(t, 5, summary.Evaluated)
	assert.Equal(t, 2, summary.Initialized)
	assert.Equal(t, 3, summary.Failed)

	require.Len(t, summary.Failures, 3)
	assert.Equal(t, "m-broken", summary.Failures[0].ItemID)
	assert.False(t, summary.Failures[0].Transient)
	assert.Equal(t, "m-busy", summary.Failures[1].ItemID)
	assert.True(t, summary.Failures[1].Transient)
	assert.Equal(t, "m-panic", summary.Failures[2].ItemID)
	assert.Contains(t, summary.Failures[2].Error, "panic")

	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.failures.WithLabelValues("transient")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(f.metrics.failures.WithLabelValues("permanent")), 0)
}

func TestOrchestrator_CancelledContext(t *testing.T) {
	f := newOrchFixture(t, time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC), nil)
	item := f.add(t, "m-1", "u-1", period.Monthly, workitem.StatusTodo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := f.orch.Run(ctx, []workitem.Item{item})
	require.Len(t, summary.Failures, 1)
	assert.ErrorIs(t, summary.Failures[0].Err, context.Canceled)
}

func TestOrchestrator_RunForActor(t *testing.T) {
	ctx := context.Background()
	f := newOrchFixture(t, time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC), nil)
	f.add(t, "mine", "u-1", period.Monthly, workitem.StatusTodo)
	f.add(t, "theirs", "u-2", period.Monthly, workitem.StatusTodo)

	summary, err := f.orch.RunForActor(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Evaluated)

	ptr, err := f.items.Pointer(ctx, "theirs")
	require.NoError(t, err)
	assert.False(t, ptr.IsSet())
}

func TestMustNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := MustNewMetrics(reg)
	second := MustNewMetrics(reg)

	second.ObserveRun(Summary{Reset: 2}, time.Second, time.Unix(100, 0))
	assert.InDelta(t, 2, testutil.ToFloat64(first.outcomes.WithLabelValues("reset")), 0)
	assert.InDelta(t, 100, testutil.ToFloat64(first.lastRun), 0)

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveRun(Summary{}, 0, time.Time{}) })
}
