package cadence

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/colonyops/cadence/internal/core/logging"
	"github.com/colonyops/cadence/internal/core/storeerr"
	"github.com/colonyops/cadence/internal/core/transition"
	"github.com/colonyops/cadence/internal/core/workitem"
	"github.com/colonyops/cadence/pkg/clock"
	"github.com/colonyops/cadence/pkg/randid"
)

// DefaultWorkers bounds how many items a pass evaluates at once.
const DefaultWorkers = 4

// Failure is one item a pass could not evaluate.
type Failure struct {
	ItemID    string `json:"item_id"`
	Error     string `json:"error"`
	Transient bool   `json:"transient"`
	Err       error  `json:"-"`
}

// Summary aggregates the outcomes of one reset pass.
type Summary struct {
	RunID       string    `json:"run_id"`
	Evaluated   int       `json:"evaluated"`
	Unchanged   int       `json:"unchanged"`
	Initialized int       `json:"initialized"`
	Reset       int       `json:"reset"`
	Raced       int       `json:"raced"`
	Failed      int       `json:"failed"`
	Failures    []Failure `json:"failures,omitempty"`
}

// Orchestrator runs the transition check over batches of items. A failing
// item never stops the rest of the batch.
type Orchestrator struct {
	items    workitem.Store
	detector *transition.Detector
	clock    clock.Clock
	workers  int
	metrics  *Metrics
	log      zerolog.Logger
}

// NewOrchestrator creates a new Orchestrator. workers <= 0 uses DefaultWorkers
// and metrics may be nil.
func NewOrchestrator(items workitem.Store, detector *transition.Detector, clk clock.Clock, workers int, metrics *Metrics, log zerolog.Logger) *Orchestrator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Orchestrator{
		items:    items,
		detector: detector,
		clock:    clk,
		workers:  workers,
		metrics:  metrics,
		log:      log.With().Str("component", "orchestrator").Logger(),
	}
}

// Run evaluates every item. Items are independent: they run concurrently up
// to the worker limit, and failures are collected into the Summary.
func (o *Orchestrator) Run(ctx context.Context, items []workitem.Item) Summary {
	start := o.clock.Now()
	runID := randid.Generate(8)
	ctx = logging.WithRunID(ctx, runID)

	type result struct {
		out transition.Outcome
		err error
	}
	results := make([]result, len(items))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, item := range items {
		g.Go(func() error {
			out, err := o.evaluate(ctx, item)
			results[i] = result{out: out, err: err}
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{RunID: runID, Evaluated: len(items)}
	for i, r := range results {
		if r.err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{
				ItemID:    items[i].ID,
				Error:     r.err.Error(),
				Transient: storeerr.IsTransient(r.err),
				Err:       r.err,
			})
			continue
		}

		switch {
		case r.out.Raced:
			summary.Raced++
		case r.out.Action == transition.ActionReset:
			summary.Reset++
		case r.out.Action == transition.ActionInitialize:
			summary.Initialized++
		default:
			summary.Unchanged++
		}
	}
	slices.SortFunc(summary.Failures, func(a, b Failure) int { return cmp.Compare(a.ItemID, b.ItemID) })

	finished := o.clock.Now()
	o.metrics.ObserveRun(summary, finished.Sub(start), finished)

	o.log.Info().Ctx(ctx).
		Int("evaluated", summary.Evaluated).
		Int("reset", summary.Reset).
		Int("initialized", summary.Initialized).
		Int("raced", summary.Raced).
		Int("failed", summary.Failed).
		Dur("took", finished.Sub(start)).
		Msg("reset pass complete")

	return summary
}

// RunForActor runs a pass over the items assigned to actorID.
func (o *Orchestrator) RunForActor(ctx context.Context, actorID string) (Summary, error) {
	items, err := o.items.ListForActor(ctx, actorID)
	if err != nil {
		return Summary{}, fmt.Errorf("list items for actor: %w", err)
	}
	return o.Run(ctx, items), nil
}

// RunAll runs a pass over every item.
func (o *Orchestrator) RunAll(ctx context.Context) (Summary, error) {
	items, err := o.items.List(ctx, workitem.ListFilter{})
	if err != nil {
		return Summary{}, fmt.Errorf("list items: %w", err)
	}
	return o.Run(ctx, items), nil
}

// evaluate isolates one item: cancellation and panics become that item's error.
func (o *Orchestrator) evaluate(ctx context.Context, item workitem.Item) (out transition.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic evaluating item: %v", r)
		}
		if err != nil {
			o.log.Error().Ctx(ctx).Err(err).
				Str("item_id", item.ID).
				Bool("transient", storeerr.IsTransient(err)).
				Msg("item evaluation failed")
		}
	}()

	if err := ctx.Err(); err != nil {
		return transition.Outcome{ItemID: item.ID}, err
	}
	return o.detector.Evaluate(ctx, item)
}
