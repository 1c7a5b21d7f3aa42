package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/cadence/internal/cadence"
	"github.com/colonyops/cadence/internal/core/history"
	"github.com/colonyops/cadence/internal/core/period"
	"github.com/colonyops/cadence/pkg/iojson"
)

type HistoryCmd struct {
	flags *Flags
	app   *cadence.App

	items      []string
	periodKey  string
	actorID    string
	automatic  bool
	manual     bool
	limit      int
	jsonOutput bool
}

// NewHistoryCmd creates a new history command
func NewHistoryCmd(flags *Flags, app *cadence.App) *HistoryCmd {
	return &HistoryCmd{flags: flags, app: app}
}

// Register adds the history command to the application
func (cmd *HistoryCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "history",
		Usage:     "Show status history, newest first",
		UsageText: "cadence history [--item ID]... [--period KEY] [--actor-id ID] [--automatic|--manual] [--limit N] [--json]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "item", Usage: "only records for these items", Destination: &cmd.items},
			&cli.StringFlag{Name: "period", Usage: "only records for this period key (e.g. 2024-Q2)", Destination: &cmd.periodKey},
			&cli.StringFlag{Name: "actor-id", Usage: "only manual changes by this actor", Destination: &cmd.actorID},
			&cli.BoolFlag{Name: "automatic", Usage: "only automatic resets", Destination: &cmd.automatic},
			&cli.BoolFlag{Name: "manual", Usage: "only manual changes", Destination: &cmd.manual},
			&cli.IntFlag{Name: "limit", Usage: "maximum records to show", Value: 50, Destination: &cmd.limit},
			&cli.BoolFlag{Name: "json", Usage: "output as JSON lines", Destination: &cmd.jsonOutput},
		},
		Action: cmd.run,
	})

	return app
}

type recordInfo struct {
	history.Record
	PeriodLabel string `json:"period_label"`
}

func (cmd *HistoryCmd) filter() (history.Filter, error) {
	f := history.Filter{
		ItemIDs: cmd.items,
		ActorID: cmd.actorID,
		Limit:   cmd.limit,
		Sort:    history.DefaultSort,
	}

	switch {
	case cmd.automatic && cmd.manual:
		return f, fmt.Errorf("--automatic and --manual are mutually exclusive")
	case cmd.automatic:
		f.Origin = history.OriginAutomatic
	case cmd.manual:
		f.Origin = history.OriginManual
	}

	if cmd.periodKey != "" {
		key, err := period.ParseKey(cmd.periodKey)
		if err != nil {
			return f, err
		}
		f.PeriodKey = key
	}
	return f, nil
}

func (cmd *HistoryCmd) run(ctx context.Context, c *cli.Command) error {
	filter, err := cmd.filter()
	if err != nil {
		return err
	}

	records, err := cmd.app.History.Query(ctx, filter)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		if !cmd.jsonOutput {
			fmt.Fprintf(os.Stderr, "No history found\n")
		}
		return nil
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		for _, rec := range records {
			if err := iojson.WriteLine(out, recordInfo{Record: rec, PeriodLabel: period.Label(rec.PeriodKey)}); err != nil {
				return fmt.Errorf("encode record: %w", err)
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CHANGED\tITEM\tPERIOD\tFROM\tTO\tBY")
	for _, rec := range records {
		from := "-"
		if rec.OldStatus != nil {
			from = string(*rec.OldStatus)
		}
		by := "reset"
		if rec.ActorID != nil {
			by = *rec.ActorID
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.ChangedAt.Local().Format(time.DateTime), rec.ItemID, period.Label(rec.PeriodKey), from, rec.NewStatus, by)
	}
	return w.Flush()
}
