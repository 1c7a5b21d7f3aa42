package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/cadence/internal/cadence"
	"github.com/colonyops/cadence/internal/core/period"
	"github.com/colonyops/cadence/internal/core/workitem"
	"github.com/colonyops/cadence/pkg/iojson"
)

type ItemsCmd struct {
	flags *Flags
	app   *cadence.App

	// create/schedule flags
	name        string
	assignee    string
	periodicity string
	months      string

	// list flags
	due        bool
	from       string
	to         string
	jsonOutput bool

	importReader iojson.FileReader[[]workitem.Item]
}

// NewItemsCmd creates a new items command
func NewItemsCmd(flags *Flags, app *cadence.App) *ItemsCmd {
	return &ItemsCmd{flags: flags, app: app}
}

// Register adds the items command to the application
func (cmd *ItemsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "items",
		Usage: "Manage recurring work items",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a work item",
				UsageText: "cadence items create --name NAME --periodicity quarterly [--assignee ID] [--months 1,4,7,10]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "item name", Required: true, Destination: &cmd.name},
					&cli.StringFlag{Name: "assignee", Usage: "assigned actor (defaults to the current actor)", Destination: &cmd.assignee},
					&cli.StringFlag{Name: "periodicity", Aliases: []string{"p"}, Usage: "monthly, quarterly, bi-annually or annually", Required: true, Destination: &cmd.periodicity},
					&cli.StringFlag{Name: "months", Usage: "comma separated active months (defaults per periodicity)", Destination: &cmd.months},
				},
				Action: cmd.runCreate,
			},
			{
				Name:      "import",
				Usage:     "Create work items from a JSON array",
				UsageText: "cadence items import [-f items.json]",
				Flags:     []cli.Flag{cmd.importReader.Flag()},
				Action:    cmd.runImport,
			},
			{
				Name:      "list",
				Usage:     "List work items",
				UsageText: "cadence items list [--assignee ID] [--due] [--from MM/YYYY --to MM/YYYY] [--json]",
				Description: `Lists work items with their status for the current period.

--due keeps the items due this month for the current actor; actors that see
all periods get every item assigned to them. --from and --to keep items with
an active month inside the inclusive range.`,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "assignee", Usage: "only items assigned to this actor", Destination: &cmd.assignee},
					&cli.BoolFlag{Name: "due", Usage: "only items due now for the current actor", Destination: &cmd.due},
					&cli.StringFlag{Name: "from", Usage: "range start (MM/YYYY)", Destination: &cmd.from},
					&cli.StringFlag{Name: "to", Usage: "range end (MM/YYYY)", Destination: &cmd.to},
					&cli.BoolFlag{Name: "json", Usage: "output as JSON lines", Destination: &cmd.jsonOutput},
				},
				Action: cmd.runList,
			},
			{
				Name:      "status",
				Usage:     "Change an item's status",
				UsageText: "cadence items status <id> <todo|in-progress|done|waiting|blocked>",
				Action:    cmd.runStatus,
			},
			{
				Name:      "schedule",
				Usage:     "Change an item's periodicity and active months",
				UsageText: "cadence items schedule <id> --periodicity quarterly [--months 3,6,9,12]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "periodicity", Aliases: []string{"p"}, Usage: "monthly, quarterly, bi-annually or annually", Required: true, Destination: &cmd.periodicity},
					&cli.StringFlag{Name: "months", Usage: "comma separated active months (defaults per periodicity)", Destination: &cmd.months},
				},
				Action: cmd.runSchedule,
			},
		},
	})

	return app
}

func (cmd *ItemsCmd) runCreate(ctx context.Context, c *cli.Command) error {
	p, err := period.ParsePeriodicity(cmd.periodicity)
	if err != nil {
		return err
	}
	months, err := parseMonths(cmd.months)
	if err != nil {
		return err
	}

	assignee := cmd.assignee
	if assignee == "" {
		assignee = resolveActor(cmd.flags).ID
	}

	item, err := cmd.app.Items.Create(ctx, workitem.Item{
		Name:         cmd.name,
		AssigneeID:   assignee,
		Periodicity:  p,
		ActiveMonths: months,
	})
	if err != nil {
		return err
	}

	return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, item)
}

func (cmd *ItemsCmd) runImport(ctx context.Context, c *cli.Command) error {
	items, err := cmd.importReader.Read()
	if err != nil {
		return err
	}

	var errs []error
	for _, in := range items {
		item, err := cmd.app.Items.Create(ctx, in)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", in.Name, err))
			continue
		}
		if err := iojson.WriteLine(c.Root().Writer, item); err != nil {
			return fmt.Errorf("encode item: %w", err)
		}
	}
	return errors.Join(errs...)
}

type itemInfo struct {
	workitem.Item
	Period        period.Key      `json:"period"`
	PeriodLabel   string          `json:"period_label"`
	CurrentStatus workitem.Status `json:"current_status"`
}

func (cmd *ItemsCmd) runList(ctx context.Context, c *cli.Command) error {
	r, hasRange, err := parseRange(cmd.from, cmd.to)
	if err != nil {
		return err
	}

	var items []workitem.Item
	if cmd.due {
		a := resolveActor(cmd.flags)
		if cmd.assignee != "" && cmd.assignee != a.ID {
			return fmt.Errorf("--due lists the current actor's items; drop --assignee or use --actor %s", cmd.assignee)
		}
		items, err = cmd.app.Items.Visible(ctx, a)
	} else {
		items, err = cmd.app.Items.List(ctx, workitem.ListFilter{AssigneeID: cmd.assignee})
	}
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	if hasRange {
		items = cmd.app.Items.InRange(items, r)
	}

	if len(items) == 0 {
		if !cmd.jsonOutput {
			fmt.Fprintf(os.Stderr, "No items found\n")
		}
		return nil
	}

	now := cmd.app.Items.Now()
	infos := make([]itemInfo, 0, len(items))
	for _, item := range items {
		status, err := cmd.app.Items.CurrentStatus(ctx, item)
		if err != nil {
			return err
		}
		key := item.CurrentPeriod(now)
		infos = append(infos, itemInfo{Item: item, Period: key, PeriodLabel: period.Label(key), CurrentStatus: status})
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		for _, info := range infos {
			if err := iojson.WriteLine(out, info); err != nil {
				return fmt.Errorf("encode item: %w", err)
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tASSIGNEE\tPERIODICITY\tMONTHS\tPERIOD\tSTATUS")
	for _, info := range infos {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			info.ID, info.Name, info.AssigneeID, info.Periodicity,
			formatMonths(info.ActiveMonths), info.PeriodLabel, info.CurrentStatus)
	}
	return w.Flush()
}

func (cmd *ItemsCmd) runStatus(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("usage: cadence items status <id> <status>")
	}

	status, err := workitem.ParseStatus(c.Args().Get(1))
	if err != nil {
		return err
	}

	id := c.Args().Get(0)
	rec, err := cmd.app.Items.SetStatus(ctx, resolveActor(cmd.flags), id, status)
	if err != nil {
		return err
	}
	if rec == nil {
		fmt.Fprintf(os.Stderr, "Item %s is already %s\n", id, status)
		return nil
	}
	return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, rec)
}

func (cmd *ItemsCmd) runSchedule(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("usage: cadence items schedule <id> --periodicity P [--months M]")
	}

	p, err := period.ParsePeriodicity(cmd.periodicity)
	if err != nil {
		return err
	}
	months, err := parseMonths(cmd.months)
	if err != nil {
		return err
	}

	item, err := cmd.app.Items.UpdateSchedule(ctx, c.Args().First(), p, months)
	if err != nil {
		return err
	}
	return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, item)
}

func formatMonths(months []int) string {
	parts := make([]string, len(months))
	for i, m := range months {
		parts[i] = fmt.Sprint(m)
	}
	return strings.Join(parts, ",")
}
