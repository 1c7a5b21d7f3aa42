package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/cadence/internal/cadence"
	"github.com/colonyops/cadence/pkg/iojson"
)

type ResetCmd struct {
	flags *Flags
	app   *cadence.App

	assignee string
}

// NewResetCmd creates a new reset command
func NewResetCmd(flags *Flags, app *cadence.App) *ResetCmd {
	return &ResetCmd{flags: flags, app: app}
}

// Register adds the reset command to the application
func (cmd *ResetCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "reset",
		Usage:     "Run one period reset pass",
		UsageText: "cadence reset [--assignee ID]",
		Description: `Evaluates every item (or one actor's items) and resets those whose period
has ended. Items seen for the first time only record their current period.

Prints the pass summary as JSON. Exits non-zero when any item failed.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "assignee",
				Usage:       "only evaluate items assigned to this actor",
				Destination: &cmd.assignee,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ResetCmd) run(ctx context.Context, c *cli.Command) error {
	var (
		summary cadence.Summary
		err     error
	)
	if cmd.assignee != "" {
		summary, err = cmd.app.Orchestrator.RunForActor(ctx, cmd.assignee)
	} else {
		summary, err = cmd.app.Orchestrator.RunAll(ctx)
	}
	if err != nil {
		return err
	}

	if err := iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, summary); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}
