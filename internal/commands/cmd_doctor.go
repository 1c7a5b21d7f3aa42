package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/cadence/internal/cadence"
	"github.com/colonyops/cadence/internal/core/doctor"
	"github.com/colonyops/cadence/pkg/iojson"
)

type DoctorCmd struct {
	flags *Flags
	app   *cadence.App

	format string
}

// NewDoctorCmd creates a new doctor command
func NewDoctorCmd(flags *Flags, app *cadence.App) *DoctorCmd {
	return &DoctorCmd{flags: flags, app: app}
}

// Register adds the doctor command to the application
func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "doctor",
		Usage:     "Check configuration, storage and stored items",
		UsageText: "cadence doctor [--format text|json]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *DoctorCmd) checks() []doctor.Check {
	return []doctor.Check{
		doctor.NewConfigCheck(cmd.flags.Config, cmd.flags.ConfigPath),
		doctor.NewDatabaseCheck(cmd.app.DB),
		doctor.NewPointersCheck(cmd.flags.Config.Pointers.Backend, cmd.app.PingPointers),
		doctor.NewItemsCheck(cmd.app.Items, cmd.app.Pointers, cmd.app.Items.Now),
	}
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	results := doctor.RunAll(ctx, cmd.checks())
	passed, warned, failed := doctor.Summary(results)

	out := c.Root().Writer
	if cmd.format == "json" {
		err := iojson.WriteWith(out, c.Root().ErrWriter, struct {
			Checks []doctor.Result `json:"checks"`
			Passed int             `json:"passed"`
			Warned int             `json:"warned"`
			Failed int             `json:"failed"`
		}{results, passed, warned, failed})
		if err != nil {
			return err
		}
	} else {
		for _, r := range results {
			_, _ = fmt.Fprintln(out, r.Name)
			for _, item := range r.Items {
				line := fmt.Sprintf("  %s %s", statusIcon(item.Status), item.Label)
				if item.Detail != "" {
					line += ": " + item.Detail
				}
				_, _ = fmt.Fprintln(out, line)
			}
		}
		_, _ = fmt.Fprintf(out, "\n%d passed, %d warnings, %d failed\n", passed, warned, failed)
	}

	if failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func statusIcon(s doctor.Status) string {
	switch s {
	case doctor.StatusPass:
		return "✓"
	case doctor.StatusWarn:
		return "!"
	default:
		return "✗"
	}
}
