package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/cadence/internal/cadence"
	"github.com/colonyops/cadence/internal/data/db"
)

type DBCmd struct {
	flags *Flags
	app   *cadence.App

	steps int
	yes   bool
}

// NewDBCmd creates a new db command.
func NewDBCmd(flags *Flags, app *cadence.App) *DBCmd {
	return &DBCmd{flags: flags, app: app}
}

// Register adds the db command to the application.
func (cmd *DBCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "db",
		Usage: "Database schema commands",
		Commands: []*cli.Command{
			{
				Name:        "status",
				Usage:       "List migrations not yet applied",
				UsageText:   "cadence db status",
				Description: "Opening the database applies pending migrations, so this normally prints none.",
				Action:      cmd.runStatus,
			},
			{
				Name:      "migrate-down",
				Usage:     "Revert the newest applied migrations",
				UsageText: "cadence db migrate-down [-n N] --yes",
				Description: `Reverts the last N schema migrations, newest first. Reverted tables are
dropped together with their rows. The next command that opens the database
applies them again, empty.`,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "steps",
						Aliases:     []string{"n"},
						Usage:       "number of migrations to revert",
						Value:       1,
						Destination: &cmd.steps,
					},
					&cli.BoolFlag{
						Name:        "yes",
						Usage:       "confirm dropping the reverted tables",
						Destination: &cmd.yes,
					},
				},
				Action: cmd.runMigrateDown,
			},
		},
	})

	return app
}

func (cmd *DBCmd) runStatus(ctx context.Context, c *cli.Command) error {
	return cmd.printPending(ctx, c)
}

func (cmd *DBCmd) runMigrateDown(ctx context.Context, c *cli.Command) error {
	if !cmd.yes {
		return fmt.Errorf("migrate-down drops data; pass --yes to confirm")
	}

	if err := db.MigrateDown(ctx, cmd.app.DB, cmd.steps); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}

	_, _ = fmt.Fprintf(c.Root().Writer, "reverted %d migration(s)\n", cmd.steps)
	return cmd.printPending(ctx, c)
}

func (cmd *DBCmd) printPending(ctx context.Context, c *cli.Command) error {
	pending, err := db.PendingMigrations(ctx, cmd.app.DB)
	if err != nil {
		return fmt.Errorf("read migration status: %w", err)
	}

	w := c.Root().Writer
	if len(pending) == 0 {
		_, _ = fmt.Fprintln(w, "schema up to date")
		return nil
	}
	for _, m := range pending {
		_, _ = fmt.Fprintf(w, "pending %04d %s\n", m.Version, m.Name)
	}
	return nil
}
