package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/colonyops/cadence/internal/cadence"
)

const (
	RootUsage       = "Track recurring obligations across monthly, quarterly and yearly periods"
	RootDescription = `Cadence keeps a status for each recurring work item and resets it to todo
when the item's period (month, quarter, half year or year) rolls over.

Run 'cadence reset' for a single pass or 'cadence watch' to keep resetting
items on an interval.`
)

// GlobalFlags returns the root flags, bound to flags.
func GlobalFlags(flags *Flags) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error, fatal, panic)",
			Sources:     cli.EnvVars("CADENCE_LOG_LEVEL"),
			Value:       "info",
			Destination: &flags.LogLevel,
		},
		&cli.StringFlag{
			Name:        "log-file",
			Usage:       `path to log file, or "default" for $XDG_STATE_HOME/cadence/cadence.log (stderr when empty)`,
			Sources:     cli.EnvVars("CADENCE_LOG_FILE"),
			Destination: &flags.LogFile,
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to config file",
			Sources:     cli.EnvVars("CADENCE_CONFIG"),
			Value:       DefaultConfigPath(),
			Destination: &flags.ConfigPath,
		},
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "path to data directory",
			Sources:     cli.EnvVars("CADENCE_DATA_DIR"),
			Value:       DefaultDataDir(),
			Destination: &flags.DataDir,
		},
		&cli.StringFlag{
			Name:        "actor",
			Usage:       "actor ID for manual changes (overrides actor.id in config)",
			Sources:     cli.EnvVars("CADENCE_ACTOR"),
			Destination: &flags.ActorID,
		},
	}
}

// Register adds every subcommand to root.
func Register(root *cli.Command, flags *Flags, app *cadence.App) *cli.Command {
	root = NewItemsCmd(flags, app).Register(root)
	root = NewResetCmd(flags, app).Register(root)
	root = NewWatchCmd(flags, app).Register(root)
	root = NewHistoryCmd(flags, app).Register(root)
	root = NewDoctorCmd(flags, app).Register(root)
	root = NewDBCmd(flags, app).Register(root)
	root = NewConfigValidateCmd(flags).Register(root)
	return root
}
