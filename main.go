package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/cadence/internal/cadence"
	"github.com/colonyops/cadence/internal/commands"
	"github.com/colonyops/cadence/internal/core/actor"
	"github.com/colonyops/cadence/internal/core/config"
	"github.com/colonyops/cadence/internal/core/logging"
	"github.com/colonyops/cadence/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser  func()
		cadenceApp = &cadence.App{}
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:        "cadence",
		Usage:       commands.RootUsage,
		UsageText:   "cadence [global options] command [command options]",
		Description: commands.RootDescription,
		Version:     build(),
		Flags:       commands.GlobalFlags(flags),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := logutils.New(flags.LogLevel, flags.LogPath())
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger.Hook(logging.ContextHook{})
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			if flags.ActorID != "" && flags.ActorID != cfg.Actor.ID {
				cfg.Actor = actor.Actor{ID: flags.ActorID}
			}
			ctx = actor.WithActor(ctx, cfg.Actor)

			opened, err := cadence.Open(ctx, cfg, cadence.Options{Logger: log.Logger})
			if err != nil {
				return ctx, err
			}

			// Populate the pre-allocated App struct (commands already hold a pointer to it)
			*cadenceApp = *opened
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			var closeErr error
			if cadenceApp.DB != nil {
				if closeErr = cadenceApp.Close(); closeErr != nil {
					log.Error().Err(closeErr).Msg("failed to close stores")
				}
			}

			if logCloser != nil {
				logCloser()
			}
			return closeErr
		},
	}

	app = commands.Register(app, flags, cadenceApp)

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
