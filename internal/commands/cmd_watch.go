package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/cadence/internal/cadence"
	"github.com/colonyops/cadence/internal/cadence/diag"
	"github.com/colonyops/cadence/internal/cadence/sweep"
)

type WatchCmd struct {
	flags *Flags
	app   *cadence.App

	interval    time.Duration
	metricsAddr string
	pprof       bool
}

// NewWatchCmd creates a new watch command
func NewWatchCmd(flags *Flags, app *cadence.App) *WatchCmd {
	return &WatchCmd{flags: flags, app: app}
}

// Register adds the watch command to the application
func (cmd *WatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "watch",
		Usage:     "Run reset passes on an interval",
		UsageText: "cadence watch [--interval 5m] [--metrics-addr :9090]",
		Description: `Runs a reset pass immediately and then on every interval until interrupted.

With a metrics address, Prometheus metrics are served on /metrics and
--pprof adds /debug/pprof/ on the same listener.
Defaults come from the reset.interval and metrics.addr config keys.`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:        "interval",
				Usage:       "time between passes (defaults to reset.interval)",
				Destination: &cmd.interval,
			},
			&cli.StringFlag{
				Name:        "metrics-addr",
				Usage:       "listen address for /metrics (defaults to metrics.addr)",
				Sources:     cli.EnvVars("CADENCE_METRICS_ADDR"),
				Destination: &cmd.metricsAddr,
			},
			&cli.BoolFlag{
				Name:        "pprof",
				Usage:       "serve pprof profiles next to /metrics",
				Destination: &cmd.pprof,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *WatchCmd) run(ctx context.Context, c *cli.Command) error {
	interval := cmd.interval
	if interval <= 0 {
		interval = cmd.flags.Config.Reset.Interval
	}
	if interval < time.Second {
		return fmt.Errorf("interval must be at least 1s, got %s", interval)
	}

	addr := cmd.metricsAddr
	if addr == "" {
		addr = cmd.flags.Config.Metrics.Addr
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if addr != "" {
		srv := diag.New(addr, nil, cmd.pprof)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	} else if cmd.pprof {
		return fmt.Errorf("--pprof needs a metrics address")
	}

	log.Info().Dur("interval", interval).Msg("watching for period transitions")
	sweep.Start(ctx, interval, func(ctx context.Context) error {
		summary, err := cmd.app.Orchestrator.RunAll(ctx)
		if err != nil {
			return err
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d of %d items failed", summary.Failed, summary.Evaluated)
		}
		return nil
	})
	return nil
}
