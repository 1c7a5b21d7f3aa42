// Package cadence wires the period engine to its stores and exposes the
// services commands consume.
package cadence

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/colonyops/cadence/internal/core/config"
	"github.com/colonyops/cadence/internal/core/history"
	"github.com/colonyops/cadence/internal/core/transition"
	"github.com/colonyops/cadence/internal/core/workitem"
	"github.com/colonyops/cadence/internal/data/db"
	"github.com/colonyops/cadence/internal/data/redispointer"
	"github.com/colonyops/cadence/internal/data/stores"
	"github.com/colonyops/cadence/pkg/clock"
)

// App is the central entry point for all cadence operations.
// Commands consume App instead of cherry-picking raw dependencies.
type App struct {
	Items        *ItemService
	Pointers     workitem.PointerStore
	History      *history.Ledger
	Orchestrator *Orchestrator
	Metrics      *Metrics
	Config       *config.Config
	DB           *db.DB

	redis redis.UniversalClient
}

// Options carries the collaborators Open does not derive from config.
type Options struct {
	Clock    clock.Clock           // defaults to clock.Real
	Registry prometheus.Registerer // defaults to the global registry
	Logger   zerolog.Logger
}

// Open connects the stores selected by cfg and builds the services.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}

	database, err := openDatabase(cfg, opts.Logger)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, DB: database}

	var (
		items     = stores.NewItemStore(database, opts.Clock)
		ledger    = history.NewLedger(stores.NewHistoryStore(database), opts.Logger)
		txc       = stores.NewTxCommitter(database)
		pointers  workitem.PointerStore
		committer transition.Committer
	)

	switch cfg.Pointers.Backend {
	case config.PointersRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Pointers.Redis.Addr,
			Password: cfg.Pointers.Redis.Password,
			DB:       cfg.Pointers.Redis.DB,
		})
		app.redis = client

		if err := client.Ping(ctx).Err(); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}

		pointers = redispointer.New(client, cfg.Pointers.Redis.Prefix)
		committer = transition.NewSequentialCommitter(items, pointers, ledger)
	default:
		pointers = items
		committer = txc
	}

	detector := transition.NewDetector(pointers, committer, opts.Clock, opts.Logger)

	app.History = ledger
	app.Pointers = pointers
	app.Metrics = MustNewMetrics(opts.Registry)
	app.Items = NewItemService(items, pointers, ledger, txc, opts.Clock, opts.Logger)
	app.Orchestrator = NewOrchestrator(items, detector, opts.Clock, cfg.Reset.Workers, app.Metrics, opts.Logger)

	return app, nil
}

func openDatabase(cfg *config.Config, log zerolog.Logger) (*db.DB, error) {
	opts := db.OpenOptions{
		Driver:       db.Driver(cfg.Database.Driver),
		DSN:          cfg.Database.DSN,
		DataDir:      cfg.DataDir,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	}

	database, err := db.Open(opts)
	if err != nil && opts.Driver == db.DriverSQLite && opts.DSN == "" && stores.IsCorruptionError(err) {
		log.Warn().Err(err).Str("data_dir", cfg.DataDir).Msg("database corrupt, moving it aside")
		if rerr := stores.RecoverFromCorruption(cfg.DataDir); rerr != nil {
			return nil, fmt.Errorf("open database: %w", errors.Join(err, rerr))
		}
		database, err = db.Open(opts)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return database, nil
}

// PingPointers checks that the period pointer backend responds.
func (a *App) PingPointers(ctx context.Context) error {
	if a.redis != nil {
		return a.redis.Ping(ctx).Err()
	}
	return a.DB.Conn().PingContext(ctx)
}

// Close releases the database and redis connections.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
