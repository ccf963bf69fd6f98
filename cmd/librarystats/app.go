package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/library/oteladapters"
	"github.com/AntonStoeckl/library-history-go/library/postgresengine"
	"github.com/AntonStoeckl/library-history-go/reportcache"
	"github.com/AntonStoeckl/library-history-go/services/books"
	"github.com/AntonStoeckl/library-history-go/services/lending"
	"github.com/AntonStoeckl/library-history-go/services/readers"
	"github.com/AntonStoeckl/library-history-go/shell/config"
	"github.com/AntonStoeckl/library-history-go/statistics"
)

const instrumentationName = "github.com/AntonStoeckl/library-history-go/cmd/librarystats"

// Exit codes.
const (
	exitOK           = 0
	exitFailure      = 1
	exitInvalidRange = 2
	exitNoData       = 3
	exitNotFound     = 4
)

// storeOpener opens the store and returns a function releasing its connections.
type storeOpener func(ctx context.Context, cfg config.DatabaseConfig, opts ...postgresengine.Option) (postgresengine.Store, func(), error)

// app holds the flags and the wired components of one CLI invocation.
type app struct {
	flagConfig string
	flagFormat string
	flagOutput string

	stdout io.Writer
	stderr io.Writer
	now    func() time.Time

	openStore storeOpener
	closers   []func()

	logger  *slog.Logger
	engine  statistics.Engine
	books   books.Service
	readers readers.Service
	lending lending.Service
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:    stdout,
		stderr:    stderr,
		now:       time.Now,
		openStore: openStore,
	}
}

// wire loads the configuration and builds the store, the optional report cache, the engine and the lending service.
func (a *app) wire(ctx context.Context) error {
	cfg, err := config.Load(a.flagConfig)
	if err != nil {
		return err
	}

	a.logger = config.NewLogger(cfg.Log, a.stderr)
	metrics := oteladapters.NewMetricsCollector(otel.Meter(instrumentationName))
	tracing := oteladapters.NewTracingCollector(otel.Tracer(instrumentationName))

	store, closeStore, err := a.openStore(ctx, cfg.Database,
		postgresengine.WithLogger(a.logger),
		postgresengine.WithMetrics(metrics),
		postgresengine.WithTracing(tracing),
	)
	if err != nil {
		return err
	}

	a.closers = append(a.closers, closeStore)

	engineOptions := []statistics.Option{
		statistics.WithLoanPeriod(cfg.Library.LoanPeriod),
		statistics.WithMetrics(metrics),
		statistics.WithTracing(tracing),
		statistics.WithLogging(a.logger),
	}
	lendingOptions := []lending.Option{
		lending.WithMetrics(metrics),
		lending.WithTracing(tracing),
		lending.WithLogging(a.logger),
	}

	if cfg.Cache.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		a.closers = append(a.closers, func() { _ = client.Close() })

		cache, cacheErr := reportcache.New(client,
			reportcache.WithTTL(cfg.Cache.TTL),
			reportcache.WithPrefix(cfg.Cache.Prefix),
			reportcache.WithLogger(a.logger),
			reportcache.WithMetrics(metrics),
		)
		if cacheErr != nil {
			return cacheErr
		}

		engineOptions = append(engineOptions, statistics.WithReportCache(cache))
		lendingOptions = append(lendingOptions, lending.WithReportInvalidator(cache))
	}

	if a.engine, err = statistics.NewEngine(store, engineOptions...); err != nil {
		return err
	}

	if a.lending, err = lending.NewService(store, a.engine, lendingOptions...); err != nil {
		return err
	}

	a.books = books.NewService(store, a.engine)
	a.readers = readers.NewService(store, a.engine)

	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}

	a.closers = nil
}

func openStore(
	ctx context.Context,
	cfg config.DatabaseConfig,
	opts ...postgresengine.Option,
) (postgresengine.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverPGX:
		primary, err := config.NewPGXPool(ctx, cfg)
		if err != nil {
			return postgresengine.Store{}, nil, err
		}

		replica, err := config.NewPGXReplicaPool(ctx, cfg)
		if err != nil {
			primary.Close()
			return postgresengine.Store{}, nil, err
		}

		closer := func() {
			if replica != nil {
				replica.Close()
			}
			primary.Close()
		}

		var store postgresengine.Store
		if replica != nil {
			store, err = postgresengine.NewStoreFromPGXPoolWithReplica(primary, replica, opts...)
		} else {
			store, err = postgresengine.NewStoreFromPGXPool(primary, opts...)
		}

		return store, closer, err
	case config.DriverPostgres:
		db, err := config.NewSQLDB(ctx, cfg)
		if err != nil {
			return postgresengine.Store{}, nil, err
		}

		store, err := postgresengine.NewStoreFromSQLDB(db, opts...)

		return store, func() { _ = db.Close() }, err
	case config.DriverSQLX:
		db, err := config.NewSQLX(ctx, cfg)
		if err != nil {
			return postgresengine.Store{}, nil, err
		}

		store, err := postgresengine.NewStoreFromSQLX(db, opts...)

		return store, func() { _ = db.Close() }, err
	default:
		return postgresengine.Store{}, nil, errors.Join(config.ErrInvalidConfig, fmt.Errorf("unknown database driver %q", cfg.Driver))
	}
}

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, library.ErrInvalidRange):
		return exitInvalidRange
	case errors.Is(err, library.ErrNoData):
		return exitNoData
	case errors.Is(err, library.ErrNotFound):
		return exitNotFound
	default:
		return exitFailure
	}
}

func errorMessage(err error) string {
	if errors.Is(err, library.ErrNoData) {
		return "no data"
	}

	return err.Error()
}

func run(ctx context.Context, args []string, a *app) int {
	defer a.close()

	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(a.stderr, color.RedString("error:"), errorMessage(err))
		return exitCode(err)
	}

	return exitOK
}
