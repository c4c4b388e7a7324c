// Package server composes the user ledger: storage, event bus, write-model,
// read-model, validator and the UserService facade. It also serves the
// Prometheus endpoint and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/userledger/internal/eventbus"
	"github.com/dmitrijs2005/userledger/internal/logging"
	"github.com/dmitrijs2005/userledger/internal/server/config"
	"github.com/dmitrijs2005/userledger/internal/server/metrics"
	"github.com/dmitrijs2005/userledger/internal/server/readmodel"
	"github.com/dmitrijs2005/userledger/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/userledger/internal/server/services"
	"github.com/dmitrijs2005/userledger/internal/server/store"
	"github.com/dmitrijs2005/userledger/internal/server/validation"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	metrics *metrics.Metrics
	cache   *readmodel.Cache

	// Users is the entry point for every command and query.
	Users *services.UserService
}

// NewApp opens the database, applies migrations, optionally seeds it and
// builds the components in dependency order: bus, store, read-model,
// validator, facade.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	manager, err := repomanager.NewRepositoryManager(c.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	db, err := repomanager.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := build(ctx, c, logger, db, manager)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func build(ctx context.Context, c *config.Config, logger logging.Logger, db *sql.DB, manager repomanager.RepositoryManager) (*App, error) {
	if err := manager.RunMigrations(ctx, db); err != nil {
		return nil, err
	}

	if c.SeedOnEmpty {
		seeded, err := repomanager.Seed(ctx, manager.Users(db), time.Now())
		if err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		if seeded {
			logger.Info(ctx, "seeded sample users")
		}
	}

	m := metrics.New("")
	bus := eventbus.New(logger.With("component", "eventbus"), eventbus.WithRecorder(m))
	st := store.New(db, manager, bus)

	cache, err := readmodel.New(ctx, st, bus, logger.With("component", "readmodel"))
	if err != nil {
		return nil, err
	}
	m.WatchCache(cache)

	users := services.NewUserService(validation.New(st), st, cache, logger.With("component", "users"),
		services.WithRecorder(m))

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		metrics: m,
		cache:   cache,
		Users:   users,
	}, nil
}

// handleSignals cancels on the first termination signal. It returns once
// either a signal arrived or ctx is done, and stops signal delivery on exit.
func (app *App) handleSignals(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigs)

	select {
	case sig := <-sigs:
		app.logger.Info(ctx, "Signal received", "signal", sig.String())
		cancelFunc()
	case <-ctx.Done():
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())

	srv := &http.Server{
		Addr:              app.config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping metrics server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "metrics server shutdown", "error", err.Error())
		}
	}()

	app.logger.Info(ctx, "Starting metrics server", "addr", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "metrics server", "error", err.Error())
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled or a termination signal arrives, then
// releases the read-model and the database.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "driver", app.config.DatabaseDriver,
		"users", len(app.Users.ListAll(ctx, nil)))

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.handleSignals(ctx, cancelFunc)
	}()

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMetricsServer(ctx, cancelFunc)
		}()
	}

	<-ctx.Done()
	wg.Wait()

	return app.Close()
}

// Close detaches the read-model and closes the database.
func (app *App) Close() error {
	app.cache.Close()
	if err := app.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	app.logger.Info(context.Background(), "App stopped")
	return nil
}
