// Package di provides dependency injection wiring and initialization.
package di

import (
	"fmt"

	"github.com/aristath/screener/internal/config"
	"github.com/aristath/screener/internal/modules/backtest"
	"github.com/aristath/screener/internal/modules/crosscheck"
	"github.com/aristath/screener/internal/modules/screening"
	"github.com/aristath/screener/internal/modules/signals"
	"github.com/aristath/screener/internal/modules/sweep"
	"github.com/aristath/screener/internal/modules/validation"
	"github.com/aristath/screener/internal/workers"
	"github.com/rs/zerolog"
)

// Wire builds the container for run.
// Order of operations:
// 1. Open the database (when dbPath is not empty)
// 2. Initialize repositories
// 3. Initialize services
func Wire(cfg *config.Config, run *config.Run, dbPath string, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// Step 1: Initialize database
	if dbPath != "" {
		db, err := InitializeDatabase(dbPath, log)
		if err != nil {
			return nil, err
		}
		container.ScreenerDB = db

		// Step 2: Initialize repositories
		container.SweepRepo = sweep.NewRepository(db.Conn(), log)
	}

	// Step 3: Initialize services
	if err := initializeServices(container, cfg, run, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	log.Info().
		Int("workers", container.WorkerPool.Size()).
		Bool("persist", container.SweepRepo != nil).
		Msg("Dependency injection wiring completed successfully")

	return container, nil
}

func initializeServices(c *Container, cfg *config.Config, run *config.Run, log zerolog.Logger) error {
	resolverName := cfg.Resolver
	if run.Resolver != "" {
		resolverName = run.Resolver
	}
	resolver, err := signals.ByName(resolverName)
	if err != nil {
		return err
	}

	opts := run.FillOptions()
	c.Evaluator, err = backtest.NewEvaluator(resolver, opts, log)
	if err != nil {
		return err
	}
	c.Checker, err = crosscheck.NewChecker(c.Evaluator, run.Crosscheck, log)
	if err != nil {
		return err
	}

	c.WorkerPool = workers.NewWorkerPool(cfg.Workers)
	c.Sweeper = sweep.NewSweeper(c.Evaluator, c.WorkerPool, log)
	c.ValidationEngine = validation.NewEngine(c.WorkerPool, log)

	meta := sweep.RunMeta{Resolver: resolver.Name(), Timing: opts.Timing, Slippage: opts.Slippage}
	c.ScreeningService = screening.NewService(c.Sweeper, c.ValidationEngine, c.Checker, c.SweepRepo, meta, log)
	return nil
}
