// Package di provides dependency injection type definitions.
package di

import (
	"github.com/aristath/screener/internal/database"
	"github.com/aristath/screener/internal/modules/backtest"
	"github.com/aristath/screener/internal/modules/crosscheck"
	"github.com/aristath/screener/internal/modules/screening"
	"github.com/aristath/screener/internal/modules/sweep"
	"github.com/aristath/screener/internal/modules/validation"
	"github.com/aristath/screener/internal/workers"
)

// Container holds every wired dependency of one screening run
type Container struct {
	// Database (nil when persistence is disabled)
	ScreenerDB *database.DB

	// Repositories
	SweepRepo *sweep.Repository

	// Services
	WorkerPool       *workers.WorkerPool
	Evaluator        *backtest.Evaluator
	Sweeper          *sweep.Sweeper
	ValidationEngine *validation.Engine
	Checker          *crosscheck.Checker
	ScreeningService *screening.Service
}

// Close releases the database connection, if any
func (c *Container) Close() error {
	if c.ScreenerDB == nil {
		return nil
	}
	return c.ScreenerDB.Close()
}
