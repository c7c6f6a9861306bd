// Package di provides dependency injection for database connections.
package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/screener/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabase opens screener.db at path, applies its schema and
// verifies integrity. Validation results are a ledger, so the file is
// opened with full fsync.
func InitializeDatabase(path string, log zerolog.Logger) (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileLedger,
		Name:    "screener",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize screener database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate screener database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.HealthCheck(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("screener database health check failed: %w", err)
	}

	log.Info().
		Str("name", db.Name()).
		Str("path", db.Path()).
		Str("profile", string(db.Profile())).
		Msg("Database initialized")
	return db, nil
}
