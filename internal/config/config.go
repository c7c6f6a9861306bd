// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/aristath/screener/internal/modules/signals"
	"github.com/joho/godotenv"
	"github.com/shirou/gopsutil/v3/cpu"
)

// Config holds process configuration read from the environment
type Config struct {
	DataDir  string // Base directory for the screener database and snapshots (always absolute)
	LogLevel string
	Workers  int    // Worker pool size for sweeps and combination scans
	Resolver string // Signal resolver implementation: fast or portable
	DevMode  bool   // Pretty console logging
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("SCREENER_DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		LogLevel: getEnv("SCREENER_LOG_LEVEL", "info"),
		Workers:  getEnvAsInt("SCREENER_WORKERS", DefaultWorkers()),
		Resolver: getEnv("SCREENER_RESOLVER", signals.ResolverFast),
		DevMode:  getEnvAsBool("SCREENER_DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("SCREENER_WORKERS must be >= 1, got %d", c.Workers)
	}
	if _, err := signals.ByName(c.Resolver); err != nil {
		return fmt.Errorf("SCREENER_RESOLVER: %w", err)
	}
	return nil
}

// DatabasePath returns the location of screener.db inside the data directory
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "screener.db")
}

// DefaultWorkers returns the number of logical CPUs
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
