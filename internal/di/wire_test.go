package di

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/aristath/screener/internal/config"
	"github.com/aristath/screener/internal/modules/signals"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRun(t *testing.T, extra string) *config.Run {
	t.Helper()
	run, err := config.ParseRun(strings.NewReader(`
kind: ema_cross
axes:
  - name: fast
    values: [5, 10]
  - name: slow
    values: [20, 40]
` + extra))
	require.NoError(t, err)
	return run
}

func TestWire(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &config.Config{DataDir: tmpDir, Workers: 2, Resolver: signals.ResolverFast}

	container, err := Wire(cfg, testRun(t, ""), filepath.Join(tmpDir, "screener.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.NotNil(t, container.ScreenerDB)
	assert.NotNil(t, container.SweepRepo)
	assert.NotNil(t, container.ScreeningService)
	assert.Equal(t, 2, container.WorkerPool.Size())
	assert.Equal(t, signals.ResolverFast, container.Evaluator.Resolver().Name())
	assert.FileExists(t, filepath.Join(tmpDir, "screener.db"))
}

func TestWire_WithoutDatabase(t *testing.T) {
	cfg := &config.Config{Workers: 1, Resolver: signals.ResolverFast}

	container, err := Wire(cfg, testRun(t, "resolver: portable\n"), "", zerolog.Nop())
	require.NoError(t, err)

	assert.Nil(t, container.ScreenerDB)
	assert.Nil(t, container.SweepRepo)
	assert.NoError(t, container.Close())
	// the run file overrides the environment
	assert.Equal(t, signals.ResolverPortable, container.Evaluator.Resolver().Name())
}

func TestWire_InvalidResolver(t *testing.T) {
	cfg := &config.Config{Workers: 1, Resolver: "simd"}

	_, err := Wire(cfg, testRun(t, ""), "", zerolog.Nop())
	assert.Error(t, err)
}
