package sweep

import (
	"testing"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/modules/backtest"
	"github.com/aristath/screener/internal/modules/returns"
	"github.com/aristath/screener/internal/modules/signals"
	testingpkg "github.com/aristath/screener/internal/testing"
	"github.com/aristath/screener/internal/workers"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSweeper(t *testing.T, workerCount int) *Sweeper {
	t.Helper()
	e, err := backtest.NewEvaluator(nil, returns.DefaultOptions(), zerolog.Nop())
	require.NoError(t, err)
	return NewSweeper(e, workers.NewWorkerPool(workerCount), zerolog.Nop())
}

func rsiGrid() Grid {
	return NewGrid(map[string][]float64{
		"period": {7, 14, 21},
		"entry":  {20, 25, 30, 35},
		"exit":   {65, 70},
	})
}

func TestSweeper_SortedBySharpeDescending(t *testing.T) {
	s := newSweeper(t, 4)
	prices := testingpkg.MeanRevertingPrices(1260, 42)

	result, err := s.Run(prices, signals.KindRSIReversion, rsiGrid())
	require.NoError(t, err)

	require.Len(t, result.Rows, 24)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, 1260, result.NumBars)
	for i := 1; i < len(result.Rows); i++ {
		prev, cur := result.Rows[i-1], result.Rows[i]
		assert.GreaterOrEqual(t, prev.Report.Sharpe, cur.Report.Sharpe)
		if prev.Report.Sharpe == cur.Report.Sharpe {
			// stable: ties keep grid order
			assert.Less(t, prev.Point.Ordinal, cur.Point.Ordinal)
		}
	}

	best, ok := result.Best()
	require.True(t, ok)
	assert.Equal(t, result.Rows[0], best)
}

func TestSweeper_MatchesSingleRuns(t *testing.T) {
	s := newSweeper(t, 3)
	prices := testingpkg.MeanRevertingPrices(500, 9)
	grid := rsiGrid()

	result, err := s.Run(prices, signals.KindRSIReversion, grid)
	require.NoError(t, err)

	e, err := backtest.NewEvaluator(nil, returns.DefaultOptions(), zerolog.Nop())
	require.NoError(t, err)
	for _, row := range result.Rows {
		run, err := e.EvaluateParams(prices, signals.KindRSIReversion, row.Point.Params)
		require.NoError(t, err)
		assert.Equal(t, run.Report, row.Report)
		assert.Equal(t, grid.Point(row.Point.Ordinal).Params, row.Point.Params)
	}
}

func TestSweeper_WorkerCountDoesNotChangeResult(t *testing.T) {
	prices := testingpkg.MeanRevertingPrices(400, 11)

	a, err := newSweeper(t, 1).Run(prices, signals.KindRSIReversion, rsiGrid())
	require.NoError(t, err)
	b, err := newSweeper(t, 8).Run(prices, signals.KindRSIReversion, rsiGrid())
	require.NoError(t, err)

	assert.Equal(t, a.Rows, b.Rows)
}

func TestSweeper_EmptyGrid(t *testing.T) {
	s := newSweeper(t, 2)
	prices := testingpkg.MeanRevertingPrices(100, 1)

	for _, grid := range []Grid{
		NewGrid(nil),
		NewGrid(map[string][]float64{"period": {14}, "entry": {}, "exit": {70}}),
	} {
		result, err := s.Run(prices, signals.KindRSIReversion, grid)
		require.NoError(t, err)
		assert.Empty(t, result.Rows)
		_, ok := result.Best()
		assert.False(t, ok)

		_, err = result.ReturnMatrix()
		assert.ErrorIs(t, err, domain.ErrShapeMismatch)
	}
}

func TestSweeper_SkipsInvalidPoints(t *testing.T) {
	s := newSweeper(t, 2)
	prices := testingpkg.MeanRevertingPrices(300, 2)
	grid := NewGrid(map[string][]float64{
		"fast": {5, 10, 20},
		"slow": {10, 30},
	})

	result, err := s.Run(prices, signals.KindEMACross, grid)
	require.NoError(t, err)

	// fast=10,slow=10 and fast=20,slow=10 are rejected
	assert.Len(t, result.Rows, 4)
	assert.Len(t, result.Skipped, 2)
}

func TestSweeper_Errors(t *testing.T) {
	s := newSweeper(t, 2)
	prices := testingpkg.MeanRevertingPrices(100, 1)

	_, err := s.Run(prices, "momentum", rsiGrid())
	assert.ErrorIs(t, err, domain.ErrUnknownRule)

	_, err = s.Run(prices, signals.KindRSIReversion, NewGrid(map[string][]float64{"period": {14}}))
	assert.ErrorIs(t, err, domain.ErrInvalidParams)

	bad := prices
	bad.Close = bad.Close[:50]
	_, err = s.Run(bad, signals.KindRSIReversion, rsiGrid())
	assert.ErrorIs(t, err, domain.ErrShapeMismatch)
}

func TestSweeper_ProgressCallback(t *testing.T) {
	s := newSweeper(t, 4)
	calls := 0
	s.SetProgressCallback(func(current, total int, _ string) {
		calls++
		assert.Equal(t, 24, total)
	})

	_, err := s.Run(testingpkg.MeanRevertingPrices(200, 3), signals.KindRSIReversion, rsiGrid())
	require.NoError(t, err)
	assert.Equal(t, 24, calls)
}

func TestResult_ReturnMatrixInGridOrder(t *testing.T) {
	s := newSweeper(t, 4)
	prices := testingpkg.MeanRevertingPrices(300, 4)

	result, err := s.Run(prices, signals.KindRSIReversion, rsiGrid())
	require.NoError(t, err)

	m, err := result.ReturnMatrix()
	require.NoError(t, err)
	rows, cols := m.Dims()
	assert.Equal(t, 300, rows)
	assert.Equal(t, 24, cols)

	for _, row := range result.Rows {
		j := row.Point.Ordinal
		for i := 0; i < rows; i += 37 {
			assert.Equal(t, row.Returns[i], m.At(i, j))
		}
	}
}
