package crosscheck

import (
	"testing"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/modules/backtest"
	"github.com/aristath/screener/internal/modules/returns"
	"github.com/aristath/screener/internal/modules/signals"
	testingpkg "github.com/aristath/screener/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	base := domain.MetricReport{Sharpe: 1.0, TotalReturn: 0.40, NumTrades: 12}

	tests := []struct {
		name      string
		simulated domain.MetricReport
		metrics   []string
	}{
		{"identical", base, nil},
		{"within tolerance", domain.MetricReport{Sharpe: 1.09, TotalReturn: 0.419, NumTrades: 12}, nil},
		{"trade count differs", domain.MetricReport{Sharpe: 1.0, TotalReturn: 0.40, NumTrades: 11}, []string{"num_trades"}},
		{"total return too far", domain.MetricReport{Sharpe: 1.0, TotalReturn: 0.43, NumTrades: 12}, []string{"total_return"}},
		{"sharpe too far", domain.MetricReport{Sharpe: 1.2, TotalReturn: 0.40, NumTrades: 12}, []string{"sharpe"}},
		{"everything", domain.MetricReport{Sharpe: -1, TotalReturn: -0.2, NumTrades: 3}, []string{"num_trades", "total_return", "sharpe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, v := range Compare(base, tt.simulated, DefaultTolerance()) {
				got = append(got, v.Metric)
				assert.NotEmpty(t, v.String())
			}
			assert.Equal(t, tt.metrics, got)
		})
	}
}

func TestCompare_ZeroTotalReturn(t *testing.T) {
	zero := domain.MetricReport{}
	assert.Empty(t, Compare(zero, zero, DefaultTolerance()))

	off := domain.MetricReport{TotalReturn: 0.001}
	assert.Len(t, Compare(zero, off, DefaultTolerance()), 1)
}

func newChecker(t *testing.T, opts returns.Options) *Checker {
	t.Helper()
	e, err := backtest.NewEvaluator(nil, opts, zerolog.Nop())
	require.NoError(t, err)
	c, err := NewChecker(e, DefaultTolerance(), zerolog.Nop())
	require.NoError(t, err)
	return c
}

// Five years of daily bars with a mean-reverting pattern, screened with RSI(14)
func TestChecker_RSIMeanRevertingScenario(t *testing.T) {
	prices := testingpkg.MeanRevertingPrices(1260, 42)
	rule, err := signals.NewRule(signals.KindRSIReversion, map[string]float64{"period": 14, "entry": 30, "exit": 70})
	require.NoError(t, err)

	tests := []struct {
		name        string
		opts        returns.Options
		trades      int
		totalReturn float64
	}{
		{"next_open", returns.DefaultOptions(), 18, 1.7707672751},
		{"close", returns.Options{Timing: domain.FillClose, Slippage: returns.DefaultSlippage}, 18, 1.8329190934},
		{"next_open without slippage", returns.Options{Timing: domain.FillNextOpen, Slippage: 0}, 18, 1.8694597974},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := newChecker(t, tt.opts).Check(prices, rule)
			require.NoError(t, err)

			assert.Equal(t, tt.trades, out.Vectorized.NumTrades)
			assert.Equal(t, tt.trades, out.Simulated.NumTrades)
			assert.InDelta(t, tt.totalReturn, out.Vectorized.TotalReturn, 1e-6)
			assert.InEpsilon(t, 1+out.Vectorized.TotalReturn, 1+out.Simulated.TotalReturn, 1e-9)
			assert.InDelta(t, out.Vectorized.Sharpe, out.Simulated.Sharpe, 0.1)
			assert.True(t, out.Passed(), "%v", out.Violations)
		})
	}
}

func TestChecker_EMACross(t *testing.T) {
	prices := testingpkg.RandomWalkPrices(1260, 5)
	rule, err := signals.NewRule(signals.KindEMACross, map[string]float64{"fast": 10, "slow": 40})
	require.NoError(t, err)

	out, err := newChecker(t, returns.DefaultOptions()).Check(prices, rule)
	require.NoError(t, err)
	assert.True(t, out.Passed(), "%v", out.Violations)
}

func TestChecker_UnsupportedRule(t *testing.T) {
	prices := testingpkg.MeanRevertingPrices(300, 1)
	rule, err := signals.NewRule(signals.KindBollingerReversion, map[string]float64{"period": 20, "k": 2})
	require.NoError(t, err)

	_, err = newChecker(t, returns.DefaultOptions()).Check(prices, rule)
	assert.ErrorIs(t, err, domain.ErrUnknownRule)
}
