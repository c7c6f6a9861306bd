package simulator

import (
	"testing"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/modules/returns"
	"github.com/aristath/screener/internal/modules/signals"
	testingpkg "github.com/aristath/screener/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSimulator(t *testing.T, opts returns.Options) *Simulator {
	t.Helper()
	s, err := New(opts, zerolog.Nop())
	require.NoError(t, err)
	return s
}

// prices that fall for five bars, then rise for five
func vShape() domain.PriceSeries {
	closes := []float64{100, 98, 96, 94, 92, 90, 92, 94, 96, 98, 100, 102}
	opens := make([]float64, len(closes))
	opens[0] = closes[0]
	for i := 1; i < len(closes); i++ {
		opens[i] = closes[i-1]
	}
	return domain.PriceSeries{Open: opens, High: closes, Low: closes, Close: closes}
}

func TestRun_NextOpenFills(t *testing.T) {
	s := newSimulator(t, returns.Options{Timing: domain.FillNextOpen, Slippage: 0})
	rule := signals.RSIReversion{Period: 3, Entry: 10, Exit: 90}

	res, err := s.Run(vShape(), rule)
	require.NoError(t, err)

	// RSI is 0 from bar 1 while prices fall, and 100 once they rise long enough
	require.NotEmpty(t, res.Orders)
	first := res.Orders[0]
	assert.Equal(t, Buy, first.Side)
	assert.Equal(t, 1, first.SignalBar)
	assert.Equal(t, 2, first.FillBar)
	assert.Equal(t, 98.0, first.Price)

	for _, o := range res.Orders {
		assert.Equal(t, o.SignalBar+1, o.FillBar)
	}
	assert.Len(t, res.Returns, 12)
	assert.Len(t, res.Equity, 12)
	assert.Equal(t, 1.0, res.Equity[0])
	assert.NoError(t, res.Report.Validate())
}

func TestRun_CloseFillsWithSlippage(t *testing.T) {
	s := newSimulator(t, returns.Options{Timing: domain.FillClose, Slippage: 0.01})
	rule := signals.RSIReversion{Period: 3, Entry: 10, Exit: 90}

	res, err := s.Run(vShape(), rule)
	require.NoError(t, err)

	require.NotEmpty(t, res.Orders)
	buy := res.Orders[0]
	assert.Equal(t, buy.SignalBar, buy.FillBar)
	assert.InDelta(t, 98*1.01, buy.Price, 1e-12)
	if len(res.Orders) > 1 {
		sell := res.Orders[1]
		assert.Equal(t, Sell, sell.Side)
		assert.InDelta(t, vShape().Close[sell.FillBar]*0.99, sell.Price, 1e-12)
	}
}

func TestRun_EntryOnLastBarNeverFills(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 90}
	prices := domain.FromCloses(closes)
	s := newSimulator(t, returns.Options{Timing: domain.FillNextOpen, Slippage: 0})

	res, err := s.Run(prices, signals.RSIReversion{Period: 3, Entry: 50, Exit: 99})
	require.NoError(t, err)

	assert.Empty(t, res.Orders)
	assert.Equal(t, domain.MetricReport{}, res.Report)
}

func TestRun_OpenPositionMarkedAtLastClose(t *testing.T) {
	closes := []float64{100, 90, 95, 99, 104}
	prices := domain.FromCloses(closes)
	s := newSimulator(t, returns.Options{Timing: domain.FillClose, Slippage: 0})

	// enters at bar 1 and never exits
	res, err := s.Run(prices, signals.RSIReversion{Period: 3, Entry: 10, Exit: 100})
	require.NoError(t, err)

	require.Len(t, res.Orders, 1)
	assert.Equal(t, 1, res.Report.NumTrades)
	assert.InDelta(t, 104.0/90-1, res.Report.TotalReturn, 1e-12)
	assert.Equal(t, 1.0, res.Report.WinRate)
}

func TestRun_MatchesCompositorOnRandomData(t *testing.T) {
	prices := testingpkg.MeanRevertingPrices(800, 13)
	rule := signals.RSIReversion{Period: 14, Entry: 30, Exit: 70}
	opts := returns.DefaultOptions()

	res, err := newSimulator(t, opts).Run(prices, rule)
	require.NoError(t, err)

	entry, exit := rule.Signals(prices)
	resolution, err := signals.Default().Resolve(entry, exit)
	require.NoError(t, err)
	composed, err := returns.Compose(prices, resolution.States, resolution.Trades, opts)
	require.NoError(t, err)

	require.Len(t, res.Returns, len(composed.Returns))
	for i := range res.Returns {
		assert.InDelta(t, composed.Returns[i], res.Returns[i], 1e-9, "bar %d", i)
	}
	assert.Equal(t, len(composed.Fills), res.Report.NumTrades)
}

func TestRun_Errors(t *testing.T) {
	s := newSimulator(t, returns.DefaultOptions())

	_, err := s.Run(testingpkg.MeanRevertingPrices(50, 1), signals.MACDCross{Fast: 12, Slow: 26, Signal: 9})
	assert.ErrorIs(t, err, domain.ErrUnknownRule)

	_, err = s.Run(testingpkg.MeanRevertingPrices(50, 1), nil)
	assert.ErrorIs(t, err, domain.ErrUnknownRule)

	bad := testingpkg.MeanRevertingPrices(50, 1)
	bad.High = bad.High[:10]
	_, err = s.Run(bad, signals.RSIReversion{Period: 14, Entry: 30, Exit: 70})
	assert.ErrorIs(t, err, domain.ErrShapeMismatch)

	_, err = New(returns.Options{Timing: domain.FillClose, Slippage: 2}, zerolog.Nop())
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}
