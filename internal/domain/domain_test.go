package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceSeries_Validate(t *testing.T) {
	good := FromCloses([]float64{1, 2, 3})
	require.NoError(t, good.Validate())
	assert.Equal(t, 3, good.Len())

	misaligned := PriceSeries{
		Open:  []float64{1, 2},
		High:  []float64{1, 2, 3},
		Low:   []float64{1, 2, 3},
		Close: []float64{1, 2, 3},
	}
	assert.True(t, errors.Is(misaligned.Validate(), ErrShapeMismatch))

	withVolume := good
	withVolume.Volume = []float64{10}
	assert.True(t, errors.Is(withVolume.Validate(), ErrShapeMismatch))

	bad := FromCloses([]float64{1, math.NaN(), 3})
	assert.True(t, errors.Is(bad.Validate(), ErrNonFinite))
}

func TestParseFillTiming(t *testing.T) {
	testCases := []struct {
		in      string
		want    FillTiming
		wantErr bool
	}{
		{"close", FillClose, false},
		{"immediate", FillClose, false},
		{"next_open", FillNextOpen, false},
		{"vwap", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseFillTiming(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParams)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
	assert.Equal(t, 0, FillClose.Delay())
	assert.Equal(t, 1, FillNextOpen.Delay())
}

func TestMetricReport_Validate(t *testing.T) {
	assert.NoError(t, MetricReport{Sharpe: 1.2, NumTrades: 3}.Validate())
	assert.ErrorIs(t, MetricReport{CAGR: math.Inf(1)}.Validate(), ErrNonFinite)
	assert.ErrorIs(t, MetricReport{WinRate: math.NaN()}.Validate(), ErrNonFinite)
}

func TestPositionState_String(t *testing.T) {
	assert.Equal(t, "FLAT", Flat.String())
	assert.Equal(t, "IN_POSITION", InPosition.String())
	assert.True(t, TradeSpan{EntryBar: 3, ExitBar: NoExit}.Open())
	assert.False(t, TradeSpan{EntryBar: 3, ExitBar: 5}.Open())
}
