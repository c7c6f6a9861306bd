package signals

import (
	"testing"

	"github.com/aristath/screener/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRule(t *testing.T) {
	testCases := []struct {
		name    string
		kind    Kind
		params  map[string]float64
		want    Rule
		wantErr error
	}{
		{"rsi", KindRSIReversion, map[string]float64{"period": 14, "entry": 30, "exit": 70},
			RSIReversion{Period: 14, Entry: 30, Exit: 70}, nil},
		{"rsi fractional period", KindRSIReversion, map[string]float64{"period": 14.5, "entry": 30, "exit": 70},
			nil, domain.ErrInvalidParams},
		{"rsi missing exit", KindRSIReversion, map[string]float64{"period": 14, "entry": 30},
			nil, domain.ErrInvalidParams},
		{"rsi threshold out of range", KindRSIReversion, map[string]float64{"period": 14, "entry": -1, "exit": 70},
			nil, domain.ErrInvalidParams},
		{"ema", KindEMACross, map[string]float64{"fast": 10, "slow": 50}, EMACross{Fast: 10, Slow: 50}, nil},
		{"ema inverted", KindEMACross, map[string]float64{"fast": 50, "slow": 10}, nil, domain.ErrInvalidParams},
		{"macd", KindMACDCross, map[string]float64{"fast": 12, "slow": 26, "signal": 9},
			MACDCross{Fast: 12, Slow: 26, Signal: 9}, nil},
		{"bollinger", KindBollingerReversion, map[string]float64{"period": 20, "k": 2},
			BollingerReversion{Period: 20, K: 2}, nil},
		{"bollinger zero k", KindBollingerReversion, map[string]float64{"period": 20, "k": 0},
			nil, domain.ErrInvalidParams},
		{"unknown", Kind("turtle"), map[string]float64{}, nil, domain.ErrUnknownRule},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rule, err := NewRule(tc.kind, tc.params)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, rule)
			assert.Equal(t, tc.kind, rule.Kind())
			assert.Equal(t, tc.params, rule.Params())
		})
	}
}

func TestParamNames(t *testing.T) {
	for _, kind := range Kinds() {
		names, err := ParamNames(kind)
		require.NoError(t, err)
		assert.IsNonDecreasing(t, names)
	}
	_, err := ParamNames("nope")
	assert.ErrorIs(t, err, domain.ErrUnknownRule)
}

func TestRSIReversion_NeverFiresOnUndefinedBar(t *testing.T) {
	// Entry threshold 100 fires on every defined bar, never on bar 0
	rule := RSIReversion{Period: 3, Entry: 100, Exit: 100}
	prices := domain.FromCloses([]float64{10, 9, 8, 9, 10})

	entry, exit := rule.Signals(prices)

	require.Len(t, entry, 5)
	assert.False(t, entry[0])
	assert.False(t, exit[0])
	assert.True(t, entry[1])
}

func TestEMACross_Signals(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 12, 14, 16, 14, 10, 8, 6, 6}
	entry, exit := EMACross{Fast: 2, Slow: 4}.Signals(domain.FromCloses(closes))

	require.Len(t, entry, len(closes))
	firstEntry, firstExit := -1, -1
	for i := range closes {
		if entry[i] && firstEntry < 0 {
			firstEntry = i
		}
		if exit[i] && firstExit < 0 {
			firstExit = i
		}
		assert.False(t, entry[i] && exit[i], "bar %d cannot cross both ways", i)
	}
	assert.Equal(t, 4, firstEntry)
	assert.Greater(t, firstExit, firstEntry)
}

func TestBollingerReversion_Signals(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
		if i%2 == 1 {
			closes[i] = 101
		}
	}
	closes[25] = 90 // far below the lower band
	closes[27] = 101

	entry, exit := BollingerReversion{Period: 20, K: 2}.Signals(domain.FromCloses(closes))

	for i := 0; i < 19; i++ {
		assert.False(t, entry[i])
		assert.False(t, exit[i])
	}
	assert.True(t, entry[25])
	assert.True(t, exit[27])
}
