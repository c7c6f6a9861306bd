package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// CalculateEMASeries calculates the Exponential Moving Average for every bar
//
// EMA Formula:
//
//	EMA_today = (Price_today × multiplier) + (EMA_yesterday × (1 - multiplier))
//	where multiplier = 2 / (period + 1), seeded with the SMA of the first period
//
// Warm-up bars are NaN. Fewer closes than period yields all NaN.
func CalculateEMASeries(closes []float64, period int) []float64 {
	if period == 1 {
		return copySeries(closes)
	}
	if period < 1 || len(closes) < period {
		return nanSeries(len(closes))
	}
	return maskWarmup(talib.Ema(closes, period), period-1)
}

// CalculateSMASeries calculates the Simple Moving Average for every bar.
func CalculateSMASeries(closes []float64, period int) []float64 {
	if period == 1 {
		return copySeries(closes)
	}
	if period < 1 || len(closes) < period {
		return nanSeries(len(closes))
	}
	return maskWarmup(talib.Sma(closes, period), period-1)
}

// nanSeries returns a slice of n NaNs.
func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func copySeries(in []float64) []float64 {
	out := make([]float64, len(in))
	copy(out, in)
	return out
}

// maskWarmup overwrites the first lookback values, which talib leaves as
// zeros, with NaN.
func maskWarmup(series []float64, lookback int) []float64 {
	for i := 0; i < lookback && i < len(series); i++ {
		series[i] = math.NaN()
	}
	return series
}

// StreamingEMA computes the EMA one close at a time with the same seeding
// as CalculateEMASeries: the SMA of the first period closes, then
// EMA = (close - EMA)·k + EMA.
type StreamingEMA struct {
	period int
	k      float64
	sum    float64
	count  int
	value  float64
}

// NewStreamingEMA returns a StreamingEMA for the given period.
func NewStreamingEMA(period int) *StreamingEMA {
	return &StreamingEMA{period: period, k: 2 / float64(period+1), value: math.NaN()}
}

// Update feeds the next close and returns the current EMA (NaN during warm-up).
func (s *StreamingEMA) Update(close float64) float64 {
	s.count++
	switch {
	case s.period < 1:
		return math.NaN()
	case s.period == 1:
		s.value = close
	case s.count < s.period:
		s.sum += close
	case s.count == s.period:
		s.sum += close
		s.value = s.sum / float64(s.period)
	default:
		s.value = (close-s.value)*s.k + s.value
	}
	return s.value
}

// Value returns the current EMA without consuming a close.
func (s *StreamingEMA) Value() float64 {
	return s.value
}
