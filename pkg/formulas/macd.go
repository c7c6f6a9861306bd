package formulas

import "github.com/markcheno/go-talib"

// MACDSeries holds the MACD line, its signal line and the histogram, each
// aligned with the input closes.
type MACDSeries struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// CalculateMACDSeries calculates MACD(fast, slow, signal) for every bar.
// Fast and slow are swapped when given in the wrong order.
//
// Formula:
//
//	Line      = EMA(fast) - EMA(slow)
//	Signal    = EMA(Line, signal)
//	Histogram = Line - Signal
func CalculateMACDSeries(closes []float64, fast, slow, signal int) MACDSeries {
	if slow < fast {
		fast, slow = slow, fast
	}
	lookback := (slow - 1) + (signal - 1)
	if fast < 2 || signal < 2 || len(closes) <= lookback+1 {
		n := len(closes)
		return MACDSeries{Line: nanSeries(n), Signal: nanSeries(n), Histogram: nanSeries(n)}
	}

	line, sig, hist := talib.Macd(closes, fast, slow, signal)
	return MACDSeries{
		Line:      maskWarmup(line, lookback),
		Signal:    maskWarmup(sig, lookback),
		Histogram: maskWarmup(hist, lookback),
	}
}
