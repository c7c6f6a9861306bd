package formulas

import (
	"github.com/markcheno/go-talib"
)

// BollingerSeries represents Bollinger Bands values for every bar
type BollingerSeries struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// CalculateBollingerSeries calculates Bollinger Bands for every bar
//
// Bollinger Bands Formula:
//
//	Middle Band = period SMA
//	Upper Band = Middle + (k × population std deviation)
//	Lower Band = Middle - (k × population std deviation)
//
// Warm-up bars are NaN.
func CalculateBollingerSeries(closes []float64, period int, k float64) BollingerSeries {
	if period < 2 || len(closes) < period {
		n := len(closes)
		return BollingerSeries{Upper: nanSeries(n), Middle: nanSeries(n), Lower: nanSeries(n)}
	}

	// MAType SMA for the middle band
	upper, middle, lower := talib.BBands(closes, period, k, k, talib.SMA)
	return BollingerSeries{
		Upper:  maskWarmup(upper, period-1),
		Middle: maskWarmup(middle, period-1),
		Lower:  maskWarmup(lower, period-1),
	}
}
