package domain

import (
	"fmt"
	"math"
)

// PriceSeries holds aligned OHLCV arrays indexed by trading-day position.
// It is owned by the caller and treated as immutable by the screener.
type PriceSeries struct {
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// Len returns the number of bars
func (p PriceSeries) Len() int {
	return len(p.Close)
}

// Validate checks that all arrays are aligned and prices are positive and finite.
// Volume may be omitted (nil).
func (p PriceSeries) Validate() error {
	n := len(p.Close)
	if len(p.Open) != n || len(p.High) != n || len(p.Low) != n {
		return fmt.Errorf("%w: open=%d high=%d low=%d close=%d",
			ErrShapeMismatch, len(p.Open), len(p.High), len(p.Low), n)
	}
	if p.Volume != nil && len(p.Volume) != n {
		return fmt.Errorf("%w: volume=%d close=%d", ErrShapeMismatch, len(p.Volume), n)
	}
	for i := 0; i < n; i++ {
		for _, v := range [...]float64{p.Open[i], p.High[i], p.Low[i], p.Close[i]} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
				return fmt.Errorf("%w: bar %d has price %v", ErrNonFinite, i, v)
			}
		}
	}
	return nil
}

// FromCloses builds a series where every OHLC field equals the close.
func FromCloses(closes []float64) PriceSeries {
	return PriceSeries{Open: closes, High: closes, Low: closes, Close: closes}
}
