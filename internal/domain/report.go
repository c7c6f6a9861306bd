package domain

import (
	"fmt"
	"math"
)

// MetricReport is the scalar performance bundle for one run.
// It is built once from a return series and never mutated.
type MetricReport struct {
	Sharpe      float64 `json:"sharpe"`
	CAGR        float64 `json:"cagr"`
	MaxDrawdown float64 `json:"max_drawdown"` // positive magnitude
	TotalReturn float64 `json:"total_return"`
	NumTrades   int     `json:"num_trades"`
	WinRate     float64 `json:"win_rate"` // 0.0 to 1.0
}

// Validate returns ErrNonFinite if any field is NaN or Inf
func (r MetricReport) Validate() error {
	fields := [...]struct {
		name  string
		value float64
	}{
		{"sharpe", r.Sharpe},
		{"cagr", r.CAGR},
		{"max_drawdown", r.MaxDrawdown},
		{"total_return", r.TotalReturn},
		{"win_rate", r.WinRate},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s=%v", ErrNonFinite, f.name, f.value)
		}
	}
	return nil
}
