package validation

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/pkg/formulas"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// CPCVResult is the out-of-sample Sharpe distribution of one strategy
type CPCVResult struct {
	Mean            float64   `msgpack:"mean" json:"mean"`
	Std             float64   `msgpack:"std" json:"std"` // sample standard deviation
	CILow           float64   `msgpack:"ci_low" json:"ci_low"`
	CIHigh          float64   `msgpack:"ci_high" json:"ci_high"`
	NumBlocks       int       `msgpack:"num_blocks" json:"num_blocks"`
	NumCombinations int       `msgpack:"num_combinations" json:"num_combinations"`
	Sharpes         []float64 `msgpack:"sharpes" json:"sharpes"` // per combination
}

// Width returns the confidence interval width
func (r CPCVResult) Width() float64 {
	return r.CIHigh - r.CILow
}

// z975 is the two-sided 95% normal quantile
var z975 = distuv.UnitNormal.Quantile(0.975)

// CPCV estimates the out-of-sample Sharpe distribution of a single
// strategy. m must have exactly one column: CPCV judges a strategy that has
// already been chosen, it does not choose one.
//
// The 95% interval is for the mean across the M combinations:
//
//	mean ± z(0.975) · std / √M
func (e *Engine) CPCV(m *mat.Dense, cfg Config) (CPCVResult, error) {
	if m != nil && !m.IsEmpty() {
		if _, c := m.Dims(); c != 1 {
			return CPCVResult{}, fmt.Errorf("%w: CPCV takes a single strategy column, got %d", domain.ErrShapeMismatch, c)
		}
	}
	p, err := partitionFor(m, cfg)
	if err != nil {
		return CPCVResult{}, err
	}
	cols, err := columns(m)
	if err != nil {
		return CPCVResult{}, err
	}
	col := cols[0]

	start := time.Now()
	numComb := p.NumCombinations()
	sharpes := make([]float64, numComb)

	buffers := e.newScratch(p, 1)
	e.pool.Run(numComb, func(worker, c int) {
		sc := &buffers[worker]
		sc.is, sc.oos = p.Split(c, sc.is, sc.oos)
		sc.oosRows = p.gather(col, sc.oos, sc.oosRows)
		sharpes[c] = formulas.CalculateSharpeRatio(sc.oosRows)
	}, nil)

	mean := formulas.Mean(sharpes)
	std := formulas.StdDev(sharpes)
	half := z975 * std / math.Sqrt(float64(numComb))

	result := CPCVResult{
		Mean:            mean,
		Std:             std,
		CILow:           mean - half,
		CIHigh:          mean + half,
		NumBlocks:       len(p.Blocks),
		NumCombinations: numComb,
		Sharpes:         sharpes,
	}

	e.log.Info().
		Int("blocks", len(p.Blocks)).
		Int("combinations", numComb).
		Float64("mean", mean).
		Float64("std", std).
		Dur("duration", time.Since(start)).
		Msg("CPCV completed")

	return result, nil
}
