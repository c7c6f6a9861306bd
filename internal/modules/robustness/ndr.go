// Package robustness judges how fragile a sweep optimum is and combines the
// validation statistics into a verdict.
package robustness

import (
	"fmt"
	"math"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/modules/sweep"
	"github.com/aristath/screener/pkg/formulas"
)

// DefaultDistances are the Chebyshev shells reported by default
var DefaultDistances = []int{1, 2}

// Shell is the neighborhood degradation at one Chebyshev distance
type Shell struct {
	Distance int     `json:"distance"`
	Count    int     `json:"count"` // evaluated grid points at exactly this distance
	Mean     float64 `json:"mean"`  // mean Sharpe over the shell
	Std      float64 `json:"std"`   // population std of Sharpe over the shell
	// NDR = Mean / Sharpe(center). NaN when Defined is false.
	NDR     float64 `json:"ndr"`
	Defined bool    `json:"defined"`
	// CV = Std / Mean. NaN when the shell is empty or its mean is zero.
	CV float64 `json:"cv"`
}

// NDRResult holds the shells around one center point
type NDRResult struct {
	Center       sweep.Point `json:"center"`
	CenterSharpe float64     `json:"center_sharpe"`
	Shells       []Shell     `json:"shells"`
}

// Shell returns the shell at distance d, if computed
func (r NDRResult) Shell(d int) (Shell, bool) {
	for _, s := range r.Shells {
		if s.Distance == d {
			return s, true
		}
	}
	return Shell{}, false
}

// Neighborhood computes the degradation shells around the best row of result.
// distances defaults to DefaultDistances.
func Neighborhood(result sweep.Result, distances ...int) (NDRResult, error) {
	best, ok := result.Best()
	if !ok {
		return NDRResult{}, fmt.Errorf("%w: empty sweep has no optimum", domain.ErrShapeMismatch)
	}
	return NeighborhoodAt(result, best.Point, distances...)
}

// NeighborhoodAt computes the degradation shells around center, which must
// be one of the evaluated rows. Grid points skipped by the sweep do not
// count towards any shell.
func NeighborhoodAt(result sweep.Result, center sweep.Point, distances ...int) (NDRResult, error) {
	if len(distances) == 0 {
		distances = DefaultDistances
	}

	centerSharpe := math.NaN()
	for _, row := range result.Rows {
		if row.Point.Ordinal == center.Ordinal {
			centerSharpe = row.Report.Sharpe
			break
		}
	}
	if math.IsNaN(centerSharpe) {
		return NDRResult{}, fmt.Errorf("%w: point %d is not in the sweep", domain.ErrInvalidParams, center.Ordinal)
	}

	byDistance := make(map[int][]float64, len(distances))
	for _, row := range result.Rows {
		if len(row.Point.Index) != len(center.Index) {
			return NDRResult{}, fmt.Errorf("%w: point %d has %d coordinates, center has %d",
				domain.ErrShapeMismatch, row.Point.Ordinal, len(row.Point.Index), len(center.Index))
		}
		d := sweep.Chebyshev(row.Point.Index, center.Index)
		byDistance[d] = append(byDistance[d], row.Report.Sharpe)
	}

	out := NDRResult{Center: center, CenterSharpe: centerSharpe, Shells: make([]Shell, 0, len(distances))}
	for _, d := range distances {
		out.Shells = append(out.Shells, shellStats(d, byDistance[d], centerSharpe))
	}
	return out, nil
}

func shellStats(d int, sharpes []float64, centerSharpe float64) Shell {
	s := Shell{Distance: d, Count: len(sharpes), NDR: math.NaN(), CV: math.NaN()}
	if len(sharpes) == 0 {
		return s
	}

	s.Mean = formulas.Mean(sharpes)
	s.Std = formulas.PopStdDev(sharpes)
	if centerSharpe != 0 {
		s.NDR = s.Mean / centerSharpe
		s.Defined = true
	}
	if s.Mean != 0 {
		s.CV = s.Std / s.Mean
	}
	return s
}
