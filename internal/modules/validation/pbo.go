package validation

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/pkg/formulas"
	"gonum.org/v1/gonum/mat"
)

const (
	// WarningIdenticalColumns is reported when every strategy column is the same
	WarningIdenticalColumns = "all strategy columns are numerically identical; in-sample selection is arbitrary and PBO is undefined"
	// WarningArbitrarySelection is reported when all columns share the
	// in-sample maximum in every combination, typically because every
	// strategy lost money in sample and its Sharpe was floored to zero.
	WarningArbitrarySelection = "all strategies tie for the in-sample maximum in every combination; selection is arbitrary and PBO is undefined"
	// WarningFrequentTies is reported when more than half of the combinations
	// selected among tied columns. PBO is still reported.
	WarningFrequentTies = "most combinations selected among tied in-sample Sharpe ratios; PBO is biased toward the lowest column index"
)

// PBOResult is the CSCV outcome over a ReturnMatrix
type PBOResult struct {
	// PBO is the fraction of combinations whose logit is negative. NaN when
	// Defined is false.
	PBO     float64 `msgpack:"pbo" json:"pbo"`
	Defined bool    `msgpack:"defined" json:"defined"`
	Warning string  `msgpack:"warning,omitempty" json:"warning,omitempty"`

	NumStrategies   int `msgpack:"num_strategies" json:"num_strategies"`
	NumBlocks       int `msgpack:"num_blocks" json:"num_blocks"`
	NumCombinations int `msgpack:"num_combinations" json:"num_combinations"`

	// Per combination, in combination index order
	Logits    []float64 `msgpack:"logits" json:"logits"`
	Selected  []int     `msgpack:"selected" json:"selected"`     // in-sample argmax column
	ISSharpe  []float64 `msgpack:"is_sharpe" json:"is_sharpe"`   // Sharpe of the selected column in sample
	OOSSharpe []float64 `msgpack:"oos_sharpe" json:"oos_sharpe"` // Sharpe of the selected column out of sample

	// ISTies counts combinations where several columns shared the in-sample maximum
	ISTies int `msgpack:"is_ties" json:"is_ties"`
	// ProbOOSLoss is the fraction of combinations where the selected column
	// lost money out of sample
	ProbOOSLoss float64 `msgpack:"prob_oos_loss" json:"prob_oos_loss"`
}

// PBO runs combinatorially symmetric cross-validation over m (T rows, one
// column per strategy) and returns the probability of backtest overfitting.
//
// For every split of the blocks into equal in-sample and out-of-sample
// halves, the column with the best in-sample Sharpe (lowest index on ties)
// is located in the out-of-sample ranking. Its rank is the mid-rank among
// the N columns, worst = 1, minus one half:
//
//	r = #below + #tied/2 + 0.5,   r in [0.5, N-0.5]
//	λ = ln(r / (N - r))
//
// so the top rank never divides by zero and a median rank gives λ = 0.
func (e *Engine) PBO(m *mat.Dense, cfg Config) (PBOResult, error) {
	p, err := partitionFor(m, cfg)
	if err != nil {
		return PBOResult{}, err
	}
	_, n := m.Dims()
	if n < 2 {
		return PBOResult{}, fmt.Errorf("%w: PBO needs at least 2 strategy columns, got %d", domain.ErrShapeMismatch, n)
	}
	cols, err := columns(m)
	if err != nil {
		return PBOResult{}, err
	}

	numComb := p.NumCombinations()
	result := PBOResult{
		NumStrategies:   n,
		NumBlocks:       len(p.Blocks),
		NumCombinations: numComb,
	}

	if identicalColumns(cols, p.Blocks[0].Start) {
		result.PBO = math.NaN()
		result.Warning = WarningIdenticalColumns
		e.log.Warn().
			Int("strategies", n).
			Int("rows", p.Rows).
			Msg("PBO undefined: identical strategy columns")
		return result, nil
	}

	start := time.Now()
	result.Logits = make([]float64, numComb)
	result.Selected = make([]int, numComb)
	result.ISSharpe = make([]float64, numComb)
	result.OOSSharpe = make([]float64, numComb)
	ties := make([]int, numComb)
	lost := make([]bool, numComb)

	buffers := e.newScratch(p, n)
	e.pool.Run(numComb, func(worker, c int) {
		sc := &buffers[worker]
		sc.is, sc.oos = p.Split(c, sc.is, sc.oos)

		for j, col := range cols {
			sc.isRows = p.gather(col, sc.is, sc.isRows)
			sc.oosRows = p.gather(col, sc.oos, sc.oosRows)
			sc.isSharpe[j] = formulas.CalculateSharpeRatio(sc.isRows)
			sc.oosSharpe[j] = formulas.CalculateSharpeRatio(sc.oosRows)
		}

		best, shared := argmax(sc.isSharpe)
		rank := midRank(sc.oosSharpe, best)

		result.Selected[c] = best
		result.ISSharpe[c] = sc.isSharpe[best]
		result.OOSSharpe[c] = sc.oosSharpe[best]
		result.Logits[c] = math.Log(rank / (float64(n) - rank))
		ties[c] = shared

		sc.oosRows = p.gather(cols[best], sc.oos, sc.oosRows)
		lost[c] = formulas.TotalReturn(sc.oosRows) < 0
	}, nil)

	below, losses, allTied := 0, 0, 0
	for c, l := range result.Logits {
		if l < 0 {
			below++
		}
		if lost[c] {
			losses++
		}
		if ties[c] > 1 {
			result.ISTies++
		}
		if ties[c] == n {
			allTied++
		}
	}
	result.ProbOOSLoss = float64(losses) / float64(numComb)

	if allTied == numComb {
		result.PBO = math.NaN()
		result.Warning = WarningArbitrarySelection
		e.log.Warn().
			Int("strategies", n).
			Int("combinations", numComb).
			Msg("PBO undefined: every combination tied for the in-sample maximum")
		return result, nil
	}

	result.PBO = float64(below) / float64(numComb)
	result.Defined = true
	if 2*result.ISTies > numComb {
		result.Warning = WarningFrequentTies
		e.log.Warn().
			Int("is_ties", result.ISTies).
			Int("combinations", numComb).
			Msg("In-sample selection tied in most combinations")
	}

	e.log.Info().
		Int("strategies", n).
		Int("blocks", len(p.Blocks)).
		Int("combinations", numComb).
		Int("is_ties", result.ISTies).
		Float64("pbo", result.PBO).
		Dur("duration", time.Since(start)).
		Msg("CSCV completed")

	return result, nil
}

// argmax returns the first index of the maximum and how many entries share it
func argmax(values []float64) (best, ties int) {
	for j, v := range values {
		switch {
		case j == 0 || v > values[best]:
			best, ties = j, 1
		case v == values[best]:
			ties++
		}
	}
	return best, ties
}

// midRank returns the rank of values[k] among values, worst = 0.5, best = N-0.5,
// with ties sharing the average rank.
func midRank(values []float64, k int) float64 {
	below, tied := 0, 0
	for j, v := range values {
		if j == k {
			continue
		}
		if v < values[k] {
			below++
		} else if v == values[k] {
			tied++
		}
	}
	return float64(below) + float64(tied)/2 + 0.5
}

// identicalColumns reports whether every column equals the first from row start on
func identicalColumns(cols [][]float64, start int) bool {
	for _, col := range cols[1:] {
		for i := start; i < len(col); i++ {
			v := col[i]
			if v != cols[0][i] {
				return false
			}
		}
	}
	return true
}
