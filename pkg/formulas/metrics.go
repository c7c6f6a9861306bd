package formulas

import "math"

// zeroVolatility is the tolerance below which volatility is treated as zero.
const zeroVolatility = 1e-15

// EquityCurve compounds per-bar simple returns into an equity curve that
// starts at 1.0. The result has len(returns)+1 points; index 0 is the
// initial equity.
func EquityCurve(returns []float64) []float64 {
	equity := make([]float64, len(returns)+1)
	equity[0] = 1
	for i, r := range returns {
		equity[i+1] = equity[i] * (1 + r)
	}
	return equity
}

// TotalReturn is the compounded return of the whole series.
func TotalReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	cumulative := 1.0
	for _, r := range returns {
		cumulative *= 1 + r
	}
	return cumulative - 1
}

// CalculateCAGRFromEquity annualizes the growth from initialEquity to
// finalEquity over numPeriods daily bars.
//
// Formula:
//
//	total = final/initial - 1
//	CAGR  = (1 + total)^(252/numPeriods) - 1   when total > 0
//	CAGR  = 0                                   when total <= 0
//
// Total loss and breakeven both report zero growth.
func CalculateCAGRFromEquity(initialEquity, finalEquity float64, numPeriods int) float64 {
	if numPeriods <= 0 || initialEquity <= 0 {
		return 0
	}
	total := finalEquity/initialEquity - 1
	if !(total > 0) {
		return 0
	}
	return math.Pow(1+total, TradingDaysPerYear/float64(numPeriods)) - 1
}

// CalculateCAGR calculates the compound annual growth rate of a series of
// daily returns.
func CalculateCAGR(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return CalculateCAGRFromEquity(1, 1+TotalReturn(returns), len(returns))
}

// CalculateSharpeRatio calculates the Sharpe Ratio used across the screener
//
// Sharpe Ratio Formula:
//
//	Sharpe = CAGR / AnnualizedVolatility
//
// Volatility below 1e-15 yields 0, never ±Inf or NaN.
func CalculateSharpeRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	vol := AnnualizedVolatility(returns)
	if !(vol >= zeroVolatility) {
		return 0
	}
	return CalculateCAGR(returns) / vol
}

// CalculateMaxDrawdown calculates the maximum drawdown of the equity curve
// implied by returns.
//
// Drawdown Formula:
//
//	Drawdown = (Peak Value - Current Value) / Peak Value
//	Max Drawdown = Maximum of all drawdowns
//
// Reported as a positive magnitude (0.25 = 25% loss from peak).
func CalculateMaxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	maxDrawdown := 0.0
	peak := 1.0
	equity := 1.0

	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			drawdown := math.Abs((peak - equity) / peak)
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return maxDrawdown
}
