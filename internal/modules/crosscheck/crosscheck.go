// Package crosscheck holds the tolerance contract between the vectorized
// evaluator and the event-driven simulator.
package crosscheck

import (
	"fmt"
	"math"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/modules/backtest"
	"github.com/aristath/screener/internal/modules/signals"
	"github.com/aristath/screener/internal/modules/simulator"
	"github.com/rs/zerolog"
)

// Tolerance bounds the disagreement allowed between the two engines.
// Trade counts must always match exactly.
type Tolerance struct {
	TotalReturnRel float64 `yaml:"total_return_rel" validate:"gte=0"`
	SharpeAbs      float64 `yaml:"sharpe_abs" validate:"gte=0"`
}

// DefaultTolerance is 5% relative on total return and 0.1 absolute on Sharpe
func DefaultTolerance() Tolerance {
	return Tolerance{TotalReturnRel: 0.05, SharpeAbs: 0.1}
}

// Violation is one broken bound
type Violation struct {
	Metric     string
	Vectorized float64
	Simulated  float64
	Limit      float64
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: vectorized=%.6g simulated=%.6g (limit %.6g)", v.Metric, v.Vectorized, v.Simulated, v.Limit)
}

// Compare checks simulated against vectorized. Total return is compared
// relative to the vectorized value; two returns within 1e-12 of each other
// always agree.
func Compare(vectorized, simulated domain.MetricReport, tol Tolerance) []Violation {
	var out []Violation

	if vectorized.NumTrades != simulated.NumTrades {
		out = append(out, Violation{
			Metric:     "num_trades",
			Vectorized: float64(vectorized.NumTrades),
			Simulated:  float64(simulated.NumTrades),
		})
	}

	diff := math.Abs(vectorized.TotalReturn - simulated.TotalReturn)
	limit := tol.TotalReturnRel * math.Abs(vectorized.TotalReturn)
	if diff > 1e-12 && diff > limit {
		out = append(out, Violation{
			Metric:     "total_return",
			Vectorized: vectorized.TotalReturn,
			Simulated:  simulated.TotalReturn,
			Limit:      limit,
		})
	}

	if math.Abs(vectorized.Sharpe-simulated.Sharpe) > tol.SharpeAbs {
		out = append(out, Violation{
			Metric:     "sharpe",
			Vectorized: vectorized.Sharpe,
			Simulated:  simulated.Sharpe,
			Limit:      tol.SharpeAbs,
		})
	}

	return out
}

// Outcome is the result of running both engines on one rule
type Outcome struct {
	Vectorized domain.MetricReport
	Simulated  domain.MetricReport
	Violations []Violation
}

// Passed reports whether the engines agree within tolerance
func (o Outcome) Passed() bool {
	return len(o.Violations) == 0
}

// Checker runs a rule through both engines with the same fill options
type Checker struct {
	evaluator *backtest.Evaluator
	simulator *simulator.Simulator
	tol       Tolerance
	log       zerolog.Logger
}

// NewChecker creates a checker whose simulator uses the evaluator's fill options
func NewChecker(evaluator *backtest.Evaluator, tol Tolerance, log zerolog.Logger) (*Checker, error) {
	sim, err := simulator.New(evaluator.Options(), log)
	if err != nil {
		return nil, err
	}
	return &Checker{
		evaluator: evaluator,
		simulator: sim,
		tol:       tol,
		log:       log.With().Str("component", "crosscheck").Logger(),
	}, nil
}

// Check evaluates rule on prices with both engines and compares the reports
func (c *Checker) Check(prices domain.PriceSeries, rule signals.Rule) (Outcome, error) {
	run, err := c.evaluator.Evaluate(prices, rule)
	if err != nil {
		return Outcome{}, fmt.Errorf("vectorized run failed: %w", err)
	}
	sim, err := c.simulator.Run(prices, rule)
	if err != nil {
		return Outcome{}, fmt.Errorf("simulated run failed: %w", err)
	}

	out := Outcome{
		Vectorized: run.Report,
		Simulated:  sim.Report,
		Violations: Compare(run.Report, sim.Report, c.tol),
	}

	if out.Passed() {
		c.log.Info().
			Str("kind", string(rule.Kind())).
			Int("trades", run.Report.NumTrades).
			Msg("Engines agree")
	} else {
		for _, v := range out.Violations {
			c.log.Warn().Str("kind", string(rule.Kind())).Str("violation", v.String()).Msg("Engines diverge")
		}
	}
	return out, nil
}
