// Package backtest composes indicators, signals, the resolver, the return
// compositor and the reference metrics into one report per rule.
package backtest

import (
	"fmt"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/modules/returns"
	"github.com/aristath/screener/internal/modules/signals"
	"github.com/aristath/screener/pkg/formulas"
	"github.com/rs/zerolog"
)

// Run is the full output of one evaluation
type Run struct {
	Rule    signals.Rule
	Report  domain.MetricReport
	Returns []float64
	Trades  []domain.TradeSpan // signaled bars
	Fills   []returns.Fill     // filled bars
}

// Evaluator runs a single parameter combination end to end.
// It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	resolver signals.Resolver
	opts     returns.Options
	log      zerolog.Logger
}

// NewEvaluator creates a new evaluator. A nil resolver selects signals.Default().
func NewEvaluator(resolver signals.Resolver, opts returns.Options, log zerolog.Logger) (*Evaluator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if resolver == nil {
		resolver = signals.Default()
	}
	return &Evaluator{
		resolver: resolver,
		opts:     opts,
		log:      log.With().Str("component", "evaluator").Logger(),
	}, nil
}

// Options returns the fill options the evaluator applies
func (e *Evaluator) Options() returns.Options {
	return e.opts
}

// Resolver returns the signal resolver in use
func (e *Evaluator) Resolver() signals.Resolver {
	return e.resolver
}

// Evaluate runs rule over prices and returns the metric report.
func (e *Evaluator) Evaluate(prices domain.PriceSeries, rule signals.Rule) (Run, error) {
	if err := prices.Validate(); err != nil {
		return Run{}, fmt.Errorf("invalid prices: %w", err)
	}
	return e.evaluate(prices, rule)
}

// EvaluateParams builds the rule from a parameter vector and evaluates it.
func (e *Evaluator) EvaluateParams(prices domain.PriceSeries, kind signals.Kind, params map[string]float64) (Run, error) {
	rule, err := signals.NewRule(kind, params)
	if err != nil {
		return Run{}, err
	}
	return e.Evaluate(prices, rule)
}

// evaluate assumes prices were validated by the caller
func (e *Evaluator) evaluate(prices domain.PriceSeries, rule signals.Rule) (Run, error) {
	entry, exit := rule.Signals(prices)

	resolution, err := e.resolver.Resolve(entry, exit)
	if err != nil {
		return Run{}, fmt.Errorf("failed to resolve signals: %w", err)
	}

	composed, err := returns.Compose(prices, resolution.States, resolution.Trades, e.opts)
	if err != nil {
		return Run{}, fmt.Errorf("failed to compose returns: %w", err)
	}

	report := BuildReport(composed.Returns, composed.Fills)
	if err := report.Validate(); err != nil {
		return Run{}, fmt.Errorf("rule %s %v: %w", rule.Kind(), rule.Params(), err)
	}

	e.log.Debug().
		Str("kind", string(rule.Kind())).
		Interface("params", rule.Params()).
		Int("trades", report.NumTrades).
		Float64("sharpe", report.Sharpe).
		Msg("Evaluated rule")

	return Run{
		Rule:    rule,
		Report:  report,
		Returns: composed.Returns,
		Trades:  resolution.Trades,
		Fills:   composed.Fills,
	}, nil
}

// BuildReport derives a MetricReport from per-bar returns and the fills
// that produced them.
func BuildReport(barReturns []float64, fills []returns.Fill) domain.MetricReport {
	report := domain.MetricReport{
		Sharpe:      formulas.CalculateSharpeRatio(barReturns),
		CAGR:        formulas.CalculateCAGR(barReturns),
		MaxDrawdown: formulas.CalculateMaxDrawdown(barReturns),
		TotalReturn: formulas.TotalReturn(barReturns),
		NumTrades:   len(fills),
	}

	if len(fills) > 0 {
		wins := 0
		for _, f := range fills {
			if f.Return > 0 {
				wins++
			}
		}
		report.WinRate = float64(wins) / float64(len(fills))
	}

	return report
}
