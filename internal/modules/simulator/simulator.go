// Package simulator is a bar-by-bar event-driven backtester. It shares no
// code path with the vectorized evaluator beyond the metric formulas, and
// is used to re-check candidates the vectorized screen promotes.
package simulator

import (
	"fmt"
	"math"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/modules/returns"
	"github.com/aristath/screener/internal/modules/signals"
	"github.com/aristath/screener/pkg/formulas"
	"github.com/rs/zerolog"
)

// Side is an order direction
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Order is one executed order
type Order struct {
	Side      Side
	SignalBar int
	FillBar   int
	Price     float64 // including slippage
	Shares    float64
}

// Result is the outcome of one simulation
type Result struct {
	Report  domain.MetricReport
	Returns []float64 // per bar, marked to close
	Equity  []float64 // per bar, starting capital 1.0
	Orders  []Order
}

// signalSource produces the entry and exit conditions for one bar
type signalSource interface {
	next(close float64) (entry, exit bool)
}

// pendingOrder waits for the next bar's open
type pendingOrder struct {
	side      Side
	signalBar int
}

// Simulator replays a rule over prices one bar at a time
type Simulator struct {
	opts returns.Options
	log  zerolog.Logger
}

// New creates a new simulator
func New(opts returns.Options, log zerolog.Logger) (*Simulator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{
		opts: opts,
		log:  log.With().Str("component", "simulator").Logger(),
	}, nil
}

// Run simulates rule over prices with all capital in or out of the market.
// Only rules with a streaming implementation (rsi_reversion, ema_cross) are
// supported.
func (s *Simulator) Run(prices domain.PriceSeries, rule signals.Rule) (Result, error) {
	if err := prices.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid prices: %w", err)
	}
	source, err := newSignalSource(rule)
	if err != nil {
		return Result{}, err
	}

	n := prices.Len()
	res := Result{
		Returns: make([]float64, n),
		Equity:  make([]float64, n),
	}

	var (
		cash      = 1.0
		shares    = 0.0
		long      = false // signaled position state
		pending   *pendingOrder
		prevValue = 1.0
		costBasis = 0.0
		wins      = 0
		trips     = 0
	)

	buy := func(signalBar, bar int, px float64) {
		price := px * (1 + s.opts.Slippage)
		shares = cash / price
		costBasis = cash
		cash = 0
		res.Orders = append(res.Orders, Order{Side: Buy, SignalBar: signalBar, FillBar: bar, Price: price, Shares: shares})
	}
	sell := func(signalBar, bar int, px float64) {
		price := px * (1 - s.opts.Slippage)
		cash = shares * price
		res.Orders = append(res.Orders, Order{Side: Sell, SignalBar: signalBar, FillBar: bar, Price: price, Shares: shares})
		shares = 0
		trips++
		if cash > costBasis {
			wins++
		}
	}
	execute := func(side Side, signalBar, bar int, px float64) {
		if side == Buy {
			buy(signalBar, bar, px)
		} else if shares > 0 {
			sell(signalBar, bar, px)
		}
	}

	for bar := 0; bar < n; bar++ {
		if pending != nil {
			execute(pending.side, pending.signalBar, bar, prices.Open[bar])
			pending = nil
		}

		entry, exit := source.next(prices.Close[bar])

		var signal Side
		if long && exit {
			long = false
			signal = Sell
		} else if !long && entry {
			long = true
			signal = Buy
		}

		if signal != "" {
			if s.opts.Timing == domain.FillClose {
				execute(signal, bar, bar, prices.Close[bar])
			} else {
				pending = &pendingOrder{side: signal, signalBar: bar}
			}
		}

		value := cash + shares*prices.Close[bar]
		res.Equity[bar] = value
		res.Returns[bar] = value/prevValue - 1
		prevValue = value
	}

	// A position still held is marked at the last close
	if shares > 0 {
		trips++
		if shares*prices.Close[n-1] > costBasis {
			wins++
		}
	}

	res.Report = domain.MetricReport{
		Sharpe:      formulas.CalculateSharpeRatio(res.Returns),
		CAGR:        formulas.CalculateCAGR(res.Returns),
		MaxDrawdown: formulas.CalculateMaxDrawdown(res.Returns),
		TotalReturn: formulas.TotalReturn(res.Returns),
		NumTrades:   trips,
	}
	if trips > 0 {
		res.Report.WinRate = float64(wins) / float64(trips)
	}
	if err := res.Report.Validate(); err != nil {
		return Result{}, err
	}

	s.log.Debug().
		Str("kind", string(rule.Kind())).
		Int("orders", len(res.Orders)).
		Int("trades", trips).
		Float64("total_return", res.Report.TotalReturn).
		Msg("Simulation completed")

	return res, nil
}

func newSignalSource(rule signals.Rule) (signalSource, error) {
	switch r := rule.(type) {
	case signals.RSIReversion:
		return &rsiSource{rsi: formulas.NewStreamingRSI(r.Period), entry: r.Entry, exit: r.Exit}, nil
	case signals.EMACross:
		return &emaCrossSource{
			fast:     formulas.NewStreamingEMA(r.Fast),
			slow:     formulas.NewStreamingEMA(r.Slow),
			prevFast: math.NaN(),
			prevSlow: math.NaN(),
		}, nil
	case nil:
		return nil, fmt.Errorf("%w: nil rule", domain.ErrUnknownRule)
	default:
		return nil, fmt.Errorf("%w: no streaming implementation for %s", domain.ErrUnknownRule, rule.Kind())
	}
}

type rsiSource struct {
	rsi         *formulas.StreamingRSI
	entry, exit float64
}

func (s *rsiSource) next(close float64) (bool, bool) {
	v := s.rsi.Update(close)
	return v < s.entry, v > s.exit
}

type emaCrossSource struct {
	fast, slow         *formulas.StreamingEMA
	prevFast, prevSlow float64
}

func (s *emaCrossSource) next(close float64) (bool, bool) {
	f, sl := s.fast.Update(close), s.slow.Update(close)
	up := f > sl && s.prevFast <= s.prevSlow
	down := sl > f && s.prevSlow <= s.prevFast
	s.prevFast, s.prevSlow = f, sl
	return up, down
}
