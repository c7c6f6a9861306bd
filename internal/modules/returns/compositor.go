// Package returns converts resolved positions and prices into a realized
// per-bar return series.
package returns

import (
	"fmt"

	"github.com/aristath/screener/internal/domain"
)

// DefaultSlippage is the fixed fractional cost applied to each fill (0.1%)
const DefaultSlippage = 0.001

// Options configures fill timing and slippage
type Options struct {
	Timing   domain.FillTiming
	Slippage float64 // fraction of the fill price, e.g. 0.001
}

// DefaultOptions returns next-bar-open fills with the default slippage
func DefaultOptions() Options {
	return Options{Timing: domain.FillNextOpen, Slippage: DefaultSlippage}
}

// Validate checks the options
func (o Options) Validate() error {
	if o.Timing != domain.FillClose && o.Timing != domain.FillNextOpen {
		return fmt.Errorf("%w: unknown fill timing %q", domain.ErrInvalidParams, o.Timing)
	}
	if !(o.Slippage >= 0 && o.Slippage < 1) {
		return fmt.Errorf("%w: slippage must be in [0,1), got %v", domain.ErrInvalidParams, o.Slippage)
	}
	return nil
}

// Fill is one executed round trip on filled bars
type Fill struct {
	EntryBar   int
	ExitBar    int
	EntryPrice float64 // including slippage
	ExitPrice  float64 // including slippage unless Marked
	Return     float64 // ExitPrice/EntryPrice - 1
	Marked     bool    // still open at series end, valued at the last close
}

// Result is the compositor output
type Result struct {
	Returns []float64 // one per bar, bar 0 included
	Fills   []Fill
}

// Compose builds the per-bar return series for a resolved signal sequence.
//
// With FillClose a signaled trade executes at the signal bar's close; with
// FillNextOpen at the following bar's open. Entry signals on the last bar
// under FillNextOpen never fill. Positions still open at the end, including
// exits whose fill bar would fall past the series, are marked at the last
// close without exit slippage. Per-bar return is the change in equity marked
// to each bar's close.
func Compose(prices domain.PriceSeries, states []domain.PositionState, trades []domain.TradeSpan, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	n := prices.Len()
	if len(states) != n {
		return Result{}, fmt.Errorf("%w: states=%d prices=%d", domain.ErrShapeMismatch, len(states), n)
	}

	out := Result{
		Returns: make([]float64, n),
		Fills:   make([]Fill, 0, len(trades)),
	}
	delay := opts.Timing.Delay()
	closes := prices.Close

	fillPrice := func(bar int) float64 {
		if delay == 0 {
			return closes[bar]
		}
		return prices.Open[bar]
	}

	for _, span := range trades {
		if span.EntryBar < 0 || span.EntryBar >= n || (!span.Open() && span.ExitBar >= n) {
			return Result{}, fmt.Errorf("%w: trade %+v outside %d bars", domain.ErrShapeMismatch, span, n)
		}

		entryBar := span.EntryBar + delay
		if entryBar >= n {
			continue // signaled on the last bar, never filled
		}
		buy := fillPrice(entryBar) * (1 + opts.Slippage)

		exitBar := n - 1
		sell := closes[n-1]
		marked := true
		if !span.Open() && span.ExitBar+delay < n {
			exitBar = span.ExitBar + delay
			sell = fillPrice(exitBar) * (1 - opts.Slippage)
			marked = false
		}

		if exitBar == entryBar {
			out.Returns[entryBar] = sell/buy - 1
		} else {
			out.Returns[entryBar] = closes[entryBar]/buy - 1
			for bar := entryBar + 1; bar < exitBar; bar++ {
				out.Returns[bar] = closes[bar]/closes[bar-1] - 1
			}
			out.Returns[exitBar] = sell/closes[exitBar-1] - 1
		}

		out.Fills = append(out.Fills, Fill{
			EntryBar:   entryBar,
			ExitBar:    exitBar,
			EntryPrice: buy,
			ExitPrice:  sell,
			Return:     sell/buy - 1,
			Marked:     marked,
		})
	}

	return out, nil
}
