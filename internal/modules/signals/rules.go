// Package signals turns price series into entry/exit signals and resolves
// them into position states.
package signals

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/pkg/formulas"
)

// Kind names one of the known rule families
type Kind string

// Known rule kinds. The set is closed: NewRule rejects anything else.
const (
	KindRSIReversion       Kind = "rsi_reversion"
	KindEMACross           Kind = "ema_cross"
	KindMACDCross          Kind = "macd_cross"
	KindBollingerReversion Kind = "bollinger_reversion"
)

// Kinds lists every known rule kind in a stable order
func Kinds() []Kind {
	return []Kind{KindRSIReversion, KindEMACross, KindMACDCross, KindBollingerReversion}
}

// Rule is a parameterized entry/exit rule. Implementations are the concrete
// types in this package only.
type Rule interface {
	Kind() Kind
	// Params returns the parameter vector that built the rule
	Params() map[string]float64
	// Signals returns aligned entry and exit arrays for prices
	Signals(prices domain.PriceSeries) (entry, exit []bool)
	isRule()
}

// RSIReversion enters when RSI drops below Entry and exits when it rises above Exit
type RSIReversion struct {
	Period int
	Entry  float64
	Exit   float64
}

// EMACross enters when the fast EMA crosses above the slow EMA and exits on
// the opposite cross
type EMACross struct {
	Fast int
	Slow int
}

// MACDCross enters when the MACD line crosses above its signal line and
// exits on the opposite cross
type MACDCross struct {
	Fast   int
	Slow   int
	Signal int
}

// BollingerReversion enters on a close below the lower band and exits on a
// close above the middle band
type BollingerReversion struct {
	Period int
	K      float64
}

// NewRule builds a rule of the given kind from a parameter vector.
func NewRule(kind Kind, params map[string]float64) (Rule, error) {
	switch kind {
	case KindRSIReversion:
		period, err := intParam(params, "period")
		if err != nil {
			return nil, err
		}
		entry, err := floatParam(params, "entry")
		if err != nil {
			return nil, err
		}
		exit, err := floatParam(params, "exit")
		if err != nil {
			return nil, err
		}
		if period < 2 {
			return nil, fmt.Errorf("%w: rsi period must be >= 2, got %d", domain.ErrInvalidParams, period)
		}
		if entry < 0 || entry > 100 || exit < 0 || exit > 100 {
			return nil, fmt.Errorf("%w: rsi thresholds must be within [0,100]", domain.ErrInvalidParams)
		}
		return RSIReversion{Period: period, Entry: entry, Exit: exit}, nil

	case KindEMACross:
		fast, err := intParam(params, "fast")
		if err != nil {
			return nil, err
		}
		slow, err := intParam(params, "slow")
		if err != nil {
			return nil, err
		}
		if fast < 1 || slow <= fast {
			return nil, fmt.Errorf("%w: ema cross needs 1 <= fast < slow, got fast=%d slow=%d",
				domain.ErrInvalidParams, fast, slow)
		}
		return EMACross{Fast: fast, Slow: slow}, nil

	case KindMACDCross:
		fast, err := intParam(params, "fast")
		if err != nil {
			return nil, err
		}
		slow, err := intParam(params, "slow")
		if err != nil {
			return nil, err
		}
		signal, err := intParam(params, "signal")
		if err != nil {
			return nil, err
		}
		if fast < 2 || slow <= fast || signal < 2 {
			return nil, fmt.Errorf("%w: macd needs 2 <= fast < slow and signal >= 2", domain.ErrInvalidParams)
		}
		return MACDCross{Fast: fast, Slow: slow, Signal: signal}, nil

	case KindBollingerReversion:
		period, err := intParam(params, "period")
		if err != nil {
			return nil, err
		}
		k, err := floatParam(params, "k")
		if err != nil {
			return nil, err
		}
		if period < 2 || !(k > 0) {
			return nil, fmt.Errorf("%w: bollinger needs period >= 2 and k > 0", domain.ErrInvalidParams)
		}
		return BollingerReversion{Period: period, K: k}, nil
	}

	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRule, kind)
}

// ParamNames returns the parameter names a kind requires, sorted.
func ParamNames(kind Kind) ([]string, error) {
	var names []string
	switch kind {
	case KindRSIReversion:
		names = []string{"period", "entry", "exit"}
	case KindEMACross:
		names = []string{"fast", "slow"}
	case KindMACDCross:
		names = []string{"fast", "slow", "signal"}
	case KindBollingerReversion:
		names = []string{"period", "k"}
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRule, kind)
	}
	sort.Strings(names)
	return names, nil
}

func (RSIReversion) isRule()       {}
func (EMACross) isRule()           {}
func (MACDCross) isRule()          {}
func (BollingerReversion) isRule() {}

// Kind implements Rule
func (RSIReversion) Kind() Kind { return KindRSIReversion }

// Kind implements Rule
func (EMACross) Kind() Kind { return KindEMACross }

// Kind implements Rule
func (MACDCross) Kind() Kind { return KindMACDCross }

// Kind implements Rule
func (BollingerReversion) Kind() Kind { return KindBollingerReversion }

// Params implements Rule
func (r RSIReversion) Params() map[string]float64 {
	return map[string]float64{"period": float64(r.Period), "entry": r.Entry, "exit": r.Exit}
}

// Params implements Rule
func (r EMACross) Params() map[string]float64 {
	return map[string]float64{"fast": float64(r.Fast), "slow": float64(r.Slow)}
}

// Params implements Rule
func (r MACDCross) Params() map[string]float64 {
	return map[string]float64{"fast": float64(r.Fast), "slow": float64(r.Slow), "signal": float64(r.Signal)}
}

// Params implements Rule
func (r BollingerReversion) Params() map[string]float64 {
	return map[string]float64{"period": float64(r.Period), "k": r.K}
}

// Signals implements Rule
func (r RSIReversion) Signals(prices domain.PriceSeries) (entry, exit []bool) {
	rsi := formulas.CalculateRSISeries(prices.Close, r.Period)
	entry = make([]bool, len(rsi))
	exit = make([]bool, len(rsi))
	for i, v := range rsi {
		// NaN compares false on both sides
		entry[i] = v < r.Entry
		exit[i] = v > r.Exit
	}
	return entry, exit
}

// Signals implements Rule
func (r EMACross) Signals(prices domain.PriceSeries) (entry, exit []bool) {
	fast := formulas.CalculateEMASeries(prices.Close, r.Fast)
	slow := formulas.CalculateEMASeries(prices.Close, r.Slow)
	return crossAbove(fast, slow), crossAbove(slow, fast)
}

// Signals implements Rule
func (r MACDCross) Signals(prices domain.PriceSeries) (entry, exit []bool) {
	macd := formulas.CalculateMACDSeries(prices.Close, r.Fast, r.Slow, r.Signal)
	return crossAbove(macd.Line, macd.Signal), crossAbove(macd.Signal, macd.Line)
}

// Signals implements Rule
func (r BollingerReversion) Signals(prices domain.PriceSeries) (entry, exit []bool) {
	bands := formulas.CalculateBollingerSeries(prices.Close, r.Period, r.K)
	entry = make([]bool, prices.Len())
	exit = make([]bool, prices.Len())
	for i, c := range prices.Close {
		entry[i] = c < bands.Lower[i]
		exit[i] = c > bands.Middle[i]
	}
	return entry, exit
}

// crossAbove marks bars where a moves from at or below b to strictly above it.
// Both series must be defined on the current and the previous bar.
func crossAbove(a, b []float64) []bool {
	out := make([]bool, len(a))
	for i := 1; i < len(a); i++ {
		out[i] = a[i] > b[i] && a[i-1] <= b[i-1]
	}
	return out
}

func floatParam(params map[string]float64, name string) (float64, error) {
	v, ok := params[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing parameter %q", domain.ErrInvalidParams, name)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: parameter %q is not finite", domain.ErrInvalidParams, name)
	}
	return v, nil
}

func intParam(params map[string]float64, name string) (int, error) {
	v, err := floatParam(params, name)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: parameter %q must be an integer, got %v", domain.ErrInvalidParams, name, v)
	}
	return int(v), nil
}
