package formulas

import "math"

// CalculateRSISeries calculates the Relative Strength Index for every bar.
//
// RSI Formula:
//
//	delta_t = close_t - close_(t-1)        (no synthetic leading delta)
//	gain_t  = max(delta_t, 0), loss_t = max(-delta_t, 0)
//	avg_t   = α·x_t + (1-α)·avg_(t-1),  α = 2/(period+1), seeded by the first delta
//	RSI     = 100 - 100/(1 + avgGain/avgLoss)
//
// The output is aligned with closes. Bar 0 has no prior close and is NaN so
// that a threshold rule never fires on an uncomputed value. When the average
// loss is zero the RSI is 100, or 50 when there has been no movement at all.
func CalculateRSISeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	out[0] = math.NaN()
	if period < 1 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	var rsi StreamingRSI
	rsi.Reset(period)
	rsi.Update(closes[0])
	for i := 1; i < len(closes); i++ {
		out[i] = rsi.Update(closes[i])
	}
	return out
}

// StreamingRSI computes the RSI one close at a time with the same recurrence
// as CalculateRSISeries. The zero value must be Reset before use.
type StreamingRSI struct {
	alpha   float64
	prev    float64
	avgGain float64
	avgLoss float64
	count   int
}

// NewStreamingRSI returns a StreamingRSI for the given period.
func NewStreamingRSI(period int) *StreamingRSI {
	s := &StreamingRSI{}
	s.Reset(period)
	return s
}

// Reset clears the state and sets the smoothing period.
func (s *StreamingRSI) Reset(period int) {
	*s = StreamingRSI{alpha: 2 / float64(period+1)}
}

// Update feeds the next close and returns the current RSI (NaN for the first close).
func (s *StreamingRSI) Update(close float64) float64 {
	s.count++
	if s.count == 1 {
		s.prev = close
		return math.NaN()
	}

	delta := close - s.prev
	s.prev = close
	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else if delta < 0 {
		loss = -delta
	}

	if s.count == 2 {
		s.avgGain = gain
		s.avgLoss = loss
	} else {
		s.avgGain = s.alpha*gain + (1-s.alpha)*s.avgGain
		s.avgLoss = s.alpha*loss + (1-s.alpha)*s.avgLoss
	}
	return s.Value()
}

// Value returns the current RSI without consuming a close.
func (s *StreamingRSI) Value() float64 {
	if s.count < 2 {
		return math.NaN()
	}
	if s.avgLoss == 0 {
		if s.avgGain == 0 {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+s.avgGain/s.avgLoss)
}
