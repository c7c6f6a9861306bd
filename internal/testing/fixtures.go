package testing

import (
	"math"
	"math/rand"

	"github.com/aristath/screener/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// MeanRevertingPrices returns n daily bars whose log price reverts towards a
// slowly rising trend (Ornstein-Uhlenbeck with a 10-bar half-life). The same
// seed always yields the same series.
func MeanRevertingPrices(n int, seed int64) domain.PriceSeries {
	rng := rand.New(rand.NewSource(seed))

	const (
		start     = 100.0
		drift     = 0.0002 // per-bar trend
		reversion = 0.07   // ~ln(2)/10
		sigma     = 0.015
	)

	p := newSeries(n)
	deviation := 0.0
	prevClose := start
	for i := 0; i < n; i++ {
		deviation += -reversion*deviation + sigma*rng.NormFloat64()
		c := start * math.Exp(drift*float64(i)+deviation)
		fillBar(p, i, prevClose, c, rng)
		prevClose = c
	}
	return p
}

// RandomWalkPrices returns n daily bars of a geometric random walk with no drift.
func RandomWalkPrices(n int, seed int64) domain.PriceSeries {
	rng := rand.New(rand.NewSource(seed))

	p := newSeries(n)
	c := 100.0
	for i := 0; i < n; i++ {
		prev := c
		c *= math.Exp(0.01 * rng.NormFloat64())
		fillBar(p, i, prev, c, rng)
	}
	return p
}

// NoiseMatrix returns a t×n matrix of independent N(0, 0.01²) daily returns.
func NoiseMatrix(t, n int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, t*n)
	for i := range data {
		data[i] = 0.01 * rng.NormFloat64()
	}
	return mat.NewDense(t, n, data)
}

// DominantMatrix returns a t×n noise matrix whose column dominant beats every
// other column on every row.
func DominantMatrix(t, n, dominant int, seed int64) *mat.Dense {
	m := NoiseMatrix(t, n, seed)
	for i := 0; i < t; i++ {
		best := math.Inf(-1)
		for j := 0; j < n; j++ {
			if j != dominant && m.At(i, j) > best {
				best = m.At(i, j)
			}
		}
		m.Set(i, dominant, best+0.002)
	}
	return m
}

func newSeries(n int) domain.PriceSeries {
	return domain.PriceSeries{
		Open:   make([]float64, n),
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Close:  make([]float64, n),
		Volume: make([]float64, n),
	}
}

// fillBar sets bar i from the previous close and the new close. The open
// gaps slightly from the previous close; high and low bracket both.
func fillBar(p domain.PriceSeries, i int, prevClose, c float64, rng *rand.Rand) {
	o := prevClose * (1 + 0.002*rng.NormFloat64())
	hi := math.Max(o, c) * (1 + 0.003*rng.Float64())
	lo := math.Min(o, c) * (1 - 0.003*rng.Float64())
	p.Open[i] = o
	p.High[i] = hi
	p.Low[i] = lo
	p.Close[i] = c
	p.Volume[i] = float64(100000 + rng.Intn(50000))
}
