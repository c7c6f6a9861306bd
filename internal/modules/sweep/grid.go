// Package sweep expands a parameter grid, evaluates every point and ranks
// the results.
package sweep

import (
	"fmt"
	"sort"

	"github.com/aristath/screener/internal/domain"
)

// Axis is one named parameter with its ordered candidate values
type Axis struct {
	Name   string    `json:"name" yaml:"name" validate:"required"`
	Values []float64 `json:"values" yaml:"values" validate:"required,min=1"`
}

// Grid is the cartesian product of its axes. Axis order fixes the
// enumeration order: the last axis varies fastest.
type Grid struct {
	axes []Axis
}

// Point is one grid point
type Point struct {
	Ordinal int                // position in enumeration order
	Index   []int              // per-axis value index, aligned with Grid.Axes()
	Params  map[string]float64 // parameter name -> value
}

// NewGrid builds a grid from a name -> values mapping. Axes are ordered by
// name so that the enumeration does not depend on map iteration.
func NewGrid(params map[string][]float64) Grid {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	axes := make([]Axis, 0, len(names))
	for _, name := range names {
		axes = append(axes, Axis{Name: name, Values: params[name]})
	}
	return Grid{axes: axes}
}

// NewOrderedGrid builds a grid with an explicit axis order.
func NewOrderedGrid(axes ...Axis) (Grid, error) {
	seen := make(map[string]bool, len(axes))
	out := make([]Axis, len(axes))
	for i, a := range axes {
		if a.Name == "" {
			return Grid{}, fmt.Errorf("%w: axis %d has no name", domain.ErrInvalidParams, i)
		}
		if seen[a.Name] {
			return Grid{}, fmt.Errorf("%w: duplicate axis %q", domain.ErrInvalidParams, a.Name)
		}
		seen[a.Name] = true
		out[i] = Axis{Name: a.Name, Values: append([]float64(nil), a.Values...)}
	}
	return Grid{axes: out}, nil
}

// Axes returns the grid axes in enumeration order
func (g Grid) Axes() []Axis {
	return g.axes
}

// Size returns the number of grid points. A grid with no axes, or with any
// empty axis, has no points.
func (g Grid) Size() int {
	if len(g.axes) == 0 {
		return 0
	}
	n := 1
	for _, a := range g.axes {
		n *= len(a.Values)
	}
	return n
}

// Point returns the grid point at ordinal.
func (g Grid) Point(ordinal int) Point {
	index := make([]int, len(g.axes))
	params := make(map[string]float64, len(g.axes))
	rem := ordinal
	for i := len(g.axes) - 1; i >= 0; i-- {
		n := len(g.axes[i].Values)
		index[i] = rem % n
		rem /= n
		params[g.axes[i].Name] = g.axes[i].Values[index[i]]
	}
	return Point{Ordinal: ordinal, Index: index, Params: params}
}

// Points enumerates every grid point in order
func (g Grid) Points() []Point {
	size := g.Size()
	points := make([]Point, size)
	for i := 0; i < size; i++ {
		points[i] = g.Point(i)
	}
	return points
}

// Chebyshev returns the maximum absolute per-axis index difference between a and b.
func Chebyshev(a, b []int) int {
	d := 0
	for i := range a {
		diff := a[i] - b[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > d {
			d = diff
		}
	}
	return d
}
