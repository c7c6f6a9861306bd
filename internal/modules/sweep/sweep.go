package sweep

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/modules/backtest"
	"github.com/aristath/screener/internal/modules/signals"
	"github.com/aristath/screener/internal/workers"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// Row is one evaluated grid point
type Row struct {
	Point   Point
	Report  domain.MetricReport
	Returns []float64
}

// Result is a sweep table sorted by Sharpe descending. Ties keep grid order.
type Result struct {
	Kind    signals.Kind
	Axes    []Axis
	NumBars int
	Rows    []Row
	Skipped []Point // points whose parameters the rule rejected
}

// Best returns the top row, if any
func (r Result) Best() (Row, bool) {
	if len(r.Rows) == 0 {
		return Row{}, false
	}
	return r.Rows[0], true
}

// ReturnMatrix assembles the NumBars×len(Rows) matrix of per-bar returns,
// columns in grid order.
func (r Result) ReturnMatrix() (*mat.Dense, error) {
	if len(r.Rows) == 0 || r.NumBars == 0 {
		return nil, fmt.Errorf("%w: empty sweep has no return matrix", domain.ErrShapeMismatch)
	}

	rows := append([]Row(nil), r.Rows...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Point.Ordinal < rows[j].Point.Ordinal })

	m := mat.NewDense(r.NumBars, len(rows), nil)
	for j, row := range rows {
		if len(row.Returns) != r.NumBars {
			return nil, fmt.Errorf("%w: row %d has %d returns, want %d",
				domain.ErrShapeMismatch, row.Point.Ordinal, len(row.Returns), r.NumBars)
		}
		m.SetCol(j, row.Returns)
	}
	return m, nil
}

// Sweeper evaluates every point of a grid on a worker pool
type Sweeper struct {
	evaluator *backtest.Evaluator
	pool      *workers.WorkerPool
	progress  workers.ProgressCallback
	log       zerolog.Logger
}

// NewSweeper creates a new sweeper
func NewSweeper(evaluator *backtest.Evaluator, pool *workers.WorkerPool, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		evaluator: evaluator,
		pool:      pool,
		log:       log.With().Str("component", "sweeper").Logger(),
	}
}

// SetProgressCallback sets a callback invoked after each evaluated point
func (s *Sweeper) SetProgressCallback(cb workers.ProgressCallback) {
	s.progress = cb
}

// Run evaluates kind at every point of grid over prices.
//
// Points whose parameters the rule rejects (ErrInvalidParams, e.g. fast >=
// slow) are skipped and listed in Result.Skipped. Any other failure aborts
// the sweep. An empty grid yields an empty Result.
func (s *Sweeper) Run(prices domain.PriceSeries, kind signals.Kind, grid Grid) (Result, error) {
	if err := prices.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid prices: %w", err)
	}
	if err := checkAxes(kind, grid); err != nil {
		return Result{}, err
	}

	result := Result{
		Kind:    kind,
		Axes:    grid.Axes(),
		NumBars: prices.Len(),
		Rows:    []Row{},
	}

	points := grid.Points()
	if len(points) == 0 {
		s.log.Info().Str("kind", string(kind)).Msg("Empty grid, nothing to sweep")
		return result, nil
	}

	start := time.Now()
	s.log.Info().
		Str("kind", string(kind)).
		Int("points", len(points)).
		Int("bars", prices.Len()).
		Int("workers", s.pool.Size()).
		Msg("Starting grid sweep")

	// Each job writes only its own slot
	runs := make([]backtest.Run, len(points))
	errs := make([]error, len(points))
	s.pool.Run(len(points), func(_, job int) {
		runs[job], errs[job] = s.evaluator.EvaluateParams(prices, kind, points[job].Params)
	}, s.progress)

	for i, p := range points {
		if err := errs[i]; err != nil {
			if errors.Is(err, domain.ErrInvalidParams) {
				s.log.Debug().Err(err).Interface("params", p.Params).Msg("Skipping grid point")
				result.Skipped = append(result.Skipped, p)
				continue
			}
			return Result{}, fmt.Errorf("grid point %d %v: %w", p.Ordinal, p.Params, err)
		}
		result.Rows = append(result.Rows, Row{
			Point:   p,
			Report:  runs[i].Report,
			Returns: runs[i].Returns,
		})
	}

	sort.SliceStable(result.Rows, func(i, j int) bool {
		return result.Rows[i].Report.Sharpe > result.Rows[j].Report.Sharpe
	})

	if len(result.Skipped) > 0 {
		s.log.Warn().
			Int("skipped", len(result.Skipped)).
			Msg("Some grid points had invalid parameters")
	}

	event := s.log.Info().
		Int("evaluated", len(result.Rows)).
		Dur("duration", time.Since(start))
	if best, ok := result.Best(); ok {
		event = event.Interface("best_params", best.Point.Params).Float64("best_sharpe", best.Report.Sharpe)
	}
	event.Msg("Grid sweep completed")

	return result, nil
}

// checkAxes requires a non-empty grid to name exactly the kind's parameters.
func checkAxes(kind signals.Kind, grid Grid) error {
	names, err := signals.ParamNames(kind)
	if err != nil {
		return err
	}
	axes := grid.Axes()
	if len(axes) == 0 {
		return nil
	}

	got := make([]string, len(axes))
	for i, a := range axes {
		got[i] = a.Name
	}
	sort.Strings(got)
	if len(got) != len(names) {
		return fmt.Errorf("%w: %s needs axes %v, got %v", domain.ErrInvalidParams, kind, names, got)
	}
	for i := range names {
		if got[i] != names[i] {
			return fmt.Errorf("%w: %s needs axes %v, got %v", domain.ErrInvalidParams, kind, names, got)
		}
	}
	return nil
}
