// Package screening runs the full screen for one strategy kind: grid sweep,
// overfitting and generalization checks on the result, a cross-engine check
// of the winner and the combined verdict.
package screening

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/modules/crosscheck"
	"github.com/aristath/screener/internal/modules/robustness"
	"github.com/aristath/screener/internal/modules/signals"
	"github.com/aristath/screener/internal/modules/sweep"
	"github.com/aristath/screener/internal/modules/validation"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// WarningSingleStrategy is reported when the sweep produced one row, so
// there is nothing to select among and PBO is undefined
const WarningSingleStrategy = "sweep produced a single strategy; PBO needs at least two"

// Request is one screening job
type Request struct {
	Prices     domain.PriceSeries
	Kind       signals.Kind
	Grid       sweep.Grid
	Validation validation.Config
	Thresholds robustness.Thresholds
	// External significance tests; NaN when not supplied
	DSRPValue         float64
	PermutationPValue float64
}

// Report is the outcome of a screen
type Report struct {
	RunID      string // empty unless persisted
	Sweep      sweep.Result
	Matrix     *mat.Dense // T×N returns, columns in grid order
	PBO        validation.PBOResult
	CPCV       validation.CPCVResult
	NDR        robustness.NDRResult
	Crosscheck *crosscheck.Outcome // nil when the winning kind has no event-driven implementation
	Verdict    robustness.Verdict
}

// Best returns the winning sweep row
func (r Report) Best() sweep.Row {
	best, _ := r.Sweep.Best()
	return best
}

// Service wires the screening stages together
type Service struct {
	sweeper *sweep.Sweeper
	engine  *validation.Engine
	checker *crosscheck.Checker
	repo    *sweep.Repository // optional
	meta    sweep.RunMeta
	log     zerolog.Logger
}

// NewService creates a screening service. repo may be nil to skip persistence.
func NewService(
	sweeper *sweep.Sweeper,
	engine *validation.Engine,
	checker *crosscheck.Checker,
	repo *sweep.Repository,
	meta sweep.RunMeta,
	log zerolog.Logger,
) *Service {
	return &Service{
		sweeper: sweeper,
		engine:  engine,
		checker: checker,
		repo:    repo,
		meta:    meta,
		log:     log.With().Str("service", "screening").Logger(),
	}
}

// Screen runs every stage on req
func (s *Service) Screen(req Request) (*Report, error) {
	start := time.Now()

	result, err := s.sweeper.Run(req.Prices, req.Kind, req.Grid)
	if err != nil {
		return nil, fmt.Errorf("sweep failed: %w", err)
	}
	best, ok := result.Best()
	if !ok {
		return nil, fmt.Errorf("%w: sweep of %s produced no rows", domain.ErrShapeMismatch, req.Kind)
	}

	report := &Report{Sweep: result}

	report.Matrix, err = result.ReturnMatrix()
	if err != nil {
		return nil, err
	}

	if len(result.Rows) < 2 {
		report.PBO = validation.PBOResult{PBO: math.NaN(), NumStrategies: 1, Warning: WarningSingleStrategy}
		s.log.Warn().Str("kind", string(req.Kind)).Msg("PBO skipped: single strategy")
	} else {
		report.PBO, err = s.engine.PBO(report.Matrix, req.Validation)
		if err != nil {
			return nil, fmt.Errorf("PBO failed: %w", err)
		}
	}

	single := mat.NewDense(len(best.Returns), 1, append([]float64(nil), best.Returns...))
	report.CPCV, err = s.engine.CPCV(single, req.Validation)
	if err != nil {
		return nil, fmt.Errorf("CPCV failed: %w", err)
	}

	report.NDR, err = robustness.Neighborhood(result)
	if err != nil {
		return nil, fmt.Errorf("NDR failed: %w", err)
	}

	if err := s.crosscheck(report, req, best); err != nil {
		return nil, err
	}

	ndr1 := math.NaN()
	if shell, ok := report.NDR.Shell(1); ok && shell.Defined {
		ndr1 = shell.NDR
	}
	report.Verdict = robustness.Judge(robustness.Inputs{
		DSRPValue:         req.DSRPValue,
		PBO:               report.PBO.PBO,
		NDR1:              ndr1,
		PermutationPValue: req.PermutationPValue,
	}, req.Thresholds)

	if s.repo != nil {
		if err := s.persist(report); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Str("kind", string(req.Kind)).
		Str("run_id", report.RunID).
		Interface("best_params", best.Point.Params).
		Float64("best_sharpe", best.Report.Sharpe).
		Float64("pbo", report.PBO.PBO).
		Float64("cpcv_mean", report.CPCV.Mean).
		Float64("ndr1", ndr1).
		Str("verdict", string(report.Verdict.Level)).
		Dur("duration", time.Since(start)).
		Msg("Screen completed")

	return report, nil
}

func (s *Service) crosscheck(report *Report, req Request, best sweep.Row) error {
	if s.checker == nil {
		return nil
	}
	rule, err := signals.NewRule(req.Kind, best.Point.Params)
	if err != nil {
		return fmt.Errorf("failed to rebuild winning rule: %w", err)
	}
	outcome, err := s.checker.Check(req.Prices, rule)
	if errors.Is(err, domain.ErrUnknownRule) {
		s.log.Info().Str("kind", string(req.Kind)).Msg("No event-driven simulator for kind, crosscheck skipped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("crosscheck failed: %w", err)
	}
	report.Crosscheck = &outcome
	return nil
}

func (s *Service) persist(report *Report) error {
	runID, err := s.repo.SaveRun(report.Sweep, s.meta)
	if err != nil {
		return err
	}
	report.RunID = runID

	if err := s.repo.SaveValidation(runID, NewValidationRecord(report)); err != nil {
		return err
	}
	return nil
}

// NewValidationRecord flattens a report for storage
func NewValidationRecord(report *Report) sweep.ValidationRecord {
	rec := sweep.ValidationRecord{
		PBO:             report.PBO.PBO,
		PBODefined:      report.PBO.Defined,
		PBOWarning:      report.PBO.Warning,
		NumCombinations: report.PBO.NumCombinations,
		CPCVMean:        report.CPCV.Mean,
		CPCVStd:         report.CPCV.Std,
		CPCVLow:         report.CPCV.CILow,
		CPCVHigh:        report.CPCV.CIHigh,
		NDR1:            math.NaN(),
		CV1:             math.NaN(),
		NDR2:            math.NaN(),
		CV2:             math.NaN(),
		Verdict:         string(report.Verdict.Level),
		Reasons:         report.Verdict.Reasons,
	}
	if shell, ok := report.NDR.Shell(1); ok {
		rec.NDR1, rec.CV1 = shell.NDR, shell.CV
	}
	if shell, ok := report.NDR.Shell(2); ok {
		rec.NDR2, rec.CV2 = shell.NDR, shell.CV
	}
	return rec
}

// Snapshot captures the return matrix and validation distributions of a report
func (r *Report) Snapshot() validation.Snapshot {
	labels := make([]string, 0, len(r.Sweep.Rows))
	rows := append([]sweep.Row(nil), r.Sweep.Rows...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Point.Ordinal < rows[j].Point.Ordinal })
	for _, row := range rows {
		labels = append(labels, fmt.Sprintf("%v", row.Point.Params))
	}
	pbo, cpcv := r.PBO, r.CPCV
	return validation.Snapshot{
		Version:   validation.SnapshotVersion,
		RunID:     r.RunID,
		CreatedAt: time.Now().UTC(),
		Matrix:    validation.NewMatrixSnapshot(r.Matrix, labels),
		PBO:       &pbo,
		CPCV:      &cpcv,
	}
}
