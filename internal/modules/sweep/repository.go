package sweep

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aristath/screener/internal/database"
	"github.com/aristath/screener/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrRunNotFound is returned when a run id is not in the database
var ErrRunNotFound = errors.New("sweep run not found")

// RunMeta describes how a sweep was produced
type RunMeta struct {
	Resolver string
	Timing   domain.FillTiming
	Slippage float64
}

// StoredRun is a persisted sweep header
type StoredRun struct {
	RunID     string
	Kind      string
	Resolver  string
	Timing    domain.FillTiming
	Slippage  float64
	NumBars   int
	NumPoints int
	Axes      []Axis
	CreatedAt time.Time
}

// StoredRow is a persisted sweep row. Return series are not stored; see
// the msgpack snapshots for those.
type StoredRow struct {
	Rank    int
	Ordinal int
	Params  map[string]float64
	Report  domain.MetricReport
}

// ValidationRecord is the flattened validation outcome of one run.
// NaN marks an undefined value and is stored as NULL.
type ValidationRecord struct {
	PBO             float64
	PBODefined      bool
	PBOWarning      string
	NumCombinations int
	CPCVMean        float64
	CPCVStd         float64
	CPCVLow         float64
	CPCVHigh        float64
	NDR1            float64
	CV1             float64
	NDR2            float64
	CV2             float64
	Verdict         string
	Reasons         []string
	CreatedAt       time.Time
}

// Repository handles sweep database operations
type Repository struct {
	db  *sql.DB // screener.db - sweep_runs, sweep_rows, validation_reports
	log zerolog.Logger
}

// NewRepository creates a new sweep repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "sweep").Logger(),
	}
}

// SaveRun stores a sweep result and its rows in one transaction and returns
// the new run id.
func (r *Repository) SaveRun(result Result, meta RunMeta) (string, error) {
	axesJSON, err := json.Marshal(result.Axes)
	if err != nil {
		return "", fmt.Errorf("failed to marshal axes: %w", err)
	}

	runID := uuid.New().String()
	now := time.Now().Unix()

	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO sweep_runs
			(run_id, kind, fill_timing, slippage, resolver, num_bars, num_points, axes_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, string(result.Kind), string(meta.Timing), meta.Slippage, meta.Resolver,
			result.NumBars, len(result.Rows), string(axesJSON), now)
		if err != nil {
			return fmt.Errorf("failed to insert sweep run: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO sweep_rows
			(run_id, rank, ordinal, params_json, sharpe, cagr, max_drawdown, total_return, num_trades, win_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare row insert: %w", err)
		}
		defer stmt.Close()

		for rank, row := range result.Rows {
			paramsJSON, err := json.Marshal(row.Point.Params)
			if err != nil {
				return fmt.Errorf("failed to marshal params: %w", err)
			}
			rep := row.Report
			if _, err := stmt.Exec(runID, rank, row.Point.Ordinal, string(paramsJSON),
				rep.Sharpe, rep.CAGR, rep.MaxDrawdown, rep.TotalReturn, rep.NumTrades, rep.WinRate); err != nil {
				return fmt.Errorf("failed to insert row %d: %w", rank, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	r.log.Info().
		Str("run_id", runID).
		Str("kind", string(result.Kind)).
		Int("rows", len(result.Rows)).
		Msg("Sweep run saved")

	return runID, nil
}

// GetRun retrieves a run header by id
func (r *Repository) GetRun(runID string) (*StoredRun, error) {
	var (
		run       StoredRun
		timing    string
		axesJSON  string
		createdAt int64
	)
	err := r.db.QueryRow(`
		SELECT run_id, kind, fill_timing, slippage, resolver, num_bars, num_points, axes_json, created_at
		FROM sweep_runs WHERE run_id = ?
	`, runID).Scan(&run.RunID, &run.Kind, &timing, &run.Slippage, &run.Resolver,
		&run.NumBars, &run.NumPoints, &axesJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sweep run: %w", err)
	}

	if err := json.Unmarshal([]byte(axesJSON), &run.Axes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal axes: %w", err)
	}
	run.Timing = domain.FillTiming(timing)
	run.CreatedAt = time.Unix(createdAt, 0)
	return &run, nil
}

// GetRows retrieves the rows of a run, best first. limit <= 0 returns all rows.
func (r *Repository) GetRows(runID string, limit int) ([]StoredRow, error) {
	query := `
		SELECT rank, ordinal, params_json, sharpe, cagr, max_drawdown, total_return, num_trades, win_rate
		FROM sweep_rows WHERE run_id = ? ORDER BY rank
	`
	args := []interface{}{runID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweep rows: %w", err)
	}
	defer rows.Close()

	var out []StoredRow
	for rows.Next() {
		var (
			row        StoredRow
			paramsJSON string
		)
		rep := &row.Report
		if err := rows.Scan(&row.Rank, &row.Ordinal, &paramsJSON, &rep.Sharpe, &rep.CAGR,
			&rep.MaxDrawdown, &rep.TotalReturn, &rep.NumTrades, &rep.WinRate); err != nil {
			return nil, fmt.Errorf("failed to scan sweep row: %w", err)
		}
		if err := json.Unmarshal([]byte(paramsJSON), &row.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal params: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sweep rows: %w", err)
	}
	return out, nil
}

// SaveValidation stores or replaces the validation record of a run
func (r *Repository) SaveValidation(runID string, rec ValidationRecord) error {
	reasonsJSON, err := json.Marshal(rec.Reasons)
	if err != nil {
		return fmt.Errorf("failed to marshal reasons: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = r.db.Exec(`
		INSERT OR REPLACE INTO validation_reports
		(run_id, pbo, pbo_defined, pbo_warning, num_combinations,
		 cpcv_mean, cpcv_std, cpcv_ci_low, cpcv_ci_high,
		 ndr1, cv1, ndr2, cv2, verdict, reasons_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, nullFloat64(rec.PBO), boolToInt(rec.PBODefined), rec.PBOWarning, rec.NumCombinations,
		rec.CPCVMean, rec.CPCVStd, rec.CPCVLow, rec.CPCVHigh,
		nullFloat64(rec.NDR1), nullFloat64(rec.CV1), nullFloat64(rec.NDR2), nullFloat64(rec.CV2),
		rec.Verdict, string(reasonsJSON), createdAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save validation report: %w", err)
	}

	r.log.Info().
		Str("run_id", runID).
		Str("verdict", rec.Verdict).
		Msg("Validation report saved")
	return nil
}

// GetValidation retrieves the validation record of a run
func (r *Repository) GetValidation(runID string) (*ValidationRecord, error) {
	var (
		rec                       ValidationRecord
		pbo, ndr1, cv1, ndr2, cv2 sql.NullFloat64
		pboDefined                int
		reasonsJSON               string
		createdAt                 int64
	)
	err := r.db.QueryRow(`
		SELECT pbo, pbo_defined, pbo_warning, num_combinations,
		       cpcv_mean, cpcv_std, cpcv_ci_low, cpcv_ci_high,
		       ndr1, cv1, ndr2, cv2, verdict, reasons_json, created_at
		FROM validation_reports WHERE run_id = ?
	`, runID).Scan(&pbo, &pboDefined, &rec.PBOWarning, &rec.NumCombinations,
		&rec.CPCVMean, &rec.CPCVStd, &rec.CPCVLow, &rec.CPCVHigh,
		&ndr1, &cv1, &ndr2, &cv2, &rec.Verdict, &reasonsJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get validation report: %w", err)
	}

	if err := json.Unmarshal([]byte(reasonsJSON), &rec.Reasons); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reasons: %w", err)
	}
	rec.PBO = floatOrNaN(pbo)
	rec.PBODefined = pboDefined != 0
	rec.NDR1 = floatOrNaN(ndr1)
	rec.CV1 = floatOrNaN(cv1)
	rec.NDR2 = floatOrNaN(ndr2)
	rec.CV2 = floatOrNaN(cv2)
	rec.CreatedAt = time.Unix(createdAt, 0)
	return &rec, nil
}

// Helper functions for nullable values

func nullFloat64(f float64) sql.NullFloat64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func floatOrNaN(f sql.NullFloat64) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
