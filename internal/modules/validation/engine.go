package validation

import (
	"fmt"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/workers"
	"github.com/aristath/screener/pkg/formulas"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// Config selects the block layout for CSCV and CPCV
type Config struct {
	Blocks int             `yaml:"blocks" json:"blocks" default:"16" validate:"gte=2"`
	Policy RemainderPolicy `yaml:"remainder_policy" json:"remainder_policy" default:"error" validate:"oneof=error trim_head spread"`
}

// DefaultConfig returns 16 blocks with the strict remainder policy
func DefaultConfig() Config {
	return Config{Blocks: DefaultBlocks, Policy: RemainderError}
}

// Engine runs CSCV/PBO and CPCV. Combinations are evaluated on the worker
// pool; each writes only its own result slot.
type Engine struct {
	pool *workers.WorkerPool
	log  zerolog.Logger
}

// NewEngine creates a new validation engine
func NewEngine(pool *workers.WorkerPool, log zerolog.Logger) *Engine {
	return &Engine{
		pool: pool,
		log:  log.With().Str("component", "validation").Logger(),
	}
}

// scratch holds one worker's reusable buffers
type scratch struct {
	is, oos   []int
	isRows    []float64
	oosRows   []float64
	isSharpe  []float64
	oosSharpe []float64
}

func (e *Engine) newScratch(p Partition, numCols int) []scratch {
	half := len(p.Blocks) / 2
	out := make([]scratch, e.pool.Size())
	for i := range out {
		out[i] = scratch{
			is:        make([]int, half),
			oos:       make([]int, half),
			isRows:    make([]float64, 0, p.Rows),
			oosRows:   make([]float64, 0, p.Rows),
			isSharpe:  make([]float64, numCols),
			oosSharpe: make([]float64, numCols),
		}
	}
	return out
}

// columns extracts every matrix column as its own slice, rejecting NaN and Inf
func columns(m *mat.Dense) ([][]float64, error) {
	_, cols := m.Dims()
	out := make([][]float64, cols)
	for j := range out {
		out[j] = mat.Col(nil, j, m)
		for i, v := range out[j] {
			if !formulas.IsFinite(v) {
				return nil, fmt.Errorf("%w: return matrix [%d,%d]=%v", domain.ErrNonFinite, i, j, v)
			}
		}
	}
	return out, nil
}

// partitionFor checks the matrix and builds the block partition
func partitionFor(m *mat.Dense, cfg Config) (Partition, error) {
	if m == nil || m.IsEmpty() {
		return Partition{}, fmt.Errorf("%w: empty return matrix", domain.ErrShapeMismatch)
	}
	rows, _ := m.Dims()
	return NewPartition(rows, cfg.Blocks, cfg.Policy)
}
