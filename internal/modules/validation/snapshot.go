package validation

import (
	"fmt"
	"io"
	"time"

	"github.com/aristath/screener/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"
)

// SnapshotVersion is bumped whenever the snapshot layout changes
const SnapshotVersion = 1

// MatrixSnapshot is a row-major dump of a ReturnMatrix
type MatrixSnapshot struct {
	Rows    int       `msgpack:"rows"`
	Cols    int       `msgpack:"cols"`
	Data    []float64 `msgpack:"data"`
	Columns []string  `msgpack:"columns,omitempty"` // optional column labels
}

// NewMatrixSnapshot copies m into a snapshot
func NewMatrixSnapshot(m *mat.Dense, labels []string) MatrixSnapshot {
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, m.RawRowView(i)...)
	}
	return MatrixSnapshot{Rows: r, Cols: c, Data: data, Columns: labels}
}

// Dense rebuilds the matrix
func (s MatrixSnapshot) Dense() (*mat.Dense, error) {
	if s.Rows <= 0 || s.Cols <= 0 || len(s.Data) != s.Rows*s.Cols {
		return nil, fmt.Errorf("%w: snapshot %dx%d with %d values", domain.ErrShapeMismatch, s.Rows, s.Cols, len(s.Data))
	}
	return mat.NewDense(s.Rows, s.Cols, append([]float64(nil), s.Data...)), nil
}

// Snapshot bundles a ReturnMatrix with the validation results computed from it
type Snapshot struct {
	Version   int            `msgpack:"version"`
	RunID     string         `msgpack:"run_id,omitempty"`
	CreatedAt time.Time      `msgpack:"created_at"`
	Matrix    MatrixSnapshot `msgpack:"matrix"`
	PBO       *PBOResult     `msgpack:"pbo,omitempty"`
	CPCV      *CPCVResult    `msgpack:"cpcv,omitempty"`
}

// WriteSnapshot encodes s as msgpack
func WriteSnapshot(w io.Writer, s Snapshot) error {
	if s.Version == 0 {
		s.Version = SnapshotVersion
	}
	if err := msgpack.NewEncoder(w).Encode(&s); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a msgpack snapshot
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := msgpack.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	return s, nil
}
