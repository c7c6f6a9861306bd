package validation

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/aristath/screener/internal/domain"
	testingpkg "github.com/aristath/screener/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	e := newTestEngine(2)
	m := testingpkg.NoiseMatrix(160, 3, 9)
	pbo, err := e.PBO(m, Config{Blocks: 4})
	require.NoError(t, err)

	var buf bytes.Buffer
	err = WriteSnapshot(&buf, Snapshot{
		RunID:     "run-1",
		CreatedAt: time.Unix(1700000000, 0).UTC(),
		Matrix:    NewMatrixSnapshot(m, []string{"a", "b", "c"}),
		PBO:       &pbo,
	})
	require.NoError(t, err)

	got, err := ReadSnapshot(&buf)
	require.NoError(t, err)
	assert.Equal(t, SnapshotVersion, got.Version)
	assert.Equal(t, "run-1", got.RunID)
	assert.True(t, got.CreatedAt.Equal(time.Unix(1700000000, 0)))
	assert.Nil(t, got.CPCV)
	require.NotNil(t, got.PBO)
	assert.Equal(t, pbo.PBO, got.PBO.PBO)
	assert.Equal(t, pbo.Logits, got.PBO.Logits)
	assert.Equal(t, pbo.Selected, got.PBO.Selected)

	dense, err := got.Matrix.Dense()
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, dense))
	assert.Equal(t, []string{"a", "b", "c"}, got.Matrix.Columns)
}

func TestSnapshot_UndefinedPBO(t *testing.T) {
	var buf bytes.Buffer
	in := PBOResult{PBO: math.NaN(), Warning: WarningIdenticalColumns}
	require.NoError(t, WriteSnapshot(&buf, Snapshot{PBO: &in}))

	got, err := ReadSnapshot(&buf)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got.PBO.PBO))
	assert.False(t, got.PBO.Defined)
	assert.Equal(t, WarningIdenticalColumns, got.PBO.Warning)
}

func TestMatrixSnapshot_DenseRejectsBadShape(t *testing.T) {
	_, err := MatrixSnapshot{Rows: 2, Cols: 2, Data: []float64{1, 2, 3}}.Dense()
	assert.ErrorIs(t, err, domain.ErrShapeMismatch)
}

func TestReadSnapshot_Garbage(t *testing.T) {
	_, err := ReadSnapshot(bytes.NewReader([]byte{0xc1}))
	assert.Error(t, err)
}
