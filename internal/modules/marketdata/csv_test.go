package marketdata

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aristath/screener/internal/domain"
	testingpkg "github.com/aristath/screener/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	doc := `Date,Open,High,Low,Close,Adj Close,Volume
2024-01-02,100,101,99,100.5,100.5,1000
2024-01-03,100.5,102,100,101.5,101.5,1200
2024-01-04,101.5,101.5,98,99,99,900
`
	bars, err := ReadCSV(strings.NewReader(doc))
	require.NoError(t, err)

	require.Equal(t, 3, bars.Prices.Len())
	assert.Equal(t, []float64{100, 100.5, 101.5}, bars.Prices.Open)
	assert.Equal(t, []float64{101, 102, 101.5}, bars.Prices.High)
	assert.Equal(t, []float64{99, 100, 98}, bars.Prices.Low)
	assert.Equal(t, []float64{100.5, 101.5, 99}, bars.Prices.Close)
	assert.Equal(t, []float64{1000, 1200, 900}, bars.Prices.Volume)
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), bars.Dates[2])
}

func TestReadCSV_CloseOnly(t *testing.T) {
	bars, err := ReadCSV(strings.NewReader("close,date\n10,2024-01-02\n11,2024-01-03\n"))
	require.NoError(t, err)

	assert.Equal(t, []float64{10, 11}, bars.Prices.Open)
	assert.Equal(t, bars.Prices.Close, bars.Prices.High)
	assert.Nil(t, bars.Prices.Volume)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		isErr error
	}{
		{"empty", "", domain.ErrShapeMismatch},
		{"header only", "date,close\n", domain.ErrShapeMismatch},
		{"no date column", "day,close\nx,1\n", domain.ErrShapeMismatch},
		{"no close column", "date,price\n2024-01-02,1\n", domain.ErrShapeMismatch},
		{"unsorted dates", "date,close\n2024-01-03,1\n2024-01-02,2\n", domain.ErrShapeMismatch},
		{"duplicate date", "date,close\n2024-01-02,1\n2024-01-02,2\n", domain.ErrShapeMismatch},
		{"non-positive price", "date,close\n2024-01-02,0\n", domain.ErrNonFinite},
		{"bad number", "date,close\n2024-01-02,abc\n", nil},
		{"bad date", "date,close\n02/01/2024,1\n", nil},
		{"ragged row", "date,close\n2024-01-02,1,5\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.doc))
			require.Error(t, err)
			if tt.isErr != nil {
				assert.ErrorIs(t, err, tt.isErr)
			}
		})
	}
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	prices := testingpkg.MeanRevertingPrices(50, 3)
	dates := make([]time.Time, prices.Len())
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Bars{Dates: dates, Prices: prices}))

	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	got, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, prices, got.Prices)
	assert.Equal(t, dates, got.Dates)
}

func TestWriteCSV_Misaligned(t *testing.T) {
	err := WriteCSV(&bytes.Buffer{}, Bars{Prices: domain.FromCloses([]float64{1, 2})})
	assert.ErrorIs(t, err, domain.ErrShapeMismatch)
}

func TestLoadCSV_Missing(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "none.csv"))
	assert.Error(t, err)
}
