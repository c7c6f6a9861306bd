// Package marketdata loads already-aligned daily OHLCV bars from CSV files.
package marketdata

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/screener/internal/domain"
)

// DateLayout is the expected date format of the date column
const DateLayout = "2006-01-02"

// Bars is a loaded price series and the date of every bar
type Bars struct {
	Dates  []time.Time
	Prices domain.PriceSeries
}

// LoadCSV reads bars from a CSV file
func LoadCSV(path string) (Bars, error) {
	f, err := os.Open(path)
	if err != nil {
		return Bars{}, fmt.Errorf("failed to open price file: %w", err)
	}
	defer f.Close()
	return ReadCSV(bufio.NewReaderSize(f, 1<<20))
}

// ReadCSV reads bars with a header row. Columns are matched by name, case
// insensitively: date and close are required; open, high and low default to
// close when absent; volume is optional. Rows must be in ascending date order.
func ReadCSV(r io.Reader) (Bars, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Bars{}, fmt.Errorf("%w: price file is empty", domain.ErrShapeMismatch)
	}
	if err != nil {
		return Bars{}, fmt.Errorf("failed to read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	dateCol, ok := cols["date"]
	if !ok {
		return Bars{}, fmt.Errorf("%w: missing date column", domain.ErrShapeMismatch)
	}
	closeCol, ok := cols["close"]
	if !ok {
		return Bars{}, fmt.Errorf("%w: missing close column", domain.ErrShapeMismatch)
	}
	column := func(name string) int {
		if i, ok := cols[name]; ok {
			return i
		}
		return -1
	}
	openCol, highCol, lowCol, volCol := column("open"), column("high"), column("low"), column("volume")

	var bars Bars
	p := &bars.Prices
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Bars{}, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := time.Parse(DateLayout, rec[dateCol])
		if err != nil {
			return Bars{}, fmt.Errorf("line %d: invalid date %q: %w", line, rec[dateCol], err)
		}
		if n := len(bars.Dates); n > 0 && !date.After(bars.Dates[n-1]) {
			return Bars{}, fmt.Errorf("%w: line %d: date %s is not after %s",
				domain.ErrShapeMismatch, line, rec[dateCol], bars.Dates[n-1].Format(DateLayout))
		}

		closep, err := parseField(rec, closeCol, line, "close")
		if err != nil {
			return Bars{}, err
		}
		field := func(col int, name string) (float64, error) {
			if col < 0 {
				return closep, nil
			}
			return parseField(rec, col, line, name)
		}
		open, err := field(openCol, "open")
		if err != nil {
			return Bars{}, err
		}
		high, err := field(highCol, "high")
		if err != nil {
			return Bars{}, err
		}
		low, err := field(lowCol, "low")
		if err != nil {
			return Bars{}, err
		}

		bars.Dates = append(bars.Dates, date)
		p.Open = append(p.Open, open)
		p.High = append(p.High, high)
		p.Low = append(p.Low, low)
		p.Close = append(p.Close, closep)
		if volCol >= 0 {
			vol, err := parseField(rec, volCol, line, "volume")
			if err != nil {
				return Bars{}, err
			}
			p.Volume = append(p.Volume, vol)
		}
	}

	if bars.Prices.Len() == 0 {
		return Bars{}, fmt.Errorf("%w: price file has no rows", domain.ErrShapeMismatch)
	}
	if err := bars.Prices.Validate(); err != nil {
		return Bars{}, err
	}
	return bars, nil
}

func parseField(rec []string, col, line int, name string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: invalid %s %q: %w", line, name, rec[col], err)
	}
	return v, nil
}

// WriteCSV writes bars in the format ReadCSV expects
func WriteCSV(w io.Writer, bars Bars) error {
	p := bars.Prices
	if len(bars.Dates) != p.Len() {
		return fmt.Errorf("%w: dates=%d bars=%d", domain.ErrShapeMismatch, len(bars.Dates), p.Len())
	}
	cw := csv.NewWriter(w)
	header := []string{"date", "open", "high", "low", "close"}
	if p.Volume != nil {
		header = append(header, "volume")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, d := range bars.Dates {
		rec := []string{d.Format(DateLayout), formatF(p.Open[i]), formatF(p.High[i]), formatF(p.Low[i]), formatF(p.Close[i])}
		if p.Volume != nil {
			rec = append(rec, formatF(p.Volume[i]))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
